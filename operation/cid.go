/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// CIDv1 layout for an operation: dag-cbor codec, sha2-256 multihash.
var cidPrefix = []byte{
	0x01,       // CIDv1
	0x71,       // dag-cbor
	0x12, 0x20, // sha2-256, 32 bytes
}

// Cid identifies an operation by the hash of its signed canonical CBOR
// encoding. Two operations share a Cid iff their encodings are byte-equal.
type Cid struct {
	bytes []byte
}

// CidForOp computes the operation's CID over its signed canonical CBOR.
func CidForOp(oe *OpEnum) (Cid, error) {
	data, err := oe.SignedBytes()
	if err != nil {
		return Cid{}, err
	}

	sum := sha256.Sum256(data)

	return Cid{bytes: append(append([]byte(nil), cidPrefix...), sum[:]...)}, nil
}

// String encodes the CID as base32-lower with a multibase prefix.
func (c Cid) String() string {
	s, err := multibase.Encode(multibase.Base32, c.bytes)
	if err != nil {
		// Base32 encoding of in-memory bytes cannot fail.
		panic(err)
	}

	return s
}

// ParseCid decodes a CID string produced by String. ParseCid(c.String())
// returns c for every valid Cid.
func ParseCid(s string) (Cid, error) {
	_, data, err := multibase.Decode(s)
	if err != nil {
		return Cid{}, fmt.Errorf("decode cid %q: %w", s, err)
	}

	if len(data) != len(cidPrefix)+sha256.Size || !bytes.HasPrefix(data, cidPrefix) {
		return Cid{}, fmt.Errorf("cid %q is not a dag-cbor sha2-256 CIDv1", s)
	}

	return Cid{bytes: data}, nil
}

// Equal reports whether two CIDs identify the same bytes.
func (c Cid) Equal(other Cid) bool {
	return bytes.Equal(c.bytes, other.bytes)
}
