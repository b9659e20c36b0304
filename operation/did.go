/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

// DIDPrefix starts every PLC identifier.
const DIDPrefix = "did:plc:"

// didIDLength is the number of base32 characters kept from the genesis hash.
const didIDLength = 24

var base32Lower = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// DIDForOp derives the DID bound to a genesis operation: sha-256 over the
// signed canonical CBOR encoding, base32-lower, truncated to 24 characters.
func DIDForOp(oe *OpEnum) (string, error) {
	data, err := oe.SignedBytes()
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	id := base32Lower.EncodeToString(sum[:])

	return DIDPrefix + id[:didIDLength], nil
}

// IsDID reports whether s is syntactically a PLC DID.
func IsDID(s string) bool {
	return strings.HasPrefix(s, DIDPrefix) && len(s) == len(DIDPrefix)+didIDLength
}
