/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package didkey parses did:key identifiers and verifies ECDSA signatures
// against them. The directory allows two key types, identified by their
// multicodec prefix: secp256k1 and NIST P-256, both carried as compressed
// points under a base58btc multibase.
package didkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/multiformats/go-multibase"
)

// Prefix starts every did:key identifier.
const Prefix = "did:key:"

// Multicodec codes for the supported key types.
const (
	codecSecp256k1 = 0xe7
	codecP256      = 0x1200
)

const compressedPointSize = 33

// KeyType identifies the curve a public key lives on.
type KeyType int

// Supported key types.
const (
	KeyTypeSecp256k1 KeyType = iota
	KeyTypeP256
)

// PublicKey is a parsed did:key public key.
type PublicKey struct {
	Type KeyType

	secp *btcec.PublicKey
	p256 *ecdsa.PublicKey
}

// Parse decodes a did:key string into a public key.
func Parse(didKey string) (*PublicKey, error) {
	encoded, ok := strings.CutPrefix(didKey, Prefix)
	if !ok {
		return nil, fmt.Errorf("%q is not a did:key", didKey)
	}

	enc, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode did:key multibase: %w", err)
	}

	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("did:key uses multibase %q, expected base58btc", multibase.EncodingToStr[enc])
	}

	code, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, errors.New("did:key has a malformed multicodec prefix")
	}

	keyBytes := data[n:]
	if len(keyBytes) != compressedPointSize {
		return nil, fmt.Errorf("did:key carries %d key bytes, expected a %d-byte compressed point",
			len(keyBytes), compressedPointSize)
	}

	switch code {
	case codecSecp256k1:
		pub, err := btcec.ParsePubKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse secp256k1 public key: %w", err)
		}

		return &PublicKey{Type: KeyTypeSecp256k1, secp: pub}, nil
	case codecP256:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), keyBytes)
		if x == nil {
			return nil, errors.New("invalid p-256 compressed point")
		}

		return &PublicKey{
			Type: KeyTypeP256,
			p256: &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported did:key multicodec 0x%x", code)
	}
}
