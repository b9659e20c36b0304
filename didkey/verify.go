/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didkey

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	secpecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	lru "github.com/hashicorp/golang-lru/v2"
)

const signatureSize = 64

// Rotation keys repeat heavily across a directory-sized operation log, so
// parsed keys are kept in a bounded cache. The cache is transparent:
// entries are immutable and hits never change a verification outcome.
var keyCache, _ = lru.New[string, *PublicKey](4096)

func parseCached(didKey string) (*PublicKey, error) {
	if pub, ok := keyCache.Get(didKey); ok {
		return pub, nil
	}

	pub, err := Parse(didKey)
	if err != nil {
		return nil, err
	}

	keyCache.Add(didKey, pub)

	return pub, nil
}

// Verify checks a raw r||s signature over msg against the given did:key.
// The message is hashed with sha-256. Verification never errors for a
// parseable key: a bad signature simply reports false. secp256k1
// signatures must be in low-S form; a high-S signature is rejected even
// if it would otherwise verify.
func Verify(didKey string, sig, msg []byte) (bool, error) {
	pub, err := parseCached(didKey)
	if err != nil {
		return false, err
	}

	if len(sig) != signatureSize {
		return false, nil
	}

	digest := sha256.Sum256(msg)

	switch pub.Type {
	case KeyTypeSecp256k1:
		return verifySecp256k1(pub.secp, sig, digest[:]), nil
	case KeyTypeP256:
		return verifyP256(pub.p256, sig, digest[:]), nil
	}

	return false, nil
}

func verifySecp256k1(pub *btcec.PublicKey, sig, digest []byte) bool {
	var r, s btcec.ModNScalar

	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return false
	}

	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return false
	}

	if s.IsOverHalfOrder() {
		return false
	}

	return secpecdsa.NewSignature(&r, &s).Verify(digest, pub)
}

func verifyP256(pub *ecdsa.PublicKey, sig, digest []byte) bool {
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])

	return ecdsa.Verify(pub, digest, r, s)
}
