/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package testutil provides key generation, did:key encoding, and
// operation fixtures for tests. Signatures are produced with real curve
// operations so verification paths are exercised end to end.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	secpecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/multiformats/go-multibase"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/plc-go/operation"
)

const (
	codecSecp256k1 = 0xe7
	codecP256      = 0x1200
)

// Signer holds a private key and its did:key identifier.
type Signer struct {
	DIDKey string

	sign func(digest []byte) []byte
}

// NewSecp256k1Signer generates a fresh secp256k1 keypair. Signatures are
// compact r||s and always low-S.
func NewSecp256k1Signer(t *testing.T) *Signer {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return &Signer{
		DIDKey: encodeDIDKey(t, codecSecp256k1, priv.PubKey().SerializeCompressed()),
		sign: func(digest []byte) []byte {
			compact := secpecdsa.SignCompact(priv, digest, true)
			// Drop the recovery header; keep r||s.
			return compact[1:]
		},
	}
}

// NewP256Signer generates a fresh NIST P-256 keypair.
func NewP256Signer(t *testing.T) *Signer {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	compressed := elliptic.MarshalCompressed(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)

	return &Signer{
		DIDKey: encodeDIDKey(t, codecP256, compressed),
		sign: func(digest []byte) []byte {
			r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
			require.NoError(t, err)

			sig := make([]byte, 64)
			r.FillBytes(sig[:32])
			s.FillBytes(sig[32:])

			return sig
		},
	}
}

// Sign computes the signature over msg (sha-256 then sign) and returns it
// base64url-encoded without padding.
func (s *Signer) Sign(msg []byte) string {
	digest := sha256.Sum256(msg)

	return base64.RawURLEncoding.EncodeToString(s.sign(digest[:]))
}

// SignOp signs the operation in place over its unsigned canonical CBOR.
func (s *Signer) SignOp(t *testing.T, oe *operation.OpEnum) {
	t.Helper()

	msg, err := oe.UnsignedBytes()
	require.NoError(t, err)

	sig := s.Sign(msg)

	switch {
	case oe.Regular != nil:
		oe.Regular.Sig = &sig
	case oe.Legacy != nil:
		oe.Legacy.Sig = &sig
	case oe.Tombstone != nil:
		oe.Tombstone.Sig = &sig
	}
}

func encodeDIDKey(t *testing.T, codec uint64, keyBytes []byte) string {
	t.Helper()

	data := binary.AppendUvarint(nil, codec)
	data = append(data, keyBytes...)

	encoded, err := multibase.Encode(multibase.Base58BTC, data)
	require.NoError(t, err)

	return "did:key:" + encoded
}

// OpV2 builds an unsigned v2 operation with one atproto verification
// method and one PDS service.
func OpV2(rotationKeys []string, signingKey, handle, endpoint string, prev *string) *operation.OpEnum {
	return &operation.OpEnum{
		Regular: &operation.Operation{
			Type:                operation.TypeOperation,
			RotationKeys:        rotationKeys,
			VerificationMethods: map[string]string{"atproto": signingKey},
			AlsoKnownAs:         []string{"at://" + handle},
			Services: map[string]operation.Service{
				"atproto_pds": {
					Type:     "AtprotoPersonalDataServer",
					Endpoint: endpoint,
				},
			},
			Prev: prev,
		},
	}
}

// LegacyCreate builds an unsigned v1 create operation.
func LegacyCreate(signingKey, recoveryKey, handle, service string) *operation.OpEnum {
	return &operation.OpEnum{
		Legacy: &operation.LegacyCreateOp{
			Type:        operation.TypeCreate,
			SigningKey:  signingKey,
			RecoveryKey: recoveryKey,
			Handle:      handle,
			Service:     service,
		},
	}
}

// Tombstone builds an unsigned tombstone referencing prev.
func Tombstone(prev string) *operation.OpEnum {
	return &operation.OpEnum{
		Tombstone: &operation.TombstoneOp{
			Type: operation.TypeTombstone,
			Prev: prev,
		},
	}
}

// Entry wraps a signed operation as a log entry, computing its CID.
func Entry(t *testing.T, did string, oe *operation.OpEnum, createdAt time.Time) *operation.LogEntry {
	t.Helper()

	cid, err := operation.CidForOp(oe)
	require.NoError(t, err)

	return &operation.LogEntry{
		DID:       did,
		Operation: *oe,
		CID:       cid.String(),
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	}
}

// GenesisDID derives the DID for a signed genesis operation.
func GenesisDID(t *testing.T, oe *operation.OpEnum) string {
	t.Helper()

	did, err := operation.DIDForOp(oe)
	require.NoError(t, err)

	return did
}
