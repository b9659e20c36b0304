/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"

	"github.com/trustbloc/plc-go/internal/testutil"
	"github.com/trustbloc/plc-go/operation"
	"github.com/trustbloc/plc-go/validator"
)

var genesisTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// signedEntry builds, signs, and wraps an operation in one go.
func signedEntry(t *testing.T, signer *testutil.Signer, did string, oe *operation.OpEnum,
	createdAt time.Time) *operation.LogEntry {
	t.Helper()

	signer.SignOp(t, oe)

	return testutil.Entry(t, did, oe, createdAt)
}

// linearLog builds a two-entry log [G, A]: a genesis with the given
// rotation keys and one extension signed by extSigner.
func linearLog(t *testing.T, rotationKeys []string, genesisSigner, extSigner *testutil.Signer) (string, []*operation.LogEntry) {
	t.Helper()

	genesis := testutil.OpV2(rotationKeys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	genesisSigner.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	ext := testutil.OpV2(rotationKeys, "did:key:zSigning", "alice2.test", "https://pds.test", &genesisEntry.CID)
	extEntry := signedEntry(t, extSigner, did, ext, genesisTime.Add(time.Hour))

	return did, []*operation.LogEntry{genesisEntry, extEntry}
}

func TestLinearExtension(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	did, log := linearLog(t, []string{key.DIDKey}, key, key)

	doc, err := validator.ValidateLog(did, log)
	require.NoError(t, err)
	require.NotNil(t, doc)

	require.Equal(t, did, doc.DID)
	require.Equal(t, []string{"at://alice2.test"}, doc.AlsoKnownAs)
	require.Equal(t, []string{key.DIDKey}, doc.RotationKeys)
}

func TestSingleEntryLog(t *testing.T) {
	key := testutil.NewP256Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	key.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)

	doc, err := validator.ValidateLog(did, []*operation.LogEntry{testutil.Entry(t, did, genesis, genesisTime)})
	require.NoError(t, err)
	require.Equal(t, did, doc.DID)
}

func TestBadGenesisHash(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	key.SignOp(t, genesis)

	expected := testutil.GenesisDID(t, genesis)
	wrong := "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa"

	_, err := validator.ValidateLog(wrong, []*operation.LogEntry{testutil.Entry(t, wrong, genesis, genesisTime)})

	var genErr *validator.GenesisHashError

	require.ErrorAs(t, err, &genErr)
	require.Equal(t, expected, genErr.Expected)
	require.True(t, validator.IsValidationError(err))
}

func TestGenesisRejectsTombstone(t *testing.T) {
	ts := testutil.Tombstone("bafyprev")
	sig := "c2ln"
	ts.Tombstone.Sig = &sig

	_, err := validator.ValidateLog("did:plc:aaaaaaaaaaaaaaaaaaaaaaaa",
		[]*operation.LogEntry{testutil.Entry(t, "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa", ts, genesisTime)})

	var misErr *validator.MisorderedError

	require.ErrorAs(t, err, &misErr)
}

func TestGenesisRejectsForeignSigner(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	// Signed by a key outside the rotation list.
	testutil.NewSecp256k1Signer(t).SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)

	_, err := validator.ValidateLog(did, []*operation.LogEntry{testutil.Entry(t, did, genesis, genesisTime)})

	var sigErr *validator.InvalidSignatureError

	require.ErrorAs(t, err, &sigErr)
}

func TestNonGenesisNullPrev(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	key.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	// A second operation with null prev can never extend the log.
	second := testutil.OpV2([]string{key.DIDKey}, "did:key:zOther", "bob.test", "https://pds.test", nil)
	secondEntry := signedEntry(t, key, did, second, genesisTime.Add(time.Hour))

	_, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, secondEntry})

	var misErr *validator.MisorderedError

	require.ErrorAs(t, err, &misErr)
}

func TestUnknownPrev(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	key.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	phantom := "bafyreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"
	orphan := testutil.OpV2([]string{key.DIDKey}, "did:key:zOther", "bob.test", "https://pds.test", &phantom)
	orphanEntry := signedEntry(t, key, did, orphan, genesisTime.Add(time.Hour))

	_, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, orphanEntry})

	var misErr *validator.MisorderedError

	require.ErrorAs(t, err, &misErr)
}

func TestRecoveryWithinWindow(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)
	keys := []string{recovery.DIDKey, signing.DIDKey}

	genesis := testutil.OpV2(keys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	recovery.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	disputed := testutil.OpV2(keys, "did:key:zRogue", "mallory.test", "https://pds.test", &genesisEntry.CID)
	disputedEntry := signedEntry(t, signing, did, disputed, genesisTime.Add(time.Hour))

	fork := testutil.OpV2([]string{recovery.DIDKey}, "did:key:zFresh", "alice.test", "https://pds.test", &genesisEntry.CID)
	forkEntry := signedEntry(t, recovery, did, fork, genesisTime.Add(24*time.Hour))

	res, err := validator.ValidateLogDetailed(did, []*operation.LogEntry{genesisEntry, disputedEntry, forkEntry})
	require.NoError(t, err)

	require.Equal(t, []string{disputedEntry.CID}, res.Nullified)
	require.Len(t, res.Confirmed, 2)
	require.Equal(t, forkEntry.CID, res.Confirmed[1].CID)
	require.Equal(t, []string{"at://alice.test"}, res.Document.AlsoKnownAs)
	require.Equal(t, []string{recovery.DIDKey}, res.Document.RotationKeys)
}

func TestRecoveryAtExactWindowBoundary(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)
	keys := []string{recovery.DIDKey, signing.DIDKey}

	genesis := testutil.OpV2(keys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	recovery.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	disputedAt := genesisTime.Add(time.Hour)
	disputed := testutil.OpV2(keys, "did:key:zRogue", "mallory.test", "https://pds.test", &genesisEntry.CID)
	disputedEntry := signedEntry(t, signing, did, disputed, disputedAt)

	// Exactly 72h after the first nullified operation is still inside
	// the window; the bound is a strict greater-than.
	fork := testutil.OpV2([]string{recovery.DIDKey}, "did:key:zFresh", "alice.test", "https://pds.test", &genesisEntry.CID)
	forkEntry := signedEntry(t, recovery, did, fork, disputedAt.Add(72*time.Hour))

	_, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, disputedEntry, forkEntry})
	require.NoError(t, err)
}

func TestLateRecovery(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)
	keys := []string{recovery.DIDKey, signing.DIDKey}

	genesis := testutil.OpV2(keys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	recovery.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	disputedAt := genesisTime.Add(time.Hour)
	disputed := testutil.OpV2(keys, "did:key:zRogue", "mallory.test", "https://pds.test", &genesisEntry.CID)
	disputedEntry := signedEntry(t, signing, did, disputed, disputedAt)

	lateBy := 72*time.Hour + time.Millisecond
	fork := testutil.OpV2([]string{recovery.DIDKey}, "did:key:zFresh", "alice.test", "https://pds.test", &genesisEntry.CID)
	forkEntry := signedEntry(t, recovery, did, fork, disputedAt.Add(lateBy))

	_, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, disputedEntry, forkEntry})

	var lateErr *validator.LateRecoveryError

	require.ErrorAs(t, err, &lateErr)
	require.Equal(t, lateBy.Milliseconds(), lateErr.Elapsed.Milliseconds())
}

func TestInsufficientPower(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)
	keys := []string{recovery.DIDKey, signing.DIDKey}

	genesis := testutil.OpV2(keys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	recovery.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	// The disputed branch is signed by the MOST powerful key; nothing
	// outranks it, so no fork can displace it.
	disputed := testutil.OpV2(keys, "did:key:zNew", "alice.test", "https://pds.test", &genesisEntry.CID)
	disputedEntry := signedEntry(t, recovery, did, disputed, genesisTime.Add(time.Hour))

	fork := testutil.OpV2(keys, "did:key:zOther", "bob.test", "https://pds.test", &genesisEntry.CID)
	forkEntry := signedEntry(t, signing, did, fork, genesisTime.Add(2*time.Hour))

	_, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, disputedEntry, forkEntry})

	var sigErr *validator.InvalidSignatureError

	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, forkEntry.CID, sigErr.Entry.CID)
}

func TestTombstoneIsTerminal(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	key.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	ts := testutil.Tombstone(genesisEntry.CID)
	tsEntry := signedEntry(t, key, did, ts, genesisTime.Add(time.Hour))

	// A tombstoned log resolves to no document.
	doc, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, tsEntry})
	require.NoError(t, err)
	require.Nil(t, doc)

	// No operation may extend past the tombstone.
	after := testutil.OpV2([]string{key.DIDKey}, "did:key:zOther", "bob.test", "https://pds.test", &tsEntry.CID)
	afterEntry := signedEntry(t, key, did, after, genesisTime.Add(2*time.Hour))

	_, err = validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, tsEntry, afterEntry})

	var misErr *validator.MisorderedError

	require.ErrorAs(t, err, &misErr)
}

func TestTombstoneCanBeNullified(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)
	keys := []string{recovery.DIDKey, signing.DIDKey}

	genesis := testutil.OpV2(keys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	recovery.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	ts := testutil.Tombstone(genesisEntry.CID)
	tsEntry := signedEntry(t, signing, did, ts, genesisTime.Add(time.Hour))

	fork := testutil.OpV2(keys, "did:key:zFresh", "alice.test", "https://pds.test", &genesisEntry.CID)
	forkEntry := signedEntry(t, recovery, did, fork, genesisTime.Add(2*time.Hour))

	res, err := validator.ValidateLogDetailed(did, []*operation.LogEntry{genesisEntry, tsEntry, forkEntry})
	require.NoError(t, err)
	require.Equal(t, []string{tsEntry.CID}, res.Nullified)
	require.NotNil(t, res.Document)
}

func TestLegacyCreateGenesis(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)

	genesis := testutil.LegacyCreate(signing.DIDKey, recovery.DIDKey, "alice.example.com", "pds.example.com")
	signing.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)

	doc, err := validator.ValidateLog(did, []*operation.LogEntry{testutil.Entry(t, did, genesis, genesisTime)})
	require.NoError(t, err)

	require.Equal(t, []string{"at://alice.example.com"}, doc.AlsoKnownAs)
	require.Equal(t, []string{recovery.DIDKey, signing.DIDKey}, doc.RotationKeys)
	require.Equal(t, "https://pds.example.com", doc.Services["atproto_pds"].Endpoint)
}

func TestDuplicateRotationKeys(t *testing.T) {
	recovery := testutil.NewSecp256k1Signer(t)
	signing := testutil.NewSecp256k1Signer(t)
	// The signing key appears twice; its power is its first (lowest)
	// index, so the later duplicate grants nothing extra.
	keys := []string{recovery.DIDKey, signing.DIDKey, signing.DIDKey}

	genesis := testutil.OpV2(keys, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	recovery.SignOp(t, genesis)

	did := testutil.GenesisDID(t, genesis)
	genesisEntry := testutil.Entry(t, did, genesis, genesisTime)

	disputed := testutil.OpV2(keys, "did:key:zRogue", "mallory.test", "https://pds.test", &genesisEntry.CID)
	disputedEntry := signedEntry(t, signing, did, disputed, genesisTime.Add(time.Hour))

	// The same key cannot displace its own branch.
	fork := testutil.OpV2(keys, "did:key:zOther", "bob.test", "https://pds.test", &genesisEntry.CID)
	forkEntry := signedEntry(t, signing, did, fork, genesisTime.Add(2*time.Hour))

	_, err := validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, disputedEntry, forkEntry})

	var sigErr *validator.InvalidSignatureError

	require.ErrorAs(t, err, &sigErr)

	// The recovery key still can.
	fork2 := testutil.OpV2(keys, "did:key:zOther", "bob.test", "https://pds.test", &genesisEntry.CID)
	fork2Entry := signedEntry(t, recovery, did, fork2, genesisTime.Add(2*time.Hour))

	_, err = validator.ValidateLog(did, []*operation.LogEntry{genesisEntry, disputedEntry, fork2Entry})
	require.NoError(t, err)
}

func TestPaddedSignatureRejected(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	genesis := testutil.OpV2([]string{key.DIDKey}, "did:key:zSigning", "alice.test", "https://pds.test", nil)
	key.SignOp(t, genesis)

	// Append a padding character to the valid signature; it must be
	// rejected before any crypto runs.
	padded := *genesis.Regular.Sig + "="
	genesis.Regular.Sig = &padded

	did := testutil.GenesisDID(t, genesis)

	_, err := validator.ValidateLog(did, []*operation.LogEntry{testutil.Entry(t, did, genesis, genesisTime)})

	var sigErr *validator.InvalidSignatureError

	require.ErrorAs(t, err, &sigErr)
}

func TestTamperedOperationFailsSignature(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	did, log := linearLog(t, []string{key.DIDKey}, key, key)

	// Tamper with the signed payload of the head operation via its JSON
	// form: signature verification must now fail.
	raw, err := json.Marshal(&log[1].Operation)
	require.NoError(t, err)

	raw, err = sjson.SetBytes(raw, "alsoKnownAs.0", "at://mallory.test")
	require.NoError(t, err)

	var tampered operation.OpEnum
	require.NoError(t, json.Unmarshal(raw, &tampered))

	cid, err := operation.CidForOp(&tampered)
	require.NoError(t, err)

	log[1] = &operation.LogEntry{
		DID:       did,
		Operation: tampered,
		CID:       cid.String(),
		CreatedAt: log[1].CreatedAt,
	}

	_, err = validator.ValidateLog(did, log)

	var sigErr *validator.InvalidSignatureError

	require.ErrorAs(t, err, &sigErr)
}

func TestDeterminism(t *testing.T) {
	key := testutil.NewSecp256k1Signer(t)

	did, log := linearLog(t, []string{key.DIDKey}, key, key)

	first, err := validator.ValidateLog(did, log)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := validator.ValidateLog(did, log)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEmptyLogPanics(t *testing.T) {
	require.Panics(t, func() {
		_, _ = validator.ValidateLog("did:plc:aaaaaaaaaaaaaaaaaaaaaaaa", nil)
	})
}

func TestIsValidationError(t *testing.T) {
	require.True(t, validator.IsValidationError(&validator.MisorderedError{}))
	require.True(t, validator.IsValidationError(&validator.LateRecoveryError{Elapsed: time.Hour}))
	require.False(t, validator.IsValidationError(json.Unmarshal([]byte("{"), &struct{}{})))
	require.False(t, validator.IsValidationError(nil))
}
