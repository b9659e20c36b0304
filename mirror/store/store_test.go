/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/plc-go/mirror/store"
	"github.com/trustbloc/plc-go/operation"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{
		Path: filepath.Join(t.TempDir(), "plc.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func entry(t *testing.T, did, cid, createdAt string) *operation.LogEntry {
	t.Helper()

	raw := fmt.Sprintf(`{"type":"plc_tombstone","prev":"%s","sig":"c2ln"}`, cid)

	e := &operation.LogEntry{
		DID:       did,
		CID:       cid,
		CreatedAt: createdAt,
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &e.Operation))

	return e
}

func TestAppendAndRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []*operation.LogEntry{
		entry(t, "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa", "bafy1", "2024-05-01T00:00:00.000Z"),
		entry(t, "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa", "bafy2", "2024-05-01T01:00:00.000Z"),
		entry(t, "did:plc:bbbbbbbbbbbbbbbbbbbbbbbb", "bafy3", "2024-05-01T02:00:00.000Z"),
	}

	inserted, err := s.AppendEntries(ctx, entries)
	require.NoError(t, err)
	require.Equal(t, 3, inserted)

	// Replaying an overlapping page inserts nothing new.
	inserted, err = s.AppendEntries(ctx, entries[1:])
	require.NoError(t, err)
	require.Zero(t, inserted)

	ops, err := s.OpsForDID(ctx, "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.Equal(t, "bafy1", ops[0].CID)
	require.Equal(t, "bafy2", ops[1].CID)
	require.True(t, ops[0].Operation.IsTombstone())

	ops, err = s.OpsForDID(ctx, "did:plc:cccccccccccccccccccccccc")
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestExportPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var entries []*operation.LogEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, entry(t,
			"did:plc:aaaaaaaaaaaaaaaaaaaaaaaa",
			fmt.Sprintf("bafy%d", i),
			fmt.Sprintf("2024-05-01T0%d:00:00.000Z", i)))
	}

	_, err := s.AppendEntries(ctx, entries)
	require.NoError(t, err)

	page, err := s.Export(ctx, "", "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "bafy0", page[0].CID)

	page, err = s.Export(ctx, page[1].CreatedAt, "", 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, "bafy2", page[0].CID)

	page, err = s.Export(ctx, "", "did:plc:bbbbbbbbbbbbbbbbbbbbbbbb", 10)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestLastCreatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.LastCreatedAt(ctx)
	require.NoError(t, err)
	require.Empty(t, last)

	_, err = s.AppendEntries(ctx, []*operation.LogEntry{
		entry(t, "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa", "bafy1", "2024-05-01T00:00:00.000Z"),
		entry(t, "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa", "bafy2", "2024-05-02T00:00:00.000Z"),
	})
	require.NoError(t, err)

	last, err = s.LastCreatedAt(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-05-02T00:00:00.000Z", last)
}

func TestStoredOperationJSONRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	raw := `{"type":"plc_operation","rotationKeys":["did:key:zKR"],` +
		`"verificationMethods":{"atproto":"did:key:zKS"},"alsoKnownAs":["at://alice.test"],` +
		`"services":{"atproto_pds":{"type":"AtprotoPersonalDataServer","endpoint":"https://pds.test"}},` +
		`"prev":null,"sig":"c2ln"}`

	e := &operation.LogEntry{
		DID:       "did:plc:aaaaaaaaaaaaaaaaaaaaaaaa",
		CID:       "bafyop",
		CreatedAt: "2024-05-01T00:00:00.000Z",
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &e.Operation))

	_, err := s.AppendEntries(ctx, []*operation.LogEntry{e})
	require.NoError(t, err)

	ops, err := s.OpsForDID(ctx, e.DID)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	// The stored operation reproduces the upstream bytes.
	out, err := json.Marshal(&ops[0].Operation)
	require.NoError(t, err)
	require.Equal(t, raw, string(out))
}
