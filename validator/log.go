/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package validator checks the full operation history of a PLC DID. It is
// a pure function from (did, ordered operations) to either the current
// identity document or a typed rejection; it holds no state and performs
// no I/O, so concurrent calls are independent and deterministic.
package validator

import (
	"github.com/trustbloc/plc-go/operation"
)

// LogResult is the full outcome of validating a log: the document (nil if
// the DID is tombstoned), the confirmed history after all nullification,
// and the CIDs of every operation displaced along the way.
type LogResult struct {
	Document  *operation.Document
	Confirmed []*operation.LogEntry
	Nullified []string
}

// ValidateLog folds the step validator across an ordered operation log
// and returns the derived document. A tombstoned DID yields a nil
// document. The entries slice must be non-empty: an empty log is a caller
// contract violation and panics rather than succeeding silently.
func ValidateLog(did string, entries []*operation.LogEntry) (*operation.Document, error) {
	res, err := ValidateLogDetailed(did, entries)
	if err != nil {
		return nil, err
	}

	return res.Document, nil
}

// ValidateLogDetailed is ValidateLog with the confirmed history and the
// nullified-CID side channel exposed, so mirrors can audit upstream's
// nullification claims against what the log actually proves.
func ValidateLogDetailed(did string, entries []*operation.LogEntry) (*LogResult, error) {
	var (
		history   []*operation.LogEntry
		nullified []string
	)

	for _, entry := range entries {
		res, err := step(did, history, entry)
		if err != nil {
			return nil, err
		}

		history = res.Ops
		nullified = append(nullified, res.Nullified...)
	}

	last := history[len(history)-1]

	result := &LogResult{Confirmed: history, Nullified: nullified}

	if last.Operation.IsTombstone() {
		return result, nil
	}

	doc, err := operation.DocumentForOp(did, &last.Operation)
	if err != nil {
		return nil, err
	}

	result.Document = doc

	return result, nil
}
