/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"time"

	"github.com/samber/lo"

	"github.com/trustbloc/plc-go/operation"
)

// RecoveryWindow bounds how long a more powerful rotation key has to fork
// off a disputed suffix of the log.
const RecoveryWindow = 72 * time.Hour

// StepResult is the outcome of accepting one operation: the new confirmed
// history, the prev CID the operation referenced, and the CIDs of any
// operations the acceptance displaced. Nullified CIDs are a reporting
// side channel; the history in Ops is authoritative.
type StepResult struct {
	Nullified []string
	Prev      *string
	Ops       []*operation.LogEntry
}

// step decides whether proposed extends the confirmed history. It either
// appends (possibly displacing a suffix signed by a less powerful key
// within the recovery window) or rejects with a typed error. The
// confirmed history is never mutated; the result shares its entries.
func step(did string, confirmed []*operation.LogEntry, proposed *operation.LogEntry) (*StepResult, error) {
	// First operation: bind the genesis hash to the DID.
	if len(confirmed) == 0 {
		if err := assureValidGenesis(did, proposed); err != nil {
			return nil, err
		}

		return &StepResult{Ops: []*operation.LogEntry{proposed}}, nil
	}

	// Only the genesis may have a null prev.
	prev := proposed.Operation.Prev()
	if prev == nil || *prev == "" {
		return nil, &MisorderedError{}
	}

	ancestor, idx, found := lo.FindIndexOf(confirmed, func(e *operation.LogEntry) bool {
		return e.CID == *prev
	})
	if !found {
		return nil, &MisorderedError{}
	}

	prefix := confirmed[:idx+1]
	tail := confirmed[idx+1:]

	// Nothing extends past a tombstone.
	if ancestor.Operation.IsTombstone() {
		return nil, &MisorderedError{}
	}

	head, err := operation.Normalize(&ancestor.Operation)
	if err != nil {
		return nil, err
	}

	allowedKeys := head.RotationKeys

	if len(tail) == 0 {
		// Plain extension of the current head.
		if _, err := verifySignature(allowedKeys, proposed); err != nil {
			return nil, err
		}

		return &StepResult{
			Prev: prev,
			Ops:  append(prefix[:len(prefix):len(prefix)], proposed),
		}, nil
	}

	// The proposed operation forks below the head and displaces tail.
	// Identify the key that signed the disputed branch first: its rank
	// decides which keys are powerful enough to displace it.
	firstNullified := tail[0]

	disputedSigner, err := verifySignature(allowedKeys, firstNullified)
	if err != nil {
		return nil, err
	}

	// Strictly more powerful means strictly lower index; a duplicated
	// key ranks at its first occurrence.
	_, powerIndex, _ := lo.FindIndexOf(allowedKeys, func(k string) bool {
		return k == disputedSigner
	})

	morePowerful := allowedKeys[:powerIndex]

	if _, err := verifySignature(morePowerful, proposed); err != nil {
		return nil, err
	}

	// The recovery window runs from the first displaced operation, not
	// the most recent one. A negative delta is tolerated: upstream
	// ordering is authoritative and clock skew happens.
	proposedAt, err := proposed.CreatedAtTime()
	if err != nil {
		return nil, &ImproperOperationError{Message: err.Error(), Entry: proposed}
	}

	nullifiedAt, err := firstNullified.CreatedAtTime()
	if err != nil {
		return nil, &ImproperOperationError{Message: err.Error(), Entry: firstNullified}
	}

	if elapsed := proposedAt.Sub(nullifiedAt); elapsed > RecoveryWindow {
		return nil, &LateRecoveryError{Elapsed: elapsed}
	}

	return &StepResult{
		Nullified: lo.Map(tail, func(e *operation.LogEntry, _ int) string { return e.CID }),
		Prev:      prev,
		Ops:       append(prefix[:len(prefix):len(prefix)], proposed),
	}, nil
}
