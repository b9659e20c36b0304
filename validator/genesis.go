/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"github.com/trustbloc/plc-go/operation"
)

// assureValidGenesis validates the first operation of a log: it must not
// be a tombstone, must be self-signed by one of its own rotation keys,
// must hash to the DID the log is indexed under, and must have a null
// prev.
func assureValidGenesis(did string, entry *operation.LogEntry) error {
	if entry.Operation.IsTombstone() {
		return &MisorderedError{}
	}

	op, err := operation.Normalize(&entry.Operation)
	if err != nil {
		return err
	}

	if _, err := verifySignature(op.RotationKeys, entry); err != nil {
		return err
	}

	expected, err := operation.DIDForOp(&entry.Operation)
	if err != nil {
		return err
	}

	if expected != did {
		return &GenesisHashError{Expected: expected}
	}

	if entry.Operation.Prev() != nil {
		return &ImproperOperationError{
			Message: "genesis operation must have a null prev",
			Entry:   entry,
		}
	}

	return nil
}
