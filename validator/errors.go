/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"errors"
	"fmt"
	"time"

	"github.com/trustbloc/plc-go/operation"
)

// LogError is implemented by every validation failure the validator can
// raise. Callers distinguish a rejected log from an internal error with a
// single errors.As check (see IsValidationError).
type LogError interface {
	error
	logError()
}

// MisorderedError reports an operation that does not extend the confirmed
// history: a non-genesis operation with a null prev, a prev that matches
// nothing in the history, or an attempt to extend past a tombstone.
type MisorderedError struct{}

func (e *MisorderedError) Error() string { return "misordered operation" }

func (e *MisorderedError) logError() {}

// InvalidSignatureError reports an operation whose signature is malformed
// or verifies under none of the keys it is allowed to use.
type InvalidSignatureError struct {
	Entry *operation.LogEntry
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature on operation %s", e.Entry.CID)
}

func (e *InvalidSignatureError) logError() {}

// GenesisHashError reports a genesis operation whose hash does not derive
// the DID the log is indexed under. Expected carries the DID that the
// operation actually derives.
type GenesisHashError struct {
	Expected string
}

func (e *GenesisHashError) Error() string {
	return fmt.Sprintf("genesis operation hashes to %s", e.Expected)
}

func (e *GenesisHashError) logError() {}

// ImproperOperationError reports a structurally unacceptable operation.
type ImproperOperationError struct {
	Message string
	Entry   *operation.LogEntry
}

func (e *ImproperOperationError) Error() string {
	return fmt.Sprintf("improper operation: %s", e.Message)
}

func (e *ImproperOperationError) logError() {}

// LateRecoveryError reports a nullification attempted after the recovery
// window closed. Elapsed is the time between the first nullified
// operation's creation and the proposed operation's creation.
type LateRecoveryError struct {
	Elapsed time.Duration
}

func (e *LateRecoveryError) Error() string {
	return fmt.Sprintf("late recovery: %dms elapsed since the first nullified operation", e.Elapsed.Milliseconds())
}

func (e *LateRecoveryError) logError() {}

// IsValidationError reports whether err is a validation failure rather
// than an internal error. HTTP surfaces report the former with a human
// message and the latter as an internal server error.
func IsValidationError(err error) bool {
	var le LogError

	return errors.As(err, &le)
}
