/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"fmt"
	"time"
)

// LogEntry is one indexed operation as exported by the directory: the
// operation itself, its CID, the storage-assigned creation timestamp, and
// the upstream's nullification claim. The nullified flag is informational
// only — validation recomputes nullification from first principles and
// never trusts it.
type LogEntry struct {
	DID       string `json:"did"`
	Operation OpEnum `json:"operation"`
	CID       string `json:"cid"`
	Nullified bool   `json:"nullified"`
	CreatedAt string `json:"createdAt"`
}

// CreatedAtTime parses the entry's createdAt timestamp.
func (le *LogEntry) CreatedAtTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, le.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse createdAt %q: %w", le.CreatedAt, err)
	}

	return t, nil
}

// VerifyCID recomputes the operation's CID and checks it against the
// entry's claimed CID.
func (le *LogEntry) VerifyCID() error {
	cid, err := CidForOp(&le.Operation)
	if err != nil {
		return err
	}

	if cid.String() != le.CID {
		return fmt.Errorf("log entry CID %s does not match computed operation CID %s", le.CID, cid.String())
	}

	return nil
}
