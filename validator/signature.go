/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"encoding/base64"
	"strings"

	"github.com/trustbloc/plc-go/didkey"
	"github.com/trustbloc/plc-go/operation"
)

// verifySignature checks the entry's signature against each allowed
// did:key in order and returns the first one that verifies. Signatures
// are base64url without padding; a signature carrying trailing padding is
// rejected before any cryptographic work, for byte-compatibility with the
// upstream directory.
func verifySignature(allowedKeys []string, entry *operation.LogEntry) (string, error) {
	sig := entry.Operation.Sig()
	if sig == nil || *sig == "" || strings.HasSuffix(*sig, "=") {
		return "", &InvalidSignatureError{Entry: entry}
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(*sig)
	if err != nil {
		return "", &InvalidSignatureError{Entry: entry}
	}

	msg, err := entry.Operation.UnsignedBytes()
	if err != nil {
		return "", err
	}

	for _, key := range allowedKeys {
		ok, err := didkey.Verify(key, sigBytes, msg)
		if err != nil {
			// An unparseable rotation key cannot have signed anything;
			// keep trying the remaining keys.
			continue
		}

		if ok {
			return key, nil
		}
	}

	return "", &InvalidSignatureError{Entry: entry}
}
