/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"fmt"
	"strings"
)

// Normalize maps a legacy v1 create operation into the v2 shape used by
// readers. v2 operations pass through unchanged. The result is a view
// only: it carries the original signature but is not re-signed, and it is
// never used for hashing — legacy operations hash in their v1 form.
func Normalize(oe *OpEnum) (*Operation, error) {
	if oe.Regular != nil {
		return oe.Regular, nil
	}

	if oe.Legacy == nil {
		return nil, fmt.Errorf("cannot normalize a %s", TypeTombstone)
	}

	op := oe.Legacy

	return &Operation{
		Type: TypeOperation,
		VerificationMethods: map[string]string{
			"atproto": op.SigningKey,
		},
		// The recovery key outranks the signing key.
		RotationKeys: []string{op.RecoveryKey, op.SigningKey},
		AlsoKnownAs:  []string{ensureAt(op.Handle)},
		Services: map[string]Service{
			"atproto_pds": {
				Type:     "AtprotoPersonalDataServer",
				Endpoint: ensureHTTPS(op.Service),
			},
		},
		Prev: op.Prev,
		Sig:  op.Sig,
	}, nil
}

func ensureHTTPS(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}

	return "https://" + s
}

func ensureAt(s string) string {
	if strings.HasPrefix(s, "at://") {
		return s
	}

	// Strip the first http(s) scheme occurrence wherever it appears.
	s = strings.Replace(s, "http://", "", 1)
	s = strings.Replace(s, "https://", "", 1)

	return "at://" + s
}
