/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

// Document is the identity state derived from the most recent
// non-tombstone operation of a validated log. A tombstoned DID has no
// document.
type Document struct {
	DID                 string             `json:"did"`
	VerificationMethods map[string]string  `json:"verificationMethods"`
	RotationKeys        []string           `json:"rotationKeys"`
	AlsoKnownAs         []string           `json:"alsoKnownAs"`
	Services            map[string]Service `json:"services"`
}

// DocumentForOp derives the document for a DID from its current head
// operation via normalization.
func DocumentForOp(did string, oe *OpEnum) (*Document, error) {
	op, err := Normalize(oe)
	if err != nil {
		return nil, err
	}

	return &Document{
		DID:                 did,
		VerificationMethods: op.VerificationMethods,
		RotationKeys:        op.RotationKeys,
		AlsoKnownAs:         op.AlsoKnownAs,
		Services:            op.Services,
	}, nil
}
