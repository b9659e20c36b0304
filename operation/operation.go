/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package operation defines the PLC operation data model: the tagged
// operation variants, their canonical CBOR encoding, content addressing
// (CID), genesis DID derivation, and normalization of legacy operations
// into the current shape.
package operation

// Type discriminator values carried in the "type" field of every operation.
const (
	TypeOperation = "plc_operation"
	TypeCreate    = "create"
	TypeTombstone = "plc_tombstone"
)

// Service is a service endpoint declared in an operation.
type Service struct {
	Type     string `json:"type"`
	Endpoint string `json:"endpoint"`
}

// Operation is a v2 "plc_operation".
type Operation struct {
	Type                string             `json:"type"`
	RotationKeys        []string           `json:"rotationKeys"`
	VerificationMethods map[string]string  `json:"verificationMethods"`
	AlsoKnownAs         []string           `json:"alsoKnownAs"`
	Services            map[string]Service `json:"services"`
	Prev                *string            `json:"prev"`
	Sig                 *string            `json:"sig,omitempty"`
}

// LegacyCreateOp is a v1 "create" operation. Legacy operations are
// normalized into the v2 shape for reading, but hashing and signing
// always use the v1 form.
type LegacyCreateOp struct {
	Type        string  `json:"type"`
	SigningKey  string  `json:"signingKey"`
	RecoveryKey string  `json:"recoveryKey"`
	Handle      string  `json:"handle"`
	Service     string  `json:"service"`
	Prev        *string `json:"prev"`
	Sig         *string `json:"sig,omitempty"`
}

// TombstoneOp is a terminal "plc_tombstone" operation. A tombstoned DID
// has no document and its log may not be extended.
type TombstoneOp struct {
	Type string  `json:"type"`
	Prev string  `json:"prev"`
	Sig  *string `json:"sig,omitempty"`
}

// OpEnum holds exactly one of the three operation variants. It is the
// on-the-wire "operation" value of a log entry.
type OpEnum struct {
	Regular   *Operation
	Legacy    *LegacyCreateOp
	Tombstone *TombstoneOp

	// raw holds the original JSON bytes when the enum was decoded from
	// JSON, so re-marshaling reproduces the upstream bytes exactly.
	raw []byte
}

// IsTombstone reports whether the enum holds a tombstone.
func (oe *OpEnum) IsTombstone() bool {
	return oe.Tombstone != nil
}

// IsGenesis reports whether the operation has a null prev.
func (oe *OpEnum) IsGenesis() bool {
	return oe.Prev() == nil
}

// Prev returns the prev CID string, or nil for a genesis operation.
func (oe *OpEnum) Prev() *string {
	switch {
	case oe.Regular != nil:
		return oe.Regular.Prev
	case oe.Legacy != nil:
		return oe.Legacy.Prev
	case oe.Tombstone != nil:
		return &oe.Tombstone.Prev
	}

	return nil
}

// Sig returns the encoded signature, or nil if the operation is unsigned.
func (oe *OpEnum) Sig() *string {
	switch {
	case oe.Regular != nil:
		return oe.Regular.Sig
	case oe.Legacy != nil:
		return oe.Legacy.Sig
	case oe.Tombstone != nil:
		return oe.Tombstone.Sig
	}

	return nil
}

// asMap converts the operation into a plain map for canonical CBOR
// encoding. The sig field is included only when withSig is true; when
// excluded it is removed entirely, not set to null.
func (oe *OpEnum) asMap(withSig bool) map[string]interface{} {
	var m map[string]interface{}

	switch {
	case oe.Regular != nil:
		op := oe.Regular

		services := make(map[string]interface{}, len(op.Services))
		for id, svc := range op.Services {
			services[id] = map[string]interface{}{
				"type":     svc.Type,
				"endpoint": svc.Endpoint,
			}
		}

		m = map[string]interface{}{
			"type":                TypeOperation,
			"rotationKeys":        op.RotationKeys,
			"verificationMethods": op.VerificationMethods,
			"alsoKnownAs":         op.AlsoKnownAs,
			"services":            services,
			"prev":                prevValue(op.Prev),
		}

		if withSig && op.Sig != nil {
			m["sig"] = *op.Sig
		}
	case oe.Legacy != nil:
		op := oe.Legacy

		m = map[string]interface{}{
			"type":        TypeCreate,
			"signingKey":  op.SigningKey,
			"recoveryKey": op.RecoveryKey,
			"handle":      op.Handle,
			"service":     op.Service,
			"prev":        prevValue(op.Prev),
		}

		if withSig && op.Sig != nil {
			m["sig"] = *op.Sig
		}
	case oe.Tombstone != nil:
		op := oe.Tombstone

		m = map[string]interface{}{
			"type": TypeTombstone,
			"prev": op.Prev,
		}

		if withSig && op.Sig != nil {
			m["sig"] = *op.Sig
		}
	}

	return m
}

func prevValue(prev *string) interface{} {
	if prev == nil {
		return nil
	}

	return *prev
}
