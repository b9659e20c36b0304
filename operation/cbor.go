/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// The directory content-addresses operations by their DAG-CBOR encoding.
// For the shapes PLC operations use (text-keyed maps, strings, null),
// DAG-CBOR is exactly RFC 7049 canonical CBOR: definite lengths and map
// keys sorted length-first, then bytewise. Operations are encoded from
// plain maps so the sort always applies.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// SignedBytes returns the canonical CBOR encoding of the operation with
// its signature included. This is the form that is content-addressed:
// CIDs and the genesis DID hash are computed over these bytes.
func (oe *OpEnum) SignedBytes() ([]byte, error) {
	return encMode.Marshal(oe.asMap(true))
}

// UnsignedBytes returns the canonical CBOR encoding of the operation
// with the sig field removed (not nulled). Signatures are created and
// verified over these bytes.
func (oe *OpEnum) UnsignedBytes() ([]byte, error) {
	return encMode.Marshal(oe.asMap(false))
}

// FromCBOR decodes a canonical CBOR operation back into the enum. Only
// well-formed operation maps are accepted.
func FromCBOR(data []byte) (*OpEnum, error) {
	var m map[string]interface{}

	if err := decMode.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode operation cbor: %w", err)
	}

	return fromMap(m)
}

func fromMap(m map[string]interface{}) (*OpEnum, error) {
	typ, _ := m["type"].(string)

	oe := &OpEnum{}

	switch typ {
	case TypeOperation:
		op := &Operation{
			Type:                typ,
			RotationKeys:        stringSlice(m["rotationKeys"]),
			VerificationMethods: stringMap(m["verificationMethods"]),
			AlsoKnownAs:         stringSlice(m["alsoKnownAs"]),
			Services:            serviceMap(m["services"]),
			Prev:                optString(m["prev"]),
			Sig:                 optString(m["sig"]),
		}
		oe.Regular = op
	case TypeCreate:
		op := &LegacyCreateOp{
			Type:        typ,
			SigningKey:  asString(m["signingKey"]),
			RecoveryKey: asString(m["recoveryKey"]),
			Handle:      asString(m["handle"]),
			Service:     asString(m["service"]),
			Prev:        optString(m["prev"]),
			Sig:         optString(m["sig"]),
		}
		oe.Legacy = op
	case TypeTombstone:
		op := &TombstoneOp{
			Type: typ,
			Prev: asString(m["prev"]),
			Sig:  optString(m["sig"]),
		}
		oe.Tombstone = op
	default:
		return nil, fmt.Errorf("unsupported operation type %q", typ)
	}

	return oe, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func optString(v interface{}) *string {
	if s, ok := v.(string); ok {
		return &s
	}

	return nil
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, asString(item))
	}

	return out
}

func stringMap(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}

	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = asString(val)
	}

	return out
}

func serviceMap(v interface{}) map[string]Service {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}

	out := make(map[string]Service, len(m))

	for id, val := range m {
		svc, _ := val.(map[string]interface{})
		out[id] = Service{
			Type:     asString(svc["type"]),
			Endpoint: asString(svc["endpoint"]),
		}
	}

	return out
}
