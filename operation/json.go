/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UnmarshalJSON decodes one of the three operation variants, dispatching
// on the "type" discriminator. The original bytes are retained so that
// MarshalJSON reproduces them exactly.
func (oe *OpEnum) UnmarshalJSON(data []byte) error {
	*oe = OpEnum{}

	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return fmt.Errorf("operation is missing a type field")
	}

	var err error

	switch typ.String() {
	case TypeOperation:
		var op Operation

		err = json.Unmarshal(data, &op)
		oe.Regular = &op
	case TypeCreate:
		var op LegacyCreateOp

		err = json.Unmarshal(data, &op)
		oe.Legacy = &op
	case TypeTombstone:
		var op TombstoneOp

		err = json.Unmarshal(data, &op)
		oe.Tombstone = &op
	default:
		return fmt.Errorf("unsupported operation type %q", typ.String())
	}

	if err != nil {
		return err
	}

	oe.raw = append([]byte(nil), data...)

	return nil
}

// MarshalJSON writes the held variant. If the enum was decoded from JSON
// the original bytes are returned unchanged, so a mirrored log re-exports
// byte-identically.
func (oe OpEnum) MarshalJSON() ([]byte, error) {
	if oe.raw != nil {
		return oe.raw, nil
	}

	switch {
	case oe.Regular != nil:
		return json.Marshal(oe.Regular)
	case oe.Legacy != nil:
		return json.Marshal(oe.Legacy)
	case oe.Tombstone != nil:
		return json.Marshal(oe.Tombstone)
	}

	return nil, fmt.Errorf("empty operation enum")
}

// UnsignedJSON returns the operation's JSON with the sig field removed.
// Hashing and signing do not use it; they go through the CBOR encoding.
func (oe *OpEnum) UnsignedJSON() ([]byte, error) {
	data, err := oe.MarshalJSON()
	if err != nil {
		return nil, err
	}

	return sjson.DeleteBytes(data, "sig")
}
