// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"bytes"
	"encoding/json"
)

// Raw options that are not directly unmarshalled when loading the config.
// Usage: call Unmarshal to unmarshal the options into a struct.
type RawOpts struct {
	raw json.RawMessage
}

// Create a new RawOpts instance with the given json bytes.
func NewRawOptsBytes(raw []byte) RawOpts {
	return RawOpts{raw: raw}
}

// Create a new RawOpts instance with the given json string.
func NewRawOpts(rawJSON string) RawOpts {
	return NewRawOptsBytes([]byte(rawJSON))
}

// Unmarshal the options into a struct. Unknown fields are rejected so
// that typos in the config surface at startup.
func (o RawOpts) Unmarshal(v any) error {
	if len(bytes.TrimSpace(o.raw)) == 0 || bytes.Equal(o.raw, []byte("null")) {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(o.raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Postpone the unmarshal until the options type is known.
func (o *RawOpts) UnmarshalJSON(data []byte) error {
	o.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (o RawOpts) MarshalJSON() ([]byte, error) {
	if len(o.raw) == 0 {
		return []byte("null"), nil
	}
	return o.raw, nil
}

// Mixin that adds the ability to load options from a raw json map.
// Usage: type StructUsingOpts struct { conf.JsonOpts[MyOpts] }
type JsonOpts[Options any] struct {
	// Options loaded from a json config using the Load method.
	Options Options
}

// Set the options contained in the opts json map.
func (s *JsonOpts[Options]) Load(opts RawOpts) error {
	var o Options
	if err := opts.Unmarshal(&o); err != nil {
		return err
	}
	s.Options = o
	return nil
}
