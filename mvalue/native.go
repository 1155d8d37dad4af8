// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

// ToInterface converts v to a plain Go value (map[string]interface{},
// []interface{}, string, bool, int64/float64, nil) suitable for
// encoding/json.Marshal, used when building a request body or
// rendering a value outside the YAML round-trip path. A Matcher
// variant has no JSON representation and renders as its "$name args"
// source string, matching MarshalYAML's behavior.
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case Null:
		return nil
	case Bool:
		return v.boolean
	case Number:
		if v.number.Float {
			return v.number.Float64
		}
		return v.number.Int
	case String:
		return v.str
	case Matcher:
		return v.matcher.String()
	case Sequence:
		out := make([]interface{}, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.ToInterface()
		}
		return out
	case Mapping:
		out := make(map[string]interface{}, v.mapping.Len())
		for _, p := range v.mapping.Pairs() {
			key := p.Key.Str()
			if p.Key.Kind() != String {
				key = p.Key.Display()
			}
			out[key] = p.Value.ToInterface()
		}
		return out
	}
	return nil
}

// FromJSON parses raw JSON bytes into a Value, the same conversion
// used when parsing matcher args (see parseJSONValue) but exported for
// capturing response bodies (spec §4.H: "body is read as text, then
// parsed as JSON; on parse failure body is the raw string").
func FromJSON(data []byte) (Value, bool) {
	return parseJSONValue(string(data))
}
