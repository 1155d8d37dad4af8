// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML maps the host serialization events to Value variants
// 1:1: a string scalar is first tried as a MatcherDefinition, mappings
// are built in document order and reject duplicate keys.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	val, err := fromYAMLNode(node)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func fromYAMLNode(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return NewNull(), nil
		}
		return fromYAMLNode(node.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(node.Alias)
	case yaml.ScalarNode:
		return scalarFromYAML(node)
	case yaml.SequenceNode:
		seq := make([]Value, 0, len(node.Content))
		for _, c := range node.Content {
			cv, err := fromYAMLNode(c)
			if err != nil {
				return Value{}, err
			}
			seq = append(seq, cv)
		}
		return NewSequence(seq), nil
	case yaml.MappingNode:
		pairs := make([]Pair, 0, len(node.Content)/2)
		m := &Map{index: make(map[uint64][]int)}
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, err := fromYAMLNode(node.Content[i])
			if err != nil {
				return Value{}, err
			}
			val, err := fromYAMLNode(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			if err := m.insert(k, val); err != nil {
				return Value{}, err
			}
			pairs = append(pairs, Pair{Key: k, Value: val})
		}
		return NewMapping(m), nil
	default:
		return NewNull(), fmt.Errorf("mvalue: unsupported YAML node kind %v", node.Kind)
	}
}

func scalarFromYAML(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case "!!null":
		return NewNull(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, err
		}
		return NewBool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return Value{}, err
		}
		return NewInt(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, err
		}
		return NewFloat(f), nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return Value{}, err
	}
	if strings.HasPrefix(s, `\$`) {
		return NewString(s[1:]), nil
	}
	if def, ok := ParseMatcherDefinition(s); ok {
		return NewMatcher(def), nil
	}
	return NewString(s), nil
}

// MarshalYAML renders v back to a YAML-friendly representation,
// re-serializing matchers to their "$name args" source form so that
// parse(serialize(v)) round-trips.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case Null:
		return nil, nil
	case Bool:
		return v.boolean, nil
	case Number:
		if v.number.Float {
			return v.number.Float64, nil
		}
		return v.number.Int, nil
	case String:
		return v.str, nil
	case Matcher:
		return v.matcher.String(), nil
	case Sequence:
		out := make([]interface{}, len(v.seq))
		for i, e := range v.seq {
			y, err := e.MarshalYAML()
			if err != nil {
				return nil, err
			}
			out[i] = y
		}
		return out, nil
	case Mapping:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, p := range v.mapping.Pairs() {
			kn := &yaml.Node{}
			if err := kn.Encode(mustYAML(p.Key)); err != nil {
				return nil, err
			}
			vn := &yaml.Node{}
			if err := vn.Encode(mustYAML(p.Value)); err != nil {
				return nil, err
			}
			node.Content = append(node.Content, kn, vn)
		}
		return node, nil
	}
	return nil, fmt.Errorf("mvalue: cannot marshal kind %s", v.kind)
}

func mustYAML(v Value) interface{} {
	y, err := v.MarshalYAML()
	if err != nil {
		panic(err)
	}
	return y
}

// parseYAMLScalar parses s as a single YAML scalar (used by
// MatcherDefinition arg parsing as the fallback after JSON).
func parseYAMLScalar(s string) (Value, bool) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(s), &node); err != nil {
		return Value{}, false
	}
	if len(node.Content) == 0 {
		return Value{}, false
	}
	inner := node.Content[0]
	if inner.Kind != yaml.ScalarNode {
		// Sequences/mappings passed as matcher args, e.g. $and [..].
		v, err := fromYAMLNode(inner)
		if err != nil {
			return Value{}, false
		}
		return v, true
	}
	v, err := scalarFromYAML(inner)
	if err != nil {
		return Value{}, false
	}
	return v, true
}

// parseJSONValue parses s as JSON, used as the first attempt when
// parsing matcher arguments.
func parseJSONValue(s string) (Value, bool) {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Value{}, false
	}
	if dec.More() {
		return Value{}, false
	}
	return fromJSONRaw(raw), true
}

func fromJSONRaw(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return NewNull()
	case bool:
		return NewBool(t)
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return NewInt(i)
		}
		f, _ := t.Float64()
		return NewFloat(f)
	case string:
		if strings.HasPrefix(t, `\$`) {
			return NewString(t[1:])
		}
		if def, ok := ParseMatcherDefinition(t); ok {
			return NewMatcher(def)
		}
		return NewString(t)
	case []interface{}:
		seq := make([]Value, len(t))
		for i, e := range t {
			seq[i] = fromJSONRaw(e)
		}
		return NewSequence(seq)
	case map[string]interface{}:
		m := &Map{index: make(map[uint64][]int)}
		for k, e := range t {
			m.insert(NewString(k), fromJSONRaw(e))
		}
		return NewMapping(m)
	}
	return NewNull()
}
