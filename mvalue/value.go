// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mvalue provides the value model and matcher engine shared by
// requests, responses, variables and the assertion DSL used throughout
// capti: a tagged union over the usual JSON/YAML scalars and containers
// plus an embedded "matcher" variant, together with the standard
// library of matchers ($exists, $regex, $length, ...) and the
// recursive comparison engine that evaluates them against a captured
// response or any other observed value.
package mvalue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Sequence
	Mapping
	Matcher
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	case Matcher:
		return "matcher"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Num is a number which remembers whether it was written as an integer
// or a float. 1 and 1.0 compare unequal: Go has no such distinction in
// float64 so the originating form is kept alongside the value.
type Num struct {
	Float   bool
	Int     int64
	Float64 float64
}

// AsFloat64 returns n's value widened to float64.
func (n Num) AsFloat64() float64 {
	if n.Float {
		return n.Float64
	}
	return float64(n.Int)
}

func (n Num) String() string {
	if n.Float {
		s := strconv.FormatFloat(n.Float64, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatInt(n.Int, 10)
}

func IntNum(i int64) Num    { return Num{Int: i} }
func FloatNum(f float64) Num { return Num{Float: true, Float64: f} }

// Value is the tagged union used for request bodies, response bodies,
// variables and the expectations in an assertion. Null matches anything
// when it appears on the expected side of a comparison (see Matches);
// it is not a wildcard for plain equality.
type Value struct {
	kind    Kind
	boolean bool
	number  Num
	str     string
	seq     []Value
	mapping *Map
	matcher *MatcherDefinition
}

func NewNull() Value                 { return Value{kind: Null} }
func NewBool(b bool) Value            { return Value{kind: Bool, boolean: b} }
func NewNumber(n Num) Value           { return Value{kind: Number, number: n} }
func NewInt(i int64) Value            { return NewNumber(IntNum(i)) }
func NewFloat(f float64) Value        { return NewNumber(FloatNum(f)) }
func NewString(s string) Value        { return Value{kind: String, str: s} }
func NewSequence(vs []Value) Value    { return Value{kind: Sequence, seq: vs} }
func NewMapping(m *Map) Value         { return Value{kind: Mapping, mapping: m} }
func NewMatcher(m *MatcherDefinition) Value {
	return Value{kind: Matcher, matcher: m}
}

func (v Value) Kind() Kind               { return v.kind }
func (v Value) IsNull() bool             { return v.kind == Null }
func (v Value) Bool() bool               { return v.boolean }
func (v Value) Num() Num                 { return v.number }
func (v Value) Str() string              { return v.str }
func (v Value) Seq() []Value             { return v.seq }
func (v Value) Map() *Map                { return v.mapping }
func (v Value) MatcherDef() *MatcherDefinition { return v.matcher }

// Len reports the length of a sequence, string or mapping value. It
// returns an error for any other kind, mirroring the $length and
// $empty matchers' notion of "sized" values.
func (v Value) Len() (int, error) {
	switch v.kind {
	case Sequence:
		return len(v.seq), nil
	case String:
		return len(v.str), nil
	case Mapping:
		return v.mapping.Len(), nil
	}
	return 0, fmt.Errorf("mvalue: value of kind %s has no length", v.kind)
}

// Equal is structural, variant-exact equality. Unlike Matches it does
// not treat Null as a wildcard and does not special-case the Matcher
// variant beyond comparing key and args verbatim.
func (a Value) Equal(b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.boolean == b.boolean
	case Number:
		return a.number.Float == b.number.Float && a.number.AsFloat64() == b.number.AsFloat64()
	case String:
		return a.str == b.str
	case Sequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !a.seq[i].Equal(b.seq[i]) {
				return false
			}
		}
		return true
	case Mapping:
		return a.mapping.Equal(b.mapping)
	case Matcher:
		return a.matcher.Key == b.matcher.Key && a.matcher.Args.Equal(b.matcher.Args)
	}
	return false
}

// Hash mirrors Equal: mapping hashes are order independent (XOR of
// member hashes) so that two mappings with the same key/value pairs in
// different insertion order hash identically.
func (v Value) Hash() uint64 {
	const prime = 1099511628211
	h := func(seed uint64, bs ...byte) uint64 {
		x := seed
		for _, b := range bs {
			x ^= uint64(b)
			x *= prime
		}
		return x
	}
	switch v.kind {
	case Null:
		return h(14695981039346656037, byte(Null))
	case Bool:
		b := byte(0)
		if v.boolean {
			b = 1
		}
		return h(14695981039346656037, byte(Bool), b)
	case Number:
		return h(14695981039346656037, byte(Number), []byte(v.number.String())...)
	case String:
		return h(14695981039346656037, byte(String), []byte(v.str)...)
	case Sequence:
		x := h(14695981039346656037, byte(Sequence))
		for _, e := range v.seq {
			x = h(x, byte(e.Hash()))
		}
		return x
	case Mapping:
		var x uint64
		for _, kv := range v.mapping.pairs {
			x ^= kv.Key.Hash() * 31 + kv.Value.Hash()
		}
		return h(x, byte(Mapping))
	case Matcher:
		x := h(14695981039346656037, byte(Matcher), []byte(v.matcher.Key)...)
		return h(x, byte(v.matcher.Args.Hash()))
	}
	return 0
}

// Display renders v as JSON-like text, preserving the integer-vs-float
// distinction of the originating form.
func (v Value) Display() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		if v.boolean {
			return "true"
		}
		return "false"
	case Number:
		return v.number.String()
	case String:
		return strconv.Quote(v.str)
	case Sequence:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.Display()
		}
		return "[" + join(parts, ", ") + "]"
	case Mapping:
		parts := make([]string, 0, v.mapping.Len())
		for _, kv := range v.mapping.pairs {
			parts = append(parts, kv.Key.Display()+": "+kv.Value.Display())
		}
		return "{" + join(parts, ", ") + "}"
	case Matcher:
		return v.matcher.String()
	}
	return "<invalid>"
}

func join(parts []string, sep string) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += sep
		}
		s += p
	}
	return s
}

// ----------------------------------------------------------------------------
// Map: an insertion-ordered key -> value container over Values.

// Pair is a single entry of a Map.
type Pair struct {
	Key   Value
	Value Value
}

// Map is an insertion-ordered mapping from Value keys to Value values.
// Keys may be of any Value variant; duplicate keys are rejected by NewMap.
type Map struct {
	pairs []Pair
	index map[uint64][]int
}

// NewMap builds a Map from pairs in order, returning a DuplicateKeyError
// if any key repeats.
func NewMap(pairs ...Pair) (*Map, error) {
	m := &Map{index: make(map[uint64][]int, len(pairs))}
	for _, p := range pairs {
		if err := m.insert(p.Key, p.Value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DuplicateKeyError is returned while deserializing a Mapping that
// repeats a key.
type DuplicateKeyError struct {
	Key Value
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("mvalue: duplicate mapping key %s (kind %s)", e.Key.Display(), e.Key.Kind())
}

func (m *Map) insert(key, value Value) error {
	h := key.Hash()
	for _, i := range m.index[h] {
		if m.pairs[i].Key.Equal(key) {
			return DuplicateKeyError{Key: key}
		}
	}
	m.index[h] = append(m.index[h], len(m.pairs))
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
	return nil
}

// Set inserts or overwrites the value for key, preserving the original
// insertion position on overwrite.
func (m *Map) Set(key, value Value) {
	h := key.Hash()
	for _, i := range m.index[h] {
		if m.pairs[i].Key.Equal(key) {
			m.pairs[i].Value = value
			return
		}
	}
	m.index[h] = append(m.index[h], len(m.pairs))
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Get looks up key, returning (value, true) on hit.
func (m *Map) Get(key Value) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	h := key.Hash()
	for _, i := range m.index[h] {
		if m.pairs[i].Key.Equal(key) {
			return m.pairs[i].Value, true
		}
	}
	return Value{}, false
}

// GetStr is a convenience wrapper for the common case of a string key.
func (m *Map) GetStr(key string) (Value, bool) {
	return m.Get(NewString(key))
}

// Len reports the number of pairs in m.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns the entries of m in insertion order. The returned
// slice must not be mutated.
func (m *Map) Pairs() []Pair {
	if m == nil {
		return nil
	}
	return m.pairs
}

// Equal compares two maps as sets of pairs regardless of order.
func (a *Map) Equal(b *Map) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, p := range a.Pairs() {
		bv, ok := b.Get(p.Key)
		if !ok || !bv.Equal(p.Value) {
			return false
		}
	}
	return true
}

// Keys returns the keys of m in insertion order, for callers (e.g. the
// header comparator) that need to iterate or sort independently.
func (m *Map) Keys() []Value {
	keys := make([]Value, 0, m.Len())
	for _, p := range m.Pairs() {
		keys = append(keys, p.Key)
	}
	return keys
}

// SortedStringKeys returns the string-valued keys of m sorted
// lexically; used by Display-adjacent debugging helpers and tests.
func (m *Map) SortedStringKeys() []string {
	keys := make([]string, 0, m.Len())
	for _, p := range m.Pairs() {
		if p.Key.Kind() == String {
			keys = append(keys, p.Key.Str())
		}
	}
	sort.Strings(keys)
	return keys
}
