// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import (
	"fmt"
	"strings"
)

// MatchProcessor is the capability set a registered matcher must
// satisfy. Implementations must be pure and safe for concurrent use:
// the registry is frozen after init and read concurrently by every
// running test.
type MatchProcessor interface {
	// Key is the literal "$name" token recognized in source.
	Key() string

	// IsMatch applies the matcher's args against an observed value.
	IsMatch(args Value, value Value) (bool, error)
}

// MissingMatcher is returned when a MatcherDefinition names a key that
// was never registered.
type MissingMatcher struct {
	Key string
}

func (e MissingMatcher) Error() string {
	return fmt.Sprintf("mvalue: no matcher registered for %q", e.Key)
}

// registry is the process-wide, frozen-after-init mapping from "$name"
// to its MatchProcessor. Registration happens in package init()
// functions of the matchers that implement the standard library
// (see matchers.go) and of any build-time extension; lookups are
// safe for concurrent read once all init() functions have run.
var registry = make(map[string]MatchProcessor)

// Register adds proc to the matcher registry. It panics if proc.Key()
// was already registered, mirroring the teacher's CheckRegistry.
func Register(proc MatchProcessor) {
	key := proc.Key()
	if _, ok := registry[key]; ok {
		panic(fmt.Sprintf("mvalue: matcher %q already registered", key))
	}
	registry[key] = proc
}

// Lookup returns the MatchProcessor registered under key, if any.
func Lookup(key string) (MatchProcessor, bool) {
	proc, ok := registry[key]
	return proc, ok
}

// IsRegistered reports whether key (e.g. "$exists") names a known
// matcher. It is used by the deserializer to decide whether a bare
// string scalar should become a Matcher variant.
func IsRegistered(key string) bool {
	_, ok := registry[key]
	return ok
}

// ----------------------------------------------------------------------------
// MatcherDefinition

// MatcherDefinition is a parsed "$name args" source string: the
// matcher's registered key plus its (already-parsed) argument value.
type MatcherDefinition struct {
	Key  string
	Args Value
}

// Matches applies m against value using the registered processor for
// m.Key, returning MissingMatcher if none is registered.
func (m *MatcherDefinition) Matches(value Value) (bool, error) {
	proc, ok := Lookup(m.Key)
	if !ok {
		return false, MissingMatcher{Key: m.Key}
	}
	return proc.IsMatch(m.Args, value)
}

// String serializes m back to its "$name args" source form.
func (m *MatcherDefinition) String() string {
	if m.Args.IsNull() {
		return m.Key
	}
	argStr := m.Args.Display()
	if m.Args.Kind() == String {
		argStr = m.Args.Str()
	}
	return strings.TrimSpace(m.Key + " " + argStr)
}

// ParseMatcherDefinition attempts to parse s as "$<name> [<args>]"
// where $<name> is registered. It returns ok=false (not an error) when
// s does not begin with a registered matcher key, so that callers fall
// back to treating s as a plain string.
//
// A literal string that would otherwise parse as a matcher can be
// escaped with a leading backslash, e.g. `\$exists` deserializes to
// the plain string "$exists" rather than the $exists matcher. Callers
// that decode scalars (see yaml.go) strip this escape before reaching
// ParseMatcherDefinition, so it never sees the backslash itself.
func ParseMatcherDefinition(s string) (def *MatcherDefinition, ok bool) {
	if !strings.HasPrefix(s, "$") {
		return nil, false
	}
	head := s
	rest := ""
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		head = s[:i]
		rest = strings.TrimSpace(s[i+1:])
	}
	if !IsRegistered(head) {
		return nil, false
	}
	args := parseArgs(rest)
	return &MatcherDefinition{Key: head, Args: args}, true
}

// parseArgs parses the remainder of a matcher source string: first as
// JSON, then as a YAML scalar, finally falling back to a plain string.
// An empty remainder parses to Null (ignored by most matchers).
func parseArgs(rest string) Value {
	if rest == "" {
		return NewNull()
	}
	if v, ok := parseJSONValue(rest); ok {
		return v
	}
	if v, ok := parseYAMLScalar(rest); ok {
		return v
	}
	return NewString(rest)
}
