// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import "strings"

// MatchContext is an ordered trail of human-readable lines explaining
// a mismatch path. Lines are accumulated deepest-child-first: Absorb
// prepends the child's lines so that the most specific reason for a
// failure appears before the surrounding path that led to it.
type MatchContext struct {
	lines []string
}

// NewContext builds a MatchContext out of lines, in the order given.
func NewContext(lines ...string) MatchContext {
	return MatchContext{lines: append([]string(nil), lines...)}
}

// Empty reports whether c carries no explanation at all.
func (c MatchContext) Empty() bool { return len(c.lines) == 0 }

// Lines returns the accumulated trail, deepest reason first.
func (c MatchContext) Lines() []string { return c.lines }

// Absorb prepends child's lines to c's own, then appends line (the
// context local to the current position, e.g. "Mismatch at key foo").
// This is the composition operator described by the data model: the
// deepest child's context always precedes the path that contains it.
func (c MatchContext) Absorb(child MatchContext, line string) MatchContext {
	out := make([]string, 0, len(child.lines)+len(c.lines)+1)
	out = append(out, child.lines...)
	out = append(out, c.lines...)
	if line != "" {
		out = append(out, line)
	}
	return MatchContext{lines: out}
}

// Append returns c followed by other's lines, used when joining several
// independent child contexts (e.g. multiple mismatching map keys).
func (c MatchContext) Append(other MatchContext) MatchContext {
	out := make([]string, 0, len(c.lines)+len(other.lines))
	out = append(out, c.lines...)
	out = append(out, other.lines...)
	return MatchContext{lines: out}
}

// String renders the trail as one line per entry.
func (c MatchContext) String() string {
	return strings.Join(c.lines, "\n")
}
