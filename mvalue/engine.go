// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import "fmt"

// Matches recursively compares the expected value exp against an
// observed value got. Null on the expected side is a wildcard and
// always matches. A Matcher on the expected side dispatches to its
// registered MatchProcessor. Sequences are compared element-wise by
// index (no reordering), with excess observed elements ignored and
// missing observed elements compared against Null. Mappings use
// subset semantics: every key present in exp must be present (or
// implied-Null) in got; extra keys in got are ignored.
func (exp Value) Matches(got Value) (bool, error) {
	if exp.kind == Null {
		return true, nil
	}
	if exp.kind == Matcher {
		return exp.matcher.Matches(got)
	}

	switch exp.kind {
	case Bool:
		return got.kind == Bool && exp.boolean == got.boolean, nil
	case Number:
		return got.kind == Number && exp.number.Float == got.number.Float && exp.number.AsFloat64() == got.number.AsFloat64(), nil
	case String:
		return got.kind == String && exp.str == got.str, nil
	case Sequence:
		if got.kind != Sequence {
			return false, nil
		}
		for i, e := range exp.seq {
			var g Value
			if i < len(got.seq) {
				g = got.seq[i]
			} else {
				g = NewNull()
			}
			ok, err := e.Matches(g)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Mapping:
		if got.kind != Mapping {
			return false, nil
		}
		for _, p := range exp.mapping.Pairs() {
			g, ok := got.mapping.Get(p.Key)
			if !ok {
				g = NewNull()
			}
			m, err := p.Value.Matches(g)
			if err != nil {
				return false, err
			}
			if !m {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("mvalue: cannot match value of kind %s", exp.kind)
}

// GetContext builds the MatchContext explaining why exp does not
// match got. It never aborts on the first mismatch inside a
// container: mappings and sequences accumulate a context entry for
// every diverging child so the report shows every divergence, not just
// the first.
func (exp Value) GetContext(got Value) MatchContext {
	if exp.kind == Null {
		return NewContext()
	}

	if exp.kind == Matcher {
		ok, err := exp.matcher.Matches(got)
		if err == nil && ok {
			return NewContext()
		}
		reason := fmt.Sprintf("Match failed at %s matches %s", exp.matcher.String(), got.Display())
		if err != nil {
			reason = fmt.Sprintf("Match failed at %s matches %s: %s", exp.matcher.String(), got.Display(), err)
		}
		return NewContext(reason)
	}

	switch exp.kind {
	case Sequence:
		if got.kind != Sequence {
			return NewContext(fmt.Sprintf("Assertion failed at %s == %s", exp.Display(), got.Display()))
		}
		var lines []string
		for i, e := range exp.seq {
			var g Value
			if i < len(got.seq) {
				g = got.seq[i]
			} else {
				g = NewNull()
			}
			child := e.GetContext(g)
			if !child.Empty() {
				lines = append(lines, child.lines...)
				lines = append(lines, fmt.Sprintf("Mismatch at index %d", i))
			}
		}
		return MatchContext{lines: lines}
	case Mapping:
		if got.kind != Mapping {
			return NewContext(fmt.Sprintf("Assertion failed at %s == %s", exp.Display(), got.Display()))
		}
		var lines []string
		for _, p := range exp.mapping.Pairs() {
			g, ok := got.mapping.Get(p.Key)
			if !ok {
				g = NewNull()
			}
			child := p.Value.GetContext(g)
			if !child.Empty() {
				lines = append(lines, child.lines...)
				lines = append(lines, fmt.Sprintf("Mismatch at key %s", p.Key.Display()))
			}
		}
		return MatchContext{lines: lines}
	default:
		ok, err := exp.Matches(got)
		if err == nil && ok {
			return NewContext()
		}
		return NewContext(fmt.Sprintf("Assertion failed at %s == %s", exp.Display(), got.Display()))
	}
}
