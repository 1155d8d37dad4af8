// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vars

import (
	"log"
	"regexp"
	"strconv"

	"github.com/vdobler/capti/mvalue"
)

var (
	wholeTokenRe = regexp.MustCompile(`^\$\{(\w+)\}$`)
	tokenRe      = regexp.MustCompile(`\$\{(\w+)\}`)
)

// CycleWarning describes a self-referencing variable chain detected
// during substitution. It is not an error: resolution simply leaves
// the offending token unsubstituted and the caller is expected to log
// it (spec §4.F: "the event is surfaced as a warning").
type CycleWarning struct {
	Name string
	Path []string
}

// Logger receives CycleWarning notices. Defaults to the standard
// logger; set to nil to silence warnings (tests do this to keep
// output quiet).
var Logger = log.Default()

func warnCycle(w CycleWarning) {
	if Logger == nil {
		return
	}
	Logger.Printf("vars: cycle detected resolving %q, path=%v", w.Name, w.Path)
}

// Substitute recursively resolves every ${NAME} token reachable from
// v. A string that is exactly "${NAME}" is whole-value substitution:
// the resolved value replaces v's slot verbatim, preserving its
// variant. A string containing one or more "${NAME}" tokens among
// other text is inline substitution: each token becomes the string
// form of its resolved value and the host stays a String. Sequences
// and mappings recurse into every child, including one produced by a
// whole-value resolution itself (spec §4.F: "the resolved value is
// itself re-substituted until no substitutions occur"), so a variable
// resolving to a Mapping/Sequence that still holds "${...}" tokens
// gets those resolved too. Cycles are detected with a visited-name set
// carried through the whole call and cause the offending reference to
// be left unsubstituted, per spec §4.F.
func (s *Store) Substitute(v mvalue.Value) (mvalue.Value, error) {
	return s.substituteValue(v, nil)
}

func (s *Store) substituteValue(v mvalue.Value, visited []string) (mvalue.Value, error) {
	switch v.Kind() {
	case mvalue.String:
		return s.substituteString(v, visited)
	case mvalue.Sequence:
		seq := v.Seq()
		out := make([]mvalue.Value, len(seq))
		for i, e := range seq {
			r, err := s.substituteValue(e, visited)
			if err != nil {
				return v, err
			}
			out[i] = r
		}
		return mvalue.NewSequence(out), nil
	case mvalue.Mapping:
		pairs := v.Map().Pairs()
		out := make([]mvalue.Pair, len(pairs))
		for i, p := range pairs {
			r, err := s.substituteValue(p.Value, visited)
			if err != nil {
				return v, err
			}
			out[i] = mvalue.Pair{Key: p.Key, Value: r}
		}
		m, err := mvalue.NewMap(out...)
		if err != nil {
			return v, err
		}
		return mvalue.NewMapping(m), nil
	default:
		return v, nil
	}
}

func (s *Store) substituteString(v mvalue.Value, visited []string) (mvalue.Value, error) {
	str := v.Str()

	if m := wholeTokenRe.FindStringSubmatch(str); m != nil {
		resolved, found := s.resolveName(m[1], visited)
		if !found {
			return v, nil
		}
		return resolved, nil
	}

	if !tokenRe.MatchString(str) {
		return v, nil
	}

	result := tokenRe.ReplaceAllStringFunc(str, func(tok string) string {
		name := tok[2 : len(tok)-1]
		resolved, found := s.resolveName(name, visited)
		if !found {
			return tok
		}
		return displayString(resolved)
	})
	return mvalue.NewString(result), nil
}

// resolveName looks up name and, if its value itself contains
// tokens, substitutes those too (recursively, cycle-guarded). It
// returns found=false both when the name is unresolvable and when a
// cycle was detected for it (in which case a CycleWarning was logged
// and the caller must leave the original text untouched).
func (s *Store) resolveName(name string, visited []string) (mvalue.Value, bool) {
	for _, v := range visited {
		if v == name {
			warnCycle(CycleWarning{Name: name, Path: append(append([]string(nil), visited...), name)})
			return mvalue.Value{}, false
		}
	}
	v, ok := s.lookup(name)
	if !ok {
		return mvalue.Value{}, false
	}
	resolved, err := s.substituteValue(v, append(visited, name))
	if err != nil {
		return mvalue.Value{}, false
	}
	return resolved, true
}

// displayString renders a resolved value as the text inserted into an
// inline substitution; strings insert their raw content (not quoted),
// everything else falls back to Display.
func displayString(v mvalue.Value) string {
	if v.Kind() == mvalue.String {
		return v.Str()
	}
	if v.Kind() == mvalue.Number {
		return v.Num().String()
	}
	if v.Kind() == mvalue.Bool {
		return strconv.FormatBool(v.Bool())
	}
	return v.Display()
}
