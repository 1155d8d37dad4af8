// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vars

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vdobler/capti/mvalue"
)

// ExtractError describes a template and observed string that cannot
// be reconciled into a set of captures (spec §7 ExtractError).
// Store.Extract does not return it: it reports that case as ok=false.
type ExtractError struct {
	Template string
	Observed string
}

func (e ExtractError) Error() string {
	return fmt.Sprintf("vars: template %q does not match observed %q", e.Template, e.Observed)
}

// buildExtractionRegex turns a "${NAME}" template into an anchored
// regex with one non-greedy named capture group per hole, escaping
// every literal run of text in between. Grounded on spec §4.F: "build
// a regex by escaping literal text and replacing each ${NAME} with a
// non-greedy named capture (?P<NAME>.+?), anchored ^…$."
func buildExtractionRegex(template string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	rest := template
	for {
		loc := tokenRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		b.WriteString(regexp.QuoteMeta(rest[:loc[0]]))
		name := rest[loc[2]:loc[3]]
		b.WriteString(fmt.Sprintf("(?P<%s>.+?)", name))
		rest = rest[loc[1]:]
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Extract matches template against observed and, on success, assigns
// every named capture into s as a String value, returning the
// captures. It reports ok=false (not an error) when the template
// simply does not match; ExtractError is reserved for the structural
// mismatches detected one level up, in the response extractor walk.
func (s *Store) Extract(template, observed string) (captures map[string]string, ok bool, err error) {
	re, err := buildExtractionRegex(template)
	if err != nil {
		return nil, false, fmt.Errorf("vars: malformed extraction template %q: %w", template, err)
	}
	m := re.FindStringSubmatch(observed)
	if m == nil {
		return nil, false, nil
	}
	captures = make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name == "" {
			continue
		}
		captures[name] = m[i]
		s.Set(name, mvalue.NewString(m[i]))
	}
	return captures, true, nil
}
