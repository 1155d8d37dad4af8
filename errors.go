// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package capti implements a declarative HTTP-API test runner: suites
// of YAML-declared tests with a variable store, a matcher-aware
// response comparator, and lifecycle hooks, grounded in the structure
// of github.com/vdobler/ht (the teacher) and generalized to the
// request/expect/extract/variable/suite model described by this
// project's specification.
package capti

import "fmt"

// HTTPHeaderError is raised when a header name or value cannot be
// sent as an HTTP header, carrying the offending pair (spec §4.G).
type HTTPHeaderError struct {
	Name  string
	Value string
	Err   error
}

func (e HTTPHeaderError) Error() string {
	return fmt.Sprintf("capti: invalid header %q: %q: %s", e.Name, e.Value, e.Err)
}

func (e HTTPHeaderError) Unwrap() error { return e.Err }

// VariableError is raised when substitution produces a non-string
// result where a string is required, e.g. a query parameter value
// that resolved to a mapping (spec §7 VariableError).
type VariableError struct {
	Name string
	Msg  string
}

func (e VariableError) Error() string {
	return fmt.Sprintf("capti: variable %q: %s", e.Name, e.Msg)
}

// ParallelError is raised when a test in a parallel suite carries an
// Extractor; extraction requires the sequential, mutable-store
// execution mode (spec §4.I, §4.K).
type ParallelError struct {
	Test string
}

func (e ParallelError) Error() string {
	return fmt.Sprintf("capti: test %q: extraction is not permitted in a parallel suite", e.Test)
}

// ExtractError is raised when the extractor's declared shape does not
// structurally match the captured response (spec §4.I, §7).
type ExtractError struct {
	Path string
	Msg  string
}

func (e ExtractError) Error() string {
	return fmt.Sprintf("capti: extract at %s: %s", e.Path, e.Msg)
}
