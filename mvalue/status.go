// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// status.go provides the specialized matcher for a HTTP status:
// either an exact code or a class identifier ("2xx".."5xx").

package mvalue

import (
	"fmt"
	"strconv"
)

// StatusForm distinguishes the three shapes a Status may take.
type StatusForm int

const (
	StatusUnset StatusForm = iota
	StatusExact
	StatusClass
)

// Status is either unset (matches anything), an exact HTTP status
// code, or a class identifier such as "2xx".
type Status struct {
	Form StatusForm
	Code int    // valid when Form == StatusExact
	Class string // valid when Form == StatusClass, e.g. "2xx"
}

// UnsetStatus returns the wildcard Status.
func UnsetStatus() Status { return Status{Form: StatusUnset} }

// ExactStatus returns a Status pinned to an exact HTTP code.
func ExactStatus(code int) Status { return Status{Form: StatusExact, Code: code} }

// ClassStatus returns a Status pinned to a class such as "2xx".
func ClassStatus(class string) Status { return Status{Form: StatusClass, Class: class} }

// MatcherError is returned for malformed or unmatchable Status
// comparisons, e.g. an (exact, class) comparison or a malformed class.
type MatcherError struct {
	Msg string
}

func (e MatcherError) Error() string { return e.Msg }

var classRanges = map[string][2]int{
	"2xx": {200, 300},
	"3xx": {300, 400},
	"4xx": {400, 500},
	"5xx": {500, 600},
}

// ParseStatus parses a YAML/JSON scalar into a Status: an integer
// scalar is an exact status, one of "2xx".."5xx" is a class.
func ParseStatus(v Value) (Status, error) {
	switch v.Kind() {
	case Null:
		return UnsetStatus(), nil
	case Number:
		n := v.Num()
		if n.Float {
			return Status{}, MatcherError{Msg: fmt.Sprintf("status code must be an integer, got %v", n.Float64)}
		}
		return ExactStatus(int(n.Int)), nil
	case String:
		s := v.Str()
		if _, ok := classRanges[s]; ok {
			return ClassStatus(s), nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return ExactStatus(n), nil
		}
		return Status{}, MatcherError{Msg: fmt.Sprintf("malformed status class %q", s)}
	}
	return Status{}, MatcherError{Msg: fmt.Sprintf("status must be a number or class string, got %s", v.Kind())}
}

// Matches compares an expected Status (the receiver) against an
// observed one. Unset expected matches everything.
func (exp Status) Matches(got Status) (bool, error) {
	if exp.Form == StatusUnset {
		return true, nil
	}
	switch exp.Form {
	case StatusExact:
		switch got.Form {
		case StatusExact:
			return exp.Code == got.Code, nil
		case StatusClass:
			return false, MatcherError{Msg: "cannot match an exact status against a class"}
		}
	case StatusClass:
		rng, ok := classRanges[exp.Class]
		if !ok {
			return false, MatcherError{Msg: fmt.Sprintf("malformed class %q", exp.Class)}
		}
		switch got.Form {
		case StatusExact:
			return got.Code >= rng[0] && got.Code < rng[1], nil
		case StatusClass:
			return exp.Class == got.Class, nil
		}
	}
	return false, MatcherError{Msg: "malformed status comparison"}
}

// String renders the Status the way it would appear in source YAML.
func (s Status) String() string {
	switch s.Form {
	case StatusExact:
		return strconv.Itoa(s.Code)
	case StatusClass:
		return s.Class
	}
	return ""
}

// GetContext explains a Status mismatch in the same vocabulary as the
// value match engine.
func (exp Status) GetContext(got Status) MatchContext {
	ok, err := exp.Matches(got)
	if err == nil && ok {
		return NewContext()
	}
	reason := fmt.Sprintf("Assertion failed at %s == %s", exp.String(), got.String())
	if err != nil {
		reason = fmt.Sprintf("Assertion failed at %s == %s: %s", exp.String(), got.String(), err)
	}
	return NewContext(reason)
}
