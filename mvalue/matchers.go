// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// matchers.go implements the eleven standard matchers registered at
// package init so that they are available to every deserialized Value
// without any build-time wiring by the caller.

package mvalue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

func init() {
	Register(existsMatcher{})
	Register(absentMatcher{})
	Register(emptyMatcher{})
	Register(regexMatcher{})
	Register(lengthMatcher{})
	Register(includesMatcher{})
	Register(allMatcher{})
	Register(notMatcher{})
	Register(andMatcher{})
	Register(orMatcher{})
	Register(ifMatcher{})
}

// ----------------------------------------------------------------------------
// $exists

type existsMatcher struct{}

func (existsMatcher) Key() string { return "$exists" }

func (existsMatcher) IsMatch(_ Value, value Value) (bool, error) {
	return value.Kind() != Null, nil
}

// ----------------------------------------------------------------------------
// $absent

type absentMatcher struct{}

func (absentMatcher) Key() string { return "$absent" }

func (absentMatcher) IsMatch(_ Value, value Value) (bool, error) {
	return value.Kind() == Null, nil
}

// ----------------------------------------------------------------------------
// $empty

type emptyMatcher struct{}

func (emptyMatcher) Key() string { return "$empty" }

func (emptyMatcher) IsMatch(_ Value, value Value) (bool, error) {
	n, err := value.Len()
	if err != nil {
		return false, fmt.Errorf("$empty: %w", err)
	}
	return n == 0, nil
}

// ----------------------------------------------------------------------------
// $regex

var slashedRegex = regexp.MustCompile(`^/(.*)/$`)

// regexMatcher implements $regex. Its args must be a string wrapped in
// slashes, "/re/"; args without the surrounding slashes are an error.
// A string value matches when re matches anywhere in it; a value of
// any other kind does not match.
type regexMatcher struct{}

func (regexMatcher) Key() string { return "$regex" }

func (regexMatcher) IsMatch(args Value, value Value) (bool, error) {
	if args.Kind() != String {
		return false, fmt.Errorf("$regex: args must be a string, got %s", args.Kind())
	}
	m := slashedRegex.FindStringSubmatch(args.Str())
	if m == nil {
		return false, fmt.Errorf("$regex: args %q must be wrapped in /.../ ", args.Str())
	}
	re, err := regexp.Compile(m[1])
	if err != nil {
		return false, fmt.Errorf("$regex: %w", err)
	}
	if value.Kind() != String {
		return false, nil
	}
	return re.MatchString(value.Str()), nil
}

// ----------------------------------------------------------------------------
// $length

type lengthMatcher struct{}

func (lengthMatcher) Key() string { return "$length" }

func (lengthMatcher) IsMatch(args Value, value Value) (bool, error) {
	op, want, err := parseLengthArgs(args)
	if err != nil {
		return false, fmt.Errorf("$length: %w", err)
	}
	n, err := value.Len()
	if err != nil {
		return false, fmt.Errorf("$length: %w", err)
	}
	got := float64(n)
	switch op {
	case "==":
		return got == want, nil
	case "<=":
		return got <= want, nil
	case ">=":
		return got >= want, nil
	case "<":
		return got < want, nil
	case ">":
		return got > want, nil
	}
	return false, fmt.Errorf("$length: unknown operator %q", op)
}

func parseLengthArgs(args Value) (op string, n float64, err error) {
	switch args.Kind() {
	case Number:
		return "==", args.Num().AsFloat64(), nil
	case String:
		fields := strings.Fields(args.Str())
		switch len(fields) {
		case 1:
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return "", 0, fmt.Errorf("malformed length %q", args.Str())
			}
			return "==", v, nil
		case 2:
			switch fields[0] {
			case "==", "<=", ">=", "<", ">":
			default:
				return "", 0, fmt.Errorf("unknown operator %q", fields[0])
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return "", 0, fmt.Errorf("malformed length %q", args.Str())
			}
			return fields[0], v, nil
		}
		return "", 0, fmt.Errorf("malformed length args %q", args.Str())
	}
	return "", 0, fmt.Errorf("args must be a number or \"op n\" string, got %s", args.Kind())
}

// ----------------------------------------------------------------------------
// $includes

type includesMatcher struct{}

func (includesMatcher) Key() string { return "$includes" }

func (includesMatcher) IsMatch(args Value, value Value) (bool, error) {
	if value.Kind() != Sequence {
		return false, fmt.Errorf("$includes: value must be a sequence, got %s", value.Kind())
	}
	for _, e := range value.Seq() {
		ok, err := args.Matches(e)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ----------------------------------------------------------------------------
// $all

type allMatcher struct{}

func (allMatcher) Key() string { return "$all" }

func (allMatcher) IsMatch(args Value, value Value) (bool, error) {
	if value.Kind() != Sequence {
		return false, fmt.Errorf("$all: value must be a sequence, got %s", value.Kind())
	}
	for _, e := range value.Seq() {
		ok, err := args.Matches(e)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ----------------------------------------------------------------------------
// $not

type notMatcher struct{}

func (notMatcher) Key() string { return "$not" }

func (notMatcher) IsMatch(args Value, value Value) (bool, error) {
	ok, err := args.Matches(value)
	if err != nil {
		return false, fmt.Errorf("$not: %w", err)
	}
	return !ok, nil
}

// ----------------------------------------------------------------------------
// $and

type andMatcher struct{}

func (andMatcher) Key() string { return "$and" }

func (andMatcher) IsMatch(args Value, value Value) (bool, error) {
	if args.Kind() != Sequence {
		return false, fmt.Errorf("$and: args must be a sequence of matchers, got %s", args.Kind())
	}
	for _, m := range args.Seq() {
		ok, err := m.Matches(value)
		if err != nil {
			return false, fmt.Errorf("$and: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ----------------------------------------------------------------------------
// $or

type orMatcher struct{}

func (orMatcher) Key() string { return "$or" }

func (orMatcher) IsMatch(args Value, value Value) (bool, error) {
	if args.Kind() != Sequence {
		return false, fmt.Errorf("$or: args must be a sequence of matchers, got %s", args.Kind())
	}
	for _, m := range args.Seq() {
		ok, err := m.Matches(value)
		if err != nil {
			return false, fmt.Errorf("$or: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ----------------------------------------------------------------------------
// $if

type ifMatcher struct{}

func (ifMatcher) Key() string { return "$if" }

func (ifMatcher) IsMatch(args Value, value Value) (bool, error) {
	if args.Kind() != Sequence || len(args.Seq()) < 2 || len(args.Seq()) > 3 {
		return false, fmt.Errorf("$if: args must be a sequence of 2 or 3 matchers [cond, then, else?]")
	}
	seq := args.Seq()
	cond, then := seq[0], seq[1]
	condOk, err := cond.Matches(value)
	if err != nil {
		return false, fmt.Errorf("$if: condition: %w", err)
	}
	if condOk {
		ok, err := then.Matches(value)
		if err != nil {
			return false, fmt.Errorf("$if: then: %w", err)
		}
		return ok, nil
	}
	if len(seq) == 3 {
		ok, err := seq[2].Matches(value)
		if err != nil {
			return false, fmt.Errorf("$if: else: %w", err)
		}
		return ok, nil
	}
	return true, nil
}
