// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"fmt"

	"github.com/vdobler/capti/mvalue"
	"github.com/vdobler/capti/vars"
)

// Extractor is the declarative shape mirroring a response that drives
// store-extraction against a concrete response (spec §4.I). Headers
// is nil when the extractor declares no header captures.
type Extractor struct {
	Body    mvalue.Value
	Headers *mvalue.Map
}

// Extract walks e against got, populating store with every captured
// named value (spec §4.I). It requires a mutable store: callers in
// parallel suites must never call this (see ParallelError, enforced
// by Suite.executeParallel in suite.go, not here).
func (e Extractor) Extract(store *vars.Store, got Response) error {
	if !e.Body.IsNull() {
		if err := extractValue(store, "body", e.Body, got.Body); err != nil {
			return err
		}
	}
	if e.Headers != nil {
		for _, p := range e.Headers.Pairs() {
			if p.Key.Kind() != mvalue.String || p.Value.Kind() != mvalue.String {
				return ExtractError{Path: "headers", Msg: "header extraction template must be string/string"}
			}
			name := p.Key.Str()
			gotVal, ok := got.Headers.GetStr(name)
			if !ok {
				return ExtractError{Path: "headers." + name, Msg: "header not present in response"}
			}
			if err := extractString(store, "headers."+name, p.Value.Str(), gotVal.Str()); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractValue implements spec §4.I's recursive walk: Null on the
// expected side means "ignore", mappings recurse by key, sequences by
// index, and a String leaf is treated as an extraction template
// against the observed string.
func extractValue(store *vars.Store, path string, tmpl, got mvalue.Value) error {
	switch tmpl.Kind() {
	case mvalue.Null:
		return nil
	case mvalue.Mapping:
		if got.Kind() != mvalue.Mapping {
			return ExtractError{Path: path, Msg: fmt.Sprintf("expected a mapping, observed %s", got.Kind())}
		}
		for _, p := range tmpl.Map().Pairs() {
			key := p.Key.Display()
			if p.Key.Kind() == mvalue.String {
				key = p.Key.Str()
			}
			childGot, ok := got.Map().Get(p.Key)
			if !ok {
				return ExtractError{Path: path + "." + key, Msg: "key missing in observed value"}
			}
			if err := extractValue(store, path+"."+key, p.Value, childGot); err != nil {
				return err
			}
		}
		return nil
	case mvalue.Sequence:
		if got.Kind() != mvalue.Sequence {
			return ExtractError{Path: path, Msg: fmt.Sprintf("expected a sequence, observed %s", got.Kind())}
		}
		for i, e := range tmpl.Seq() {
			if i >= len(got.Seq()) {
				return ExtractError{Path: fmt.Sprintf("%s[%d]", path, i), Msg: "index missing in observed value"}
			}
			if err := extractValue(store, fmt.Sprintf("%s[%d]", path, i), e, got.Seq()[i]); err != nil {
				return err
			}
		}
		return nil
	case mvalue.String:
		if got.Kind() != mvalue.String {
			return ExtractError{Path: path, Msg: fmt.Sprintf("expected a string template, observed %s", got.Kind())}
		}
		return extractString(store, path, tmpl.Str(), got.Str())
	default:
		return ExtractError{Path: path, Msg: fmt.Sprintf("unsupported extraction template kind %s", tmpl.Kind())}
	}
}

func extractString(store *vars.Store, path, template, observed string) error {
	_, ok, err := store.Extract(template, observed)
	if err != nil {
		return ExtractError{Path: path, Msg: err.Error()}
	}
	if !ok {
		return ExtractError{Path: path, Msg: fmt.Sprintf("template %q does not match observed %q", template, observed)}
	}
	return nil
}
