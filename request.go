// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vdobler/capti/mvalue"
	"github.com/vdobler/capti/vars"
)

// allowedMethods is the closed set of verbs spec §3 permits.
var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PATCH": true, "PUT": true, "DELETE": true,
}

// Request is the declarative shape of an HTTP request (spec §3, §4.G):
// method, URL, ordered query params, headers, and an optional body.
// Grounded on the teacher's ht.go Request struct, generalized from
// net/url.Values (which does not preserve single-value insertion
// order across separate keys) to an mvalue.Map so that params are
// joined in the declared order, per spec §4.G point 1.
type Request struct {
	Method  string
	URL     string
	Params  *mvalue.Map
	Headers *mvalue.Map
	Body    mvalue.Value
}

// Substitute returns a copy of r with every ${NAME} token resolved
// against store: URL, parameter values, header values, and body all
// recurse through vars.Store.Substitute, per spec §4.G ("Variable
// substitution runs before building against URL, params (values
// only), headers, and body recursively").
func (r Request) Substitute(store *vars.Store) (Request, error) {
	out := r

	url, err := store.Substitute(mvalue.NewString(r.URL))
	if err != nil {
		return r, err
	}
	out.URL = url.Str()

	if r.Params != nil {
		params, err := substituteMapValues(store, r.Params)
		if err != nil {
			return r, err
		}
		out.Params = params
	}
	if r.Headers != nil {
		headers, err := substituteMapValues(store, r.Headers)
		if err != nil {
			return r, err
		}
		out.Headers = headers
	}
	if !r.Body.IsNull() {
		body, err := store.Substitute(r.Body)
		if err != nil {
			return r, err
		}
		out.Body = body
	}
	return out, nil
}

func substituteMapValues(store *vars.Store, m *mvalue.Map) (*mvalue.Map, error) {
	pairs := m.Pairs()
	out := make([]mvalue.Pair, len(pairs))
	for i, p := range pairs {
		v, err := store.Substitute(p.Value)
		if err != nil {
			return nil, err
		}
		out[i] = mvalue.Pair{Key: p.Key, Value: v}
	}
	return mvalue.NewMap(out...)
}

// Build constructs a *http.Request from r, per spec §4.G:
//  1. URL = url + "?" + join(params, "&"), params appended verbatim
//     with no percent-encoding (spec §9 open question: preserved).
//  2. Method dispatch over the closed verb set.
//  3. Headers must be string/string; any other shape errors as
//     HTTPHeaderError.
//  4. A present body is JSON-serialized.
func (r Request) Build(ctx context.Context) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = "GET"
	}
	if !allowedMethods[method] {
		return nil, fmt.Errorf("capti: unsupported method %q", method)
	}

	url := r.URL
	if r.Params != nil && r.Params.Len() > 0 {
		var parts []string
		for _, p := range r.Params.Pairs() {
			if p.Key.Kind() != mvalue.String || p.Value.Kind() != mvalue.String {
				return nil, VariableError{Name: p.Key.Display(),
					Msg: fmt.Sprintf("query params must be string/string, got value %s", p.Value.Display())}
			}
			parts = append(parts, p.Key.Str()+"="+p.Value.Str())
		}
		url = url + "?" + strings.Join(parts, "&")
	}

	var bodyReader *bytes.Reader
	if !r.Body.IsNull() {
		raw, err := json.Marshal(r.Body.ToInterface())
		if err != nil {
			return nil, fmt.Errorf("capti: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("capti: building request: %w", err)
	}

	if r.Headers != nil {
		for _, p := range r.Headers.Pairs() {
			if p.Key.Kind() != mvalue.String || p.Value.Kind() != mvalue.String {
				return nil, HTTPHeaderError{Name: p.Key.Display(), Value: p.Value.Display(),
					Err: fmt.Errorf("headers must be string/string")}
			}
			req.Header.Set(p.Key.Str(), p.Value.Str())
		}
	}
	if !r.Body.IsNull() && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
