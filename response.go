// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/vdobler/capti/mvalue"
)

// Response is the declarative expected shape, and also the concrete
// form captured from a live HTTP response (spec §3, §4.H). Headers
// is nil when unset ("don't care").
type Response struct {
	Status  mvalue.Status
	Headers *mvalue.Map
	Body    mvalue.Value
}

// FromHTTPResponse captures resp into a Response: status becomes an
// exact code, headers become a Mapping of string to string (non-UTF8
// values are dropped, mirroring the teacher's response capture in
// response/response.go), and the body is read fully then parsed as
// JSON, falling back to the raw string on parse failure (spec §4.H).
func FromHTTPResponse(resp *http.Response) (Response, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("capti: reading response body: %w", err)
	}

	// A header name may repeat (multiple Set-Cookie is routine with the
	// per-suite cookie jar; Vary/Link/WWW-Authenticate can too), so this
	// builds the map with Set rather than feeding NewMap duplicate pairs:
	// last value wins, matching the original's HeaderMap -> HashMap
	// collapse (src/suite/response/response_headers.rs).
	headers, err := mvalue.NewMap()
	if err != nil {
		return Response{}, err
	}
	for name, values := range resp.Header {
		for _, v := range values {
			if !utf8.ValidString(v) {
				continue
			}
			headers.Set(mvalue.NewString(strings.ToLower(name)), mvalue.NewString(v))
		}
	}

	body, ok := mvalue.FromJSON(raw)
	if !ok {
		body = mvalue.NewString(string(raw))
	}

	return Response{
		Status:  mvalue.ExactStatus(resp.StatusCode),
		Headers: headers,
		Body:    body,
	}, nil
}

// lowercaseHeaderKeys returns a copy of m with every string key
// lowercased, used before comparing expected headers (spec §4.H point
// 2: "lowercase the expected keys before comparing").
func lowercaseHeaderKeys(m *mvalue.Map) (*mvalue.Map, error) {
	if m == nil {
		return nil, nil
	}
	pairs := m.Pairs()
	out := make([]mvalue.Pair, len(pairs))
	for i, p := range pairs {
		key := p.Key
		if key.Kind() == mvalue.String {
			key = mvalue.NewString(strings.ToLower(key.Str()))
		}
		out[i] = mvalue.Pair{Key: key, Value: p.Value}
	}
	return mvalue.NewMap(out...)
}

// CompareResult is the outcome of comparing an expected Response
// against a captured one: exactly one of Passed or (Reason, Context)
// is meaningful.
type CompareResult struct {
	Passed  bool
	Reason  string
	Context mvalue.MatchContext
}

// Compare implements spec §4.H: status, then headers, then body, each
// producing a Failed(reason, context) on the first mismatching
// dimension (status/headers/body are compared in that fixed order;
// comparisons do not continue past the first failing dimension, but
// within a dimension every mismatching child is still reported via
// MatchContext accumulation — see mvalue.GetContext).
func (exp Response) Compare(got Response) (CompareResult, error) {
	ok, err := exp.Status.Matches(got.Status)
	if err != nil {
		return CompareResult{}, fmt.Errorf("capti: comparing status: %w", err)
	}
	if !ok {
		return CompareResult{
			Reason:  "Status does not match.",
			Context: exp.Status.GetContext(got.Status),
		}, nil
	}

	if exp.Headers != nil && exp.Headers.Len() > 0 {
		expHeaders, err := lowercaseHeaderKeys(exp.Headers)
		if err != nil {
			return CompareResult{}, err
		}
		expVal := mvalue.NewMapping(expHeaders)
		gotVal := mvalue.NewMapping(got.Headers)
		ok, err := expVal.Matches(gotVal)
		if err != nil {
			return CompareResult{}, fmt.Errorf("capti: comparing headers: %w", err)
		}
		if !ok {
			return CompareResult{
				Reason:  "Headers do not match.",
				Context: expVal.GetContext(gotVal),
			}, nil
		}
	}

	if !exp.Body.IsNull() {
		ok, err := exp.Body.Matches(got.Body)
		if err != nil {
			return CompareResult{}, fmt.Errorf("capti: comparing body: %w", err)
		}
		if !ok {
			return CompareResult{
				Reason:  "Body does not match.",
				Context: exp.Body.GetContext(got.Body),
			}, nil
		}
	}

	return CompareResult{Passed: true}, nil
}
