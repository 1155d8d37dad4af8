// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vdobler/capti/report"
	"github.com/vdobler/capti/vars"
)

// TestDefinition is a single declared test within a Suite (spec §3).
// Define holds the test-local variables that shadow the suite's
// variables only during this test's substitution pass.
type TestDefinition struct {
	Name          string
	Description   string
	ShouldFail    bool
	Request       Request
	Expect        Response
	Extract       *Extractor
	PrintResponse bool
	Define        *vars.Store
}

// Run executes one test's pipeline against client using store for
// substitution (and, when extract is true, for extraction): substitute
// vars → build request → send → compare → extract → invert for
// should_fail (spec §4.K point "Test orchestration").
//
// extract must be false for tests run inside a parallel suite (spec
// §4.I, §4.K); passing true there is a caller bug, not a runtime
// condition, so it is asserted via ParallelError from the caller
// (see Suite.Execute), not here.
func (td TestDefinition) Run(ctx context.Context, client *http.Client, store *vars.Store, extract bool) report.TestResult {
	effective := vars.Merge(store, td.Define)

	req, err := td.Request.Substitute(effective)
	if err != nil {
		return report.NewError(td.Name, fmt.Errorf("substituting request: %w", err))
	}
	httpReq, err := req.Build(ctx)
	if err != nil {
		return report.NewError(td.Name, fmt.Errorf("building request: %w", err))
	}

	expect, err := substituteResponse(effective, td.Expect)
	if err != nil {
		return report.NewError(td.Name, fmt.Errorf("substituting expectations: %w", err))
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return report.NewError(td.Name, fmt.Errorf("sending request: %w", err))
	}
	got, err := FromHTTPResponse(httpResp)
	if err != nil {
		return report.NewError(td.Name, fmt.Errorf("capturing response: %w", err))
	}

	cmp, err := expect.Compare(got)
	if err != nil {
		return report.NewError(td.Name, fmt.Errorf("comparing response: %w", err))
	}

	result := toResult(td.Name, cmp)
	result = invertForShouldFail(td.Name, result, td.ShouldFail)

	if result.Outcome == report.Passed && extract && td.Extract != nil {
		if err := td.Extract.Extract(store, got); err != nil {
			return report.NewError(td.Name, fmt.Errorf("extracting: %w", err))
		}
	}
	return result
}

func toResult(name string, cmp CompareResult) report.TestResult {
	if cmp.Passed {
		return report.NewPass(name)
	}
	return report.NewFailure(name, cmp.Reason, cmp.Context)
}

// invertForShouldFail implements spec §4.K: a passing result with
// should_fail=true becomes Failed("Expected failure, but test
// passed."); a failing result with should_fail=true becomes Passed.
// Errors are never inverted.
func invertForShouldFail(name string, r report.TestResult, shouldFail bool) report.TestResult {
	if !shouldFail || r.Outcome == report.Errored {
		return r
	}
	switch r.Outcome {
	case report.Passed:
		return report.TestResult{Name: name, Outcome: report.Failed, Reason: "Expected failure, but test passed."}
	case report.Failed:
		return report.NewPass(name)
	}
	return r
}

func substituteResponse(store *vars.Store, exp Response) (Response, error) {
	out := exp
	if !exp.Body.IsNull() {
		body, err := store.Substitute(exp.Body)
		if err != nil {
			return exp, err
		}
		out.Body = body
	}
	if exp.Headers != nil {
		headers, err := substituteMapValues(store, exp.Headers)
		if err != nil {
			return exp, err
		}
		out.Headers = headers
	}
	return out, nil
}
