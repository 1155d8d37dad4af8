// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/vdobler/capti/report"
	"github.com/vdobler/capti/setup"
	"github.com/vdobler/capti/vars"
)

// Setup holds one suite's four optional lifecycle lists (spec §4.J).
type Setup struct {
	BeforeAll  []setup.Instruction
	BeforeEach []setup.Instruction
	AfterEach  []setup.Instruction
	AfterAll   []setup.Instruction
}

// Suite is one declared suite: its tests, variables, and setup
// lifecycle (spec §3, §4.K).
type Suite struct {
	Name     string
	Parallel bool
	Vars     *vars.Store
	Setup    Setup
	Tests    []TestDefinition

	// MaxConcurrent bounds how many tests of a parallel suite run at
	// once; zero or negative means "all of them" (spec §4.K point 2
	// does not itself cap concurrency; the cap is an implementation
	// courtesy grounded on the teacher's ExecuteConcurrent).
	MaxConcurrent int
}

// newClient builds the per-suite HTTP client, with its own cookie jar
// so that cookies set by one test are visible to the next (spec §5
// "Per-suite HTTP client and its cookie jar: shared across that
// suite's tests"). Grounded on the teacher's ht/suite.go
// Collection.ExecuteConcurrent(maxConcurrent, jar *cookiejar.Jar), but
// built from the standard library's net/http/cookiejar plus
// golang.org/x/net/publicsuffix instead of the teacher's bespoke
// github.com/vdobler/ht/cookiejar package.
func newClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("capti: building cookie jar: %w", err)
	}
	return &http.Client{Jar: jar}, nil
}

// Execute runs the suite per spec §4.K: before_all, then every test
// (parallel or sequential per s.Parallel), then after_all, aggregating
// results into a report.SuiteReport. after_all failures are returned
// as the error (aggregated via go-multierror inside setup.Run); an
// after_each failure is added to the report as a separate Errored
// entry named "<test> (after_each)". Neither changes the result of the
// test itself. A before_all failure aborts the suite; a before_each
// failure records that test as Errored without sending its request.
func (s *Suite) Execute(ctx context.Context) (*report.SuiteReport, error) {
	sr := &report.SuiteReport{Suite: s.Name}

	client, err := newClient()
	if err != nil {
		return sr, err
	}

	if err := setup.Run(ctx, s.Setup.BeforeAll, true); err != nil {
		return sr, fmt.Errorf("capti: suite %q before_all: %w", s.Name, err)
	}

	if s.Parallel {
		if err := s.executeParallel(ctx, client, sr); err != nil {
			return sr, err
		}
	} else {
		if err := s.executeSequential(ctx, client, sr); err != nil {
			return sr, err
		}
	}

	if err := setup.Run(ctx, s.Setup.AfterAll, false); err != nil {
		return sr, fmt.Errorf("capti: suite %q after_all: %w", s.Name, err)
	}

	return sr, nil
}

// executeSequential implements spec §4.K point 3: tests run in
// declared order against a single mutable store, so a variable
// extracted by test N is visible to test N+1.
func (s *Suite) executeSequential(ctx context.Context, client *http.Client, sr *report.SuiteReport) error {
	store := s.Vars
	for _, td := range s.Tests {
		if err := setup.Run(ctx, s.Setup.BeforeEach, true); err != nil {
			sr.Add(report.NewError(td.Name, fmt.Errorf("before_each: %w", err)))
			continue
		}

		result := td.Run(ctx, client, store, true)
		sr.Add(result)

		if err := setup.Run(ctx, s.Setup.AfterEach, false); err != nil {
			sr.Add(report.NewError(td.Name+" (after_each)", err))
		}
	}
	return nil
}

// executeParallel implements spec §4.K point 2: all tests launch
// concurrently, and each test substitutes its variables against the
// suite's store inside its own worker, just before its request.
// Substitution is not done for all tests up front; nothing writes the
// store during this phase. Extraction is forbidden here;
// a test that declares an Extractor fails fast with ParallelError
// before any request is sent (spec §4.I).
func (s *Suite) executeParallel(ctx context.Context, client *http.Client, sr *report.SuiteReport) error {
	for _, td := range s.Tests {
		if td.Extract != nil {
			sr.Add(report.NewError(td.Name, ParallelError{Test: td.Name}))
		}
	}

	max := s.MaxConcurrent
	if max <= 0 || max > len(s.Tests) {
		max = len(s.Tests)
	}
	if max == 0 {
		return nil
	}

	type job struct {
		td TestDefinition
	}
	jobs := make(chan job, max)
	results := make(chan report.TestResult, len(s.Tests)*2)

	var wg sync.WaitGroup
	wg.Add(max)
	for i := 0; i < max; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if j.td.Extract != nil {
					continue // already reported above
				}
				if err := setup.Run(ctx, s.Setup.BeforeEach, true); err != nil {
					results <- report.NewError(j.td.Name, fmt.Errorf("before_each: %w", err))
					continue
				}
				result := j.td.Run(ctx, client, s.Vars, false)
				results <- result
				if err := setup.Run(ctx, s.Setup.AfterEach, false); err != nil {
					results <- report.NewError(j.td.Name+" (after_each)", err)
				}
			}
		}()
	}
	for _, td := range s.Tests {
		jobs <- job{td: td}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		sr.Add(r)
	}
	return nil
}
