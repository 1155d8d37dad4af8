// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report defines the structured outcome types produced by a
// suite run and a minimal text rendering of them, grounded on the
// teacher's report.go Status enum and text/template-based renderer
// but without its mgutz/ansi colored-output dependency, which spec §1
// marks an out-of-scope external collaborator ("terminal progress/
// spinner rendering, colored output").
package report

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/vdobler/capti/mvalue"
)

// Outcome is the per-test result enum (spec §4.K point 5: "Passed |
// Failed(FailureReport) | Err(error)"), named report.Outcome (not
// Status) to avoid colliding with mvalue.Status, the HTTP status
// matcher.
type Outcome int

const (
	NotRun Outcome = iota
	Skipped
	Passed
	Failed
	Errored
)

func (o Outcome) String() string {
	switch o {
	case NotRun:
		return "NotRun"
	case Skipped:
		return "Skipped"
	case Passed:
		return "Passed"
	case Failed:
		return "Failed"
	case Errored:
		return "Error"
	default:
		return "Bogus"
	}
}

// TestResult is one test's outcome within a SuiteReport.
type TestResult struct {
	Name    string
	Outcome Outcome
	Reason  string
	Context []string
	Err     error
}

// SuiteReport aggregates every TestResult of one suite run (spec
// §4.K point 5).
type SuiteReport struct {
	Suite   string
	Tests   []TestResult
	Passed  int
	Failed  int
	Errored int
}

// Add appends r to the report and updates the running totals.
func (sr *SuiteReport) Add(r TestResult) {
	sr.Tests = append(sr.Tests, r)
	switch r.Outcome {
	case Passed:
		sr.Passed++
	case Failed:
		sr.Failed++
	case Errored:
		sr.Errored++
	}
}

// Total is the number of tests recorded so far.
func (sr *SuiteReport) Total() int { return len(sr.Tests) }

// NewFailure builds a Failed TestResult, flattening an mvalue
// MatchContext into its line slice for display.
func NewFailure(name, reason string, ctx mvalue.MatchContext) TestResult {
	return TestResult{Name: name, Outcome: Failed, Reason: reason, Context: ctx.Lines()}
}

// NewError builds an Errored TestResult.
func NewError(name string, err error) TestResult {
	return TestResult{Name: name, Outcome: Errored, Err: err}
}

// NewPass builds a Passed TestResult.
func NewPass(name string) TestResult {
	return TestResult{Name: name, Outcome: Passed}
}

const reportTemplate = `{{.Suite}}
{{range .Tests}}{{glyph .Outcome}} {{.Name}}{{if ne .Outcome.String "Passed"}} — {{.Reason}}{{if .Err}}{{.Err}}{{end}}{{end}}
{{range .Context}}    {{.}}
{{end}}{{end}}
Passed: {{.Passed}}  Failed: {{.Failed}}  Errors: {{.Errored}}  Total: {{.Total}}
`

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"glyph": glyph,
}).Parse(reportTemplate))

func glyph(o Outcome) string {
	switch o {
	case Passed:
		return "✓" // ✓
	case Failed:
		return "✗" // ✗
	case Errored:
		return "⚠" // ⚠
	default:
		return "-"
	}
}

// Render writes sr as the per-suite header, one line per test with a
// pass/fail/error glyph, the accumulated MatchContext trail for
// failed tests, and a summary line, per spec §7 ("the reporter prints
// per-suite header, one line per test with ✓/✗/⚠ glyphs, ...").
func (sr *SuiteReport) Render() string {
	var b strings.Builder
	if err := tmpl.Execute(&b, sr); err != nil {
		return fmt.Sprintf("capti: rendering report: %s", err)
	}
	return b.String()
}
