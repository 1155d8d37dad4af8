// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vdobler/capti/mvalue"
)

func TestSuiteReportTotals(t *testing.T) {
	sr := &SuiteReport{Suite: "demo"}
	sr.Add(NewPass("t1"))
	sr.Add(NewFailure("t2", "Status does not match.", mvalue.NewContext("deepest", "path")))
	sr.Add(NewError("t3", assertErr{}))

	assert.Equal(t, 1, sr.Passed)
	assert.Equal(t, 1, sr.Failed)
	assert.Equal(t, 1, sr.Errored)
	assert.Equal(t, 3, sr.Total())
}

func TestRenderIncludesGlyphsAndContext(t *testing.T) {
	sr := &SuiteReport{Suite: "demo"}
	sr.Add(NewPass("t1"))
	sr.Add(NewFailure("t2", "Body does not match.", mvalue.NewContext("Mismatch at key id")))

	out := sr.Render()
	assert.Contains(t, out, "✓ t1")
	assert.Contains(t, out, "✗ t2")
	assert.Contains(t, out, "Body does not match.")
	assert.Contains(t, out, "Mismatch at key id")
	assert.Contains(t, out, "Passed: 1  Failed: 1  Errors: 0  Total: 2")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
