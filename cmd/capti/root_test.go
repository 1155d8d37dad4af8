// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllExecutesDiscoveredSuites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	suiteYAML := `
suite: smoke
tests:
  - test: health
    request:
      method: GET
      url: "` + srv.URL + `"
    expect:
      status: 2xx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(suiteYAML), 0o644))

	err := runAll(context.Background(), dir, "")
	assert.NoError(t, err)
}

func TestRunAllReturnsErrorWhenPathMissing(t *testing.T) {
	err := runAll(context.Background(), filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}

func TestRunAllAppliesGlobalConfigBeforeEachToEverySuite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	marker := filepath.Join(dir, "marker.txt")
	configYAML := `
setup:
  before_each:
    - script: "echo hit >> ` + marker + `"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capti-config.yaml"), []byte(configYAML), 0o644))

	suiteYAML := `
suite: smoke
tests:
  - test: one
    request:
      method: GET
      url: "` + srv.URL + `"
    expect:
      status: 2xx
  - test: two
    request:
      method: GET
      url: "` + srv.URL + `"
    expect:
      status: 2xx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(suiteYAML), 0o644))

	err := runAll(context.Background(), dir, "")
	require.NoError(t, err)

	content, err := os.ReadFile(marker)
	require.NoError(t, err, "global before_each must run once per test across the suite")
	assert.Equal(t, "hit\nhit\n", string(content))
}
