// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusExactMatch(t *testing.T) {
	ok, err := ExactStatus(200).Matches(ExactStatus(200))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ExactStatus(200).Matches(ExactStatus(201))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusClassContainment(t *testing.T) {
	tests := []struct {
		class string
		code  int
		want  bool
	}{
		{"2xx", 200, true},
		{"2xx", 299, true},
		{"2xx", 300, false},
		{"3xx", 300, true},
		{"4xx", 404, true},
		{"5xx", 500, true},
		{"5xx", 499, false},
	}
	for _, tc := range tests {
		ok, err := ClassStatus(tc.class).Matches(ExactStatus(tc.code))
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "%s vs %d", tc.class, tc.code)
	}
}

func TestStatusClassVsClass(t *testing.T) {
	ok, err := ClassStatus("2xx").Matches(ClassStatus("2xx"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ClassStatus("2xx").Matches(ClassStatus("3xx"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusExactVsClassErrors(t *testing.T) {
	_, err := ExactStatus(200).Matches(ClassStatus("2xx"))
	require.Error(t, err)
	var matcherErr MatcherError
	require.ErrorAs(t, err, &matcherErr)
}

func TestStatusUnsetMatchesAnything(t *testing.T) {
	ok, err := UnsetStatus().Matches(ExactStatus(500))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(NewInt(204))
	require.NoError(t, err)
	assert.Equal(t, ExactStatus(204), s)

	s, err = ParseStatus(NewString("4xx"))
	require.NoError(t, err)
	assert.Equal(t, ClassStatus("4xx"), s)

	_, err = ParseStatus(NewString("9xx"))
	assert.Error(t, err)

	s, err = ParseStatus(NewNull())
	require.NoError(t, err)
	assert.Equal(t, UnsetStatus(), s)
}
