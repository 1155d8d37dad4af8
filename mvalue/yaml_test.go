// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnmarshalScalars(t *testing.T) {
	assert.True(t, parse(t, `null`).IsNull())
	assert.Equal(t, Bool, parse(t, `true`).Kind())
	assert.True(t, parse(t, `true`).Bool())
	assert.Equal(t, Number, parse(t, `42`).Kind())
	assert.Equal(t, int64(42), parse(t, `42`).Num().Int)
	assert.Equal(t, Number, parse(t, `4.5`).Kind())
	assert.InDelta(t, 4.5, parse(t, `4.5`).Num().Float64, 0.0001)
	assert.Equal(t, String, parse(t, `hello`).Kind())
}

func TestUnmarshalSequenceAndMapping(t *testing.T) {
	seq := parse(t, "- 1\n- 2\n- 3\n")
	require.Equal(t, Sequence, seq.Kind())
	assert.Len(t, seq.Seq(), 3)

	m := parse(t, "a: 1\nb: two\n")
	require.Equal(t, Mapping, m.Kind())
	v, ok := m.Map().GetStr("b")
	require.True(t, ok)
	assert.Equal(t, "two", v.Str())
}

func TestUnmarshalDuplicateKeyErrors(t *testing.T) {
	var v Value
	err := yaml.Unmarshal([]byte("a: 1\na: 2\n"), &v)
	require.Error(t, err)
	var dup DuplicateKeyError
	require.ErrorAs(t, err, &dup)
}

func TestUnmarshalMatcherStringInsideMapping(t *testing.T) {
	m := parse(t, "id: $exists\nname: bob\n")
	idVal, ok := m.Map().GetStr("id")
	require.True(t, ok)
	assert.Equal(t, Matcher, idVal.Kind())
	assert.Equal(t, "$exists", idVal.MatcherDef().Key)
}

func TestMarshalRoundTrip(t *testing.T) {
	original := parse(t, "status: $regex /^a.*/\ncount: 3\nnested:\n  x: true\n")
	out, err := yaml.Marshal(&original)
	require.NoError(t, err)

	var reparsed Value
	require.NoError(t, yaml.Unmarshal(out, &reparsed))
	assert.True(t, original.Equal(reparsed), "round trip must reparse to an equal value")
}
