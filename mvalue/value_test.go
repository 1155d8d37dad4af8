// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mvalue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEqual(t *testing.T) {
	assert.True(t, NewInt(1).Equal(NewInt(1)))
	assert.False(t, NewInt(1).Equal(NewFloat(1.0)), "int 1 and float 1.0 must compare unequal")
	assert.True(t, NewString("a").Equal(NewString("a")))
	assert.False(t, NewString("a").Equal(NewString("b")))
	assert.True(t, NewNull().Equal(NewNull()))
	assert.False(t, NewNull().Equal(NewInt(0)), "Null is a wildcard only for Matches, not Equal")
}

func TestValueEqualSequence(t *testing.T) {
	a := NewSequence([]Value{NewInt(1), NewInt(2)})
	b := NewSequence([]Value{NewInt(1), NewInt(2)})
	c := NewSequence([]Value{NewInt(2), NewInt(1)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "sequences compare element-wise by index")
}

func TestMapOrderIndependentHashAndEqual(t *testing.T) {
	m1, err := NewMap(
		Pair{Key: NewString("a"), Value: NewInt(1)},
		Pair{Key: NewString("b"), Value: NewInt(2)},
	)
	require.NoError(t, err)
	m2, err := NewMap(
		Pair{Key: NewString("b"), Value: NewInt(2)},
		Pair{Key: NewString("a"), Value: NewInt(1)},
	)
	require.NoError(t, err)

	v1, v2 := NewMapping(m1), NewMapping(m2)
	assert.Equal(t, v1.Hash(), v2.Hash(), "mapping hash must be order independent")
	assert.True(t, v1.Equal(v2))
}

func TestMapDuplicateKeyRejected(t *testing.T) {
	_, err := NewMap(
		Pair{Key: NewString("a"), Value: NewInt(1)},
		Pair{Key: NewString("a"), Value: NewInt(2)},
	)
	require.Error(t, err)
	var dup DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Key.Str())
}

func TestMapSetPreservesPosition(t *testing.T) {
	m, err := NewMap(
		Pair{Key: NewString("a"), Value: NewInt(1)},
		Pair{Key: NewString("b"), Value: NewInt(2)},
	)
	require.NoError(t, err)
	m.Set(NewString("a"), NewInt(99))
	pairs := m.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "a", pairs[0].Key.Str())
	assert.True(t, pairs[0].Value.Equal(NewInt(99)))
}

func TestDisplayPreservesIntVsFloat(t *testing.T) {
	assert.Equal(t, "1", NewInt(1).Display())
	assert.Equal(t, "1.0", NewFloat(1.0).Display())
	assert.Equal(t, "1.5", NewFloat(1.5).Display())
}

// TestFromJSONNestedTreeMatchesExpected uses cmp.Diff instead of
// assert.Equal/reflect.DeepEqual: Value has an Equal method, which cmp
// uses, so the trees are compared by Value.Equal (mapping key order is
// ignored, int vs float is not). A mismatch is reported at the
// top-level Value, not at the nested branch that diverges.
func TestFromJSONNestedTreeMatchesExpected(t *testing.T) {
	got, ok := FromJSON([]byte(`{"user":{"id":1,"roles":["admin","ops"]},"active":true}`))
	require.True(t, ok)

	roles := NewSequence([]Value{NewString("admin"), NewString("ops")})
	user, err := NewMap(
		Pair{Key: NewString("id"), Value: NewInt(1)},
		Pair{Key: NewString("roles"), Value: roles},
	)
	require.NoError(t, err)
	top, err := NewMap(
		Pair{Key: NewString("user"), Value: NewMapping(user)},
		Pair{Key: NewString("active"), Value: NewBool(true)},
	)
	require.NoError(t, err)
	want := NewMapping(top)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromJSON tree mismatch (-want +got):\n%s", diff)
	}
}

func TestLen(t *testing.T) {
	n, err := NewString("abc").Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = NewBool(true).Len()
	assert.Error(t, err)
}
