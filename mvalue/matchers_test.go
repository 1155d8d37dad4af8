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

func parse(t *testing.T, src string) Value {
	t.Helper()
	var v Value
	require.NoError(t, yaml.Unmarshal([]byte(src), &v))
	return v
}

func TestExistsAbsent(t *testing.T) {
	exists := parse(t, `$exists`)
	absent := parse(t, `$absent`)

	ok, err := exists.Matches(NewInt(7))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = exists.Matches(NewNull())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = absent.Matches(NewNull())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmpty(t *testing.T) {
	m := parse(t, `$empty`)

	for _, v := range []Value{NewString(""), NewSequence(nil), NewMapping(mustMap(t))} {
		ok, err := m.Matches(v)
		require.NoError(t, err)
		assert.True(t, ok, "%v should be empty", v)
	}

	ok, err := m.Matches(NewString("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Matches(NewBool(true))
	assert.Error(t, err)
}

func mustMap(t *testing.T, pairs ...Pair) *Map {
	t.Helper()
	m, err := NewMap(pairs...)
	require.NoError(t, err)
	return m
}

func TestRegex(t *testing.T) {
	m := parse(t, `$regex /^foo.*bar$/`)

	ok, err := m.Matches(NewString("foobazbar"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Matches(NewString("nope"))
	require.NoError(t, err)
	assert.False(t, ok)

	bad := &MatcherDefinition{Key: "$regex", Args: NewString("no-slashes")}
	_, err = bad.Matches(NewString("x"))
	assert.Error(t, err)
}

func TestLength(t *testing.T) {
	tests := []struct {
		args string
		val  Value
		want bool
	}{
		{"$length 3", NewString("abc"), true},
		{"$length 3", NewString("ab"), false},
		{"$length >= 2", NewSequence([]Value{NewInt(1), NewInt(2)}), true},
		{"$length < 2", NewSequence([]Value{NewInt(1), NewInt(2)}), false},
		{"$length <= 2", NewSequence([]Value{NewInt(1)}), true},
		{"$length > 0", NewString(""), false},
	}
	for _, tc := range tests {
		m := parse(t, tc.args)
		ok, err := m.Matches(tc.val)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, tc.args)
	}
}

func TestIncludesAll(t *testing.T) {
	seq := NewSequence([]Value{NewString("pear"), NewString("apple"), NewString("plum")})

	includes := parse(t, `$includes apple`)
	ok, err := includes.Matches(seq)
	require.NoError(t, err)
	assert.True(t, ok)

	noApple := NewSequence([]Value{NewString("pear"), NewString("plum")})
	ok, err = includes.Matches(noApple)
	require.NoError(t, err)
	assert.False(t, ok)

	all := parse(t, `$all $exists`)
	ok, err = all.Matches(seq)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = includes.Matches(NewString("not a sequence"))
	assert.Error(t, err)
}

func TestNotAndOrIf(t *testing.T) {
	notExists := parse(t, `$not $exists`)
	ok, err := notExists.Matches(NewNull())
	require.NoError(t, err)
	assert.True(t, ok)

	and := NewMatcher(&MatcherDefinition{
		Key: "$and",
		Args: NewSequence([]Value{
			NewMatcher(&MatcherDefinition{Key: "$exists"}),
			NewMatcher(&MatcherDefinition{Key: "$regex", Args: NewString("/^a/")}),
		}),
	})
	ok, err = and.Matches(NewString("apple"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = and.Matches(NewString("banana"))
	require.NoError(t, err)
	assert.False(t, ok)

	or := NewMatcher(&MatcherDefinition{
		Key: "$or",
		Args: NewSequence([]Value{
			NewMatcher(&MatcherDefinition{Key: "$regex", Args: NewString("/^a/")}),
			NewMatcher(&MatcherDefinition{Key: "$regex", Args: NewString("/^b/")}),
		}),
	})
	ok, err = or.Matches(NewString("banana"))
	require.NoError(t, err)
	assert.True(t, ok)

	ifm := NewMatcher(&MatcherDefinition{
		Key: "$if",
		Args: NewSequence([]Value{
			NewMatcher(&MatcherDefinition{Key: "$exists"}),
			NewBool(true),
			NewBool(false),
		}),
	})
	ok, err = ifm.Matches(NewBool(true))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatcherDefinitionRoundTrip(t *testing.T) {
	v := parse(t, `$regex /^foo$/`)
	require.Equal(t, Matcher, v.Kind())
	assert.Equal(t, "$regex /^foo$/", v.MatcherDef().String())
}

func TestUnknownMatcherIsPreservedAsString(t *testing.T) {
	v := parse(t, `$notregistered hello`)
	require.Equal(t, String, v.Kind())
	assert.Equal(t, "$notregistered hello", v.Str())
}

func TestEscapedDollarIsLiteralString(t *testing.T) {
	v := parse(t, `\$exists`)
	require.Equal(t, String, v.Kind())
	assert.Equal(t, "$exists", v.Str())
}

func TestMissingMatcherError(t *testing.T) {
	def := &MatcherDefinition{Key: "$doesnotexist"}
	_, err := def.Matches(NewNull())
	require.Error(t, err)
	var missing MissingMatcher
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "$doesnotexist", missing.Key)
}
