// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdobler/capti/mvalue"
	"github.com/vdobler/capti/vars"
)

func TestExtractorCapturesFromBody(t *testing.T) {
	store := vars.New(nil)
	body, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("id"), Value: mvalue.NewString("user-${userID}")})
	require.NoError(t, err)
	ex := Extractor{Body: mvalue.NewMapping(body)}

	gotBody, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("id"), Value: mvalue.NewString("user-42")})
	require.NoError(t, err)
	got := Response{Body: mvalue.NewMapping(gotBody)}

	require.NoError(t, ex.Extract(store, got))
	v, ok := store.Get("userID")
	require.True(t, ok)
	assert.Equal(t, "42", v.Str())
}

func TestExtractorIgnoresNullOnExpectedSide(t *testing.T) {
	store := vars.New(nil)
	ex := Extractor{Body: mvalue.NewNull()}
	got := Response{Body: mvalue.NewString("anything")}
	assert.NoError(t, ex.Extract(store, got))
}

func TestExtractorErrorsOnMissingKey(t *testing.T) {
	store := vars.New(nil)
	body, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("missing"), Value: mvalue.NewString("x")})
	require.NoError(t, err)
	ex := Extractor{Body: mvalue.NewMapping(body)}

	emptyBody, err := mvalue.NewMap()
	require.NoError(t, err)
	got := Response{Body: mvalue.NewMapping(emptyBody)}

	err = ex.Extract(store, got)
	var extractErr ExtractError
	assert.ErrorAs(t, err, &extractErr)
}

func TestExtractorCapturesFromHeaders(t *testing.T) {
	store := vars.New(nil)
	headers, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("x-request-id"), Value: mvalue.NewString("${reqID}")})
	require.NoError(t, err)
	ex := Extractor{Headers: headers}

	gotHeaders, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("x-request-id"), Value: mvalue.NewString("abc-123")})
	require.NoError(t, err)
	got := Response{Headers: gotHeaders}

	require.NoError(t, ex.Extract(store, got))
	v, ok := store.Get("reqID")
	require.True(t, ok)
	assert.Equal(t, "abc-123", v.Str())
}
