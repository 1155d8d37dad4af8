// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capti

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdobler/capti/mvalue"
	"github.com/vdobler/capti/vars"
)

func TestRequestSubstitutePreservesBodyVariant(t *testing.T) {
	store := vars.New(nil)
	store.Set("id", mvalue.NewInt(42))

	m, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("id"), Value: mvalue.NewString("${id}")})
	require.NoError(t, err)
	req := Request{Method: "GET", URL: "http://example.com/${id}", Body: mvalue.NewMapping(m)}

	out, err := req.Substitute(store)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/42", out.URL)
	v, ok := out.Body.Map().GetStr("id")
	require.True(t, ok)
	assert.Equal(t, mvalue.Number, v.Kind())
}

func TestRequestBuildRejectsUnknownMethod(t *testing.T) {
	req := Request{Method: "TRACE", URL: "http://example.com"}
	_, err := req.Build(context.Background())
	assert.Error(t, err)
}

func TestRequestBuildJoinsParamsUnescaped(t *testing.T) {
	params, err := mvalue.NewMap(
		mvalue.Pair{Key: mvalue.NewString("a"), Value: mvalue.NewString("1")},
		mvalue.Pair{Key: mvalue.NewString("b"), Value: mvalue.NewString("x y")},
	)
	require.NoError(t, err)
	req := Request{Method: "GET", URL: "http://example.com/q", Params: params}

	httpReq, err := req.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/q", httpReq.URL.Path)
	assert.Equal(t, "a=1&b=x y", httpReq.URL.RawQuery)
}

func TestRequestBuildSetsJSONBodyAndContentType(t *testing.T) {
	m, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("k"), Value: mvalue.NewString("v")})
	require.NoError(t, err)
	req := Request{Method: "POST", URL: "http://example.com", Body: mvalue.NewMapping(m)}

	httpReq, err := req.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
}

func TestRequestBuildRejectsNonStringHeader(t *testing.T) {
	headers, err := mvalue.NewMap(mvalue.Pair{Key: mvalue.NewString("X-Count"), Value: mvalue.NewInt(1)})
	require.NoError(t, err)
	req := Request{Method: "GET", URL: "http://example.com", Headers: headers}

	_, err = req.Build(context.Background())
	var headerErr HTTPHeaderError
	assert.ErrorAs(t, err, &headerErr)
}
