// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdobler/capti/mvalue"
)

func TestParseWaitPolicy(t *testing.T) {
	w, err := ParseWaitPolicy(mvalue.NewNull())
	require.NoError(t, err)
	assert.Equal(t, WaitPolicy{}, w)

	w, err = ParseWaitPolicy(mvalue.NewString("finished"))
	require.NoError(t, err)
	assert.True(t, w.Finished)

	w, err = ParseWaitPolicy(mvalue.NewFloat(2.5))
	require.NoError(t, err)
	assert.True(t, w.HasSecs)
	assert.Equal(t, 2.5, w.Seconds)

	w, err = ParseWaitPolicy(mvalue.NewString("port 8080"))
	require.NoError(t, err)
	assert.True(t, w.HasPort)
	assert.Equal(t, 8080, w.Port)

	w, err = ParseWaitPolicy(mvalue.NewString("ready to serve"))
	require.NoError(t, err)
	assert.True(t, w.HasStdout)
	assert.Equal(t, "ready to serve", w.Stdout)

	_, err = ParseWaitPolicy(mvalue.NewBool(true))
	assert.Error(t, err)
}
