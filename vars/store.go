// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vars implements the variable store: a name -> mvalue.Value
// map with process-environment and env-file fallback, ${NAME}
// template substitution with cycle detection, and reverse extraction
// of named captures from an observed string.
//
// The shadowing rule (Merge) is grounded on the teacher's
// scope.New(outer, inner, auto) but the override direction is the
// spec's, not the teacher's: here the inner (test-local "define")
// scope wins over the outer (suite) scope, since spec §3 requires
// "define is local variables that shadow suite variables".
package vars

import (
	"os"

	"github.com/vdobler/capti/mvalue"
)

// Store is a name -> mvalue.Value map with env and env-file fallback
// lookup, mirroring the teacher's scope.Variables but over mvalue
// values instead of plain strings (the spec's variables may hold any
// MValue, not just text).
type Store struct {
	values  map[string]mvalue.Value
	envFile map[string]string
}

// New creates an empty Store, optionally backed by an env-file lookup
// table (see LoadEnvFile). envFile may be nil.
func New(envFile map[string]string) *Store {
	return &Store{values: make(map[string]mvalue.Value), envFile: envFile}
}

// Set assigns name to v, overwriting any previous value.
func (s *Store) Set(name string, v mvalue.Value) {
	s.values[name] = v
}

// SetEnvFile attaches an env-file fallback table to s, overwriting any
// table it was constructed with. Used by the CLI to thread the run
// configuration's env_file into suites already decoded with New(nil).
func (s *Store) SetEnvFile(envFile map[string]string) {
	s.envFile = envFile
}

// Copy returns a shallow copy of s that shares the env-file table but
// has an independent values map.
func (s *Store) Copy() *Store {
	cpy := &Store{values: make(map[string]mvalue.Value, len(s.values)), envFile: s.envFile}
	for k, v := range s.values {
		cpy.values[k] = v
	}
	return cpy
}

// Merge builds a new Store in which local's entries shadow suite's:
// suite provides the base, local overrides matching names. This
// implements the per-test `define` shadowing rule of spec §3/§4.F.
func Merge(suite, local *Store) *Store {
	merged := suite.Copy()
	if local == nil {
		return merged
	}
	for k, v := range local.values {
		merged.values[k] = v
	}
	return merged
}

// lookup resolves name against the map, then the process environment,
// then the configured env-file table, per spec §4.F resolution order.
func (s *Store) lookup(name string) (mvalue.Value, bool) {
	if v, ok := s.values[name]; ok {
		return v, true
	}
	if v, ok := os.LookupEnv(name); ok {
		return mvalue.NewString(v), true
	}
	if s.envFile != nil {
		if v, ok := s.envFile[name]; ok {
			return mvalue.NewString(v), true
		}
	}
	return mvalue.Value{}, false
}

// Get resolves name without performing any substitution on the
// result; callers that need a fully-substituted value should use
// Substitute on a string built from "${NAME}" instead.
func (s *Store) Get(name string) (mvalue.Value, bool) {
	return s.lookup(name)
}
