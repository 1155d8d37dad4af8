// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader parses suite YAML files (spec §6 "Suite file") into
// capti.Suite values. It decodes through mvalue.Value first — the
// same two-stage approach the teacher uses nowhere explicitly, but
// which mirrors the corpus's general "parse to a generic tree, then
// map into typed fields" shape — rather than driving gopkg.in/yaml.v3
// struct tags directly against capti.Suite, since suite YAML mixes
// plain structure (test names, methods) with the MValue/matcher
// superset that only mvalue.Value already knows how to decode.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vdobler/capti"
	"github.com/vdobler/capti/mvalue"
	"github.com/vdobler/capti/setup"
	"github.com/vdobler/capti/vars"
)

// DiscoverSuiteFiles walks root for *.yaml/*.yml suite files, skipping
// any capti-config.yaml/.yml found along the way (that file is the run
// configuration, not a suite, per spec §6).
func DiscoverSuiteFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if strings.TrimSuffix(d.Name(), ext) == "capti-config" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// LoadSuiteFile reads and decodes one suite YAML file.
func LoadSuiteFile(path string) (capti.Suite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return capti.Suite{}, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	var root mvalue.Value
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return capti.Suite{}, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	s, err := DecodeSuite(root)
	if err != nil {
		return capti.Suite{}, fmt.Errorf("loader: decoding %s: %w", path, err)
	}
	return s, nil
}

// DecodeSuite maps a parsed suite document (spec §6 "Suite file") into
// a capti.Suite.
func DecodeSuite(v mvalue.Value) (capti.Suite, error) {
	if v.Kind() != mvalue.Mapping {
		return capti.Suite{}, fmt.Errorf("loader: suite document must be a mapping, got %s", v.Kind())
	}
	m := v.Map()

	s := capti.Suite{Vars: vars.New(nil)}
	if name, ok := m.GetStr("suite"); ok {
		s.Name = name.Str()
	}
	if par, ok := m.GetStr("parallel"); ok {
		s.Parallel = par.Bool()
	}
	if setupVal, ok := m.GetStr("setup"); ok {
		su, err := DecodeSetup(setupVal)
		if err != nil {
			return capti.Suite{}, err
		}
		s.Setup = su
	}
	if varsVal, ok := m.GetStr("variables"); ok {
		if varsVal.Kind() != mvalue.Mapping {
			return capti.Suite{}, fmt.Errorf("loader: suite %q: variables must be a mapping", s.Name)
		}
		for _, p := range varsVal.Map().Pairs() {
			s.Vars.Set(p.Key.Str(), p.Value)
		}
	}
	if testsVal, ok := m.GetStr("tests"); ok {
		if testsVal.Kind() != mvalue.Sequence {
			return capti.Suite{}, fmt.Errorf("loader: suite %q: tests must be a sequence", s.Name)
		}
		for i, tv := range testsVal.Seq() {
			td, err := decodeTest(tv)
			if err != nil {
				return capti.Suite{}, fmt.Errorf("loader: suite %q: test[%d]: %w", s.Name, i, err)
			}
			s.Tests = append(s.Tests, td)
		}
	}
	return s, nil
}

// DecodeSetup maps a setup object (spec §4.J: before_all/before_each/
// after_all/after_each) into a capti.Setup. The same shape is used
// both per-suite and in the top-level run configuration file.
func DecodeSetup(v mvalue.Value) (capti.Setup, error) {
	if v.Kind() != mvalue.Mapping {
		return capti.Setup{}, fmt.Errorf("loader: setup must be a mapping, got %s", v.Kind())
	}
	m := v.Map()

	var su capti.Setup
	for _, field := range []struct {
		key  string
		dest *[]setup.Instruction
	}{
		{"before_all", &su.BeforeAll},
		{"before_each", &su.BeforeEach},
		{"after_all", &su.AfterAll},
		{"after_each", &su.AfterEach},
	} {
		listVal, ok := m.GetStr(field.key)
		if !ok {
			continue
		}
		if listVal.Kind() != mvalue.Sequence {
			return capti.Setup{}, fmt.Errorf("loader: setup.%s must be a sequence", field.key)
		}
		for i, iv := range listVal.Seq() {
			instr, err := decodeInstruction(iv)
			if err != nil {
				return capti.Setup{}, fmt.Errorf("loader: setup.%s[%d]: %w", field.key, i, err)
			}
			*field.dest = append(*field.dest, instr)
		}
	}
	return su, nil
}

func decodeInstruction(v mvalue.Value) (setup.Instruction, error) {
	if v.Kind() != mvalue.Mapping {
		return setup.Instruction{}, fmt.Errorf("instruction must be a mapping, got %s", v.Kind())
	}
	m := v.Map()
	instr := setup.Instruction{}
	if desc, ok := m.GetStr("description"); ok {
		instr.Description = desc.Str()
	}
	script, ok := m.GetStr("script")
	if !ok {
		return setup.Instruction{}, fmt.Errorf("instruction is missing required field %q", "script")
	}
	instr.Script = script.Str()

	wait := mvalue.NewNull()
	if w, ok := m.GetStr("wait_until"); ok {
		wait = w
	}
	policy, err := setup.ParseWaitPolicy(wait)
	if err != nil {
		return setup.Instruction{}, err
	}
	instr.Wait = policy
	return instr, nil
}

func decodeTest(v mvalue.Value) (capti.TestDefinition, error) {
	if v.Kind() != mvalue.Mapping {
		return capti.TestDefinition{}, fmt.Errorf("test must be a mapping, got %s", v.Kind())
	}
	m := v.Map()

	td := capti.TestDefinition{}
	if name, ok := m.GetStr("test"); ok {
		td.Name = name.Str()
	}
	if desc, ok := m.GetStr("description"); ok {
		td.Description = desc.Str()
	}
	if sf, ok := m.GetStr("should_fail"); ok {
		td.ShouldFail = sf.Bool()
	}
	if pr, ok := m.GetStr("print_response"); ok {
		td.PrintResponse = pr.Bool()
	}
	if def, ok := m.GetStr("define"); ok {
		if def.Kind() != mvalue.Mapping {
			return capti.TestDefinition{}, fmt.Errorf("test %q: define must be a mapping", td.Name)
		}
		store := vars.New(nil)
		for _, p := range def.Map().Pairs() {
			store.Set(p.Key.Str(), p.Value)
		}
		td.Define = store
	}

	reqVal, ok := m.GetStr("request")
	if !ok {
		return capti.TestDefinition{}, fmt.Errorf("test %q is missing required field %q", td.Name, "request")
	}
	req, err := decodeRequest(reqVal)
	if err != nil {
		return capti.TestDefinition{}, fmt.Errorf("test %q: request: %w", td.Name, err)
	}
	td.Request = req

	if expVal, ok := m.GetStr("expect"); ok {
		exp, err := decodeResponse(expVal)
		if err != nil {
			return capti.TestDefinition{}, fmt.Errorf("test %q: expect: %w", td.Name, err)
		}
		td.Expect = exp
	}

	if extVal, ok := m.GetStr("extract"); ok {
		ext, err := decodeExtractor(extVal)
		if err != nil {
			return capti.TestDefinition{}, fmt.Errorf("test %q: extract: %w", td.Name, err)
		}
		td.Extract = &ext
	}

	return td, nil
}

func decodeRequest(v mvalue.Value) (capti.Request, error) {
	if v.Kind() != mvalue.Mapping {
		return capti.Request{}, fmt.Errorf("request must be a mapping, got %s", v.Kind())
	}
	m := v.Map()
	req := capti.Request{Method: "GET"}
	if method, ok := m.GetStr("method"); ok {
		req.Method = strings.ToUpper(method.Str())
	}
	urlVal, ok := m.GetStr("url")
	if !ok {
		return capti.Request{}, fmt.Errorf("request is missing required field %q", "url")
	}
	req.URL = urlVal.Str()

	if p, ok := m.GetStr("params"); ok {
		mp, err := asMap(p, "params")
		if err != nil {
			return capti.Request{}, err
		}
		req.Params = mp
	}
	if h, ok := m.GetStr("headers"); ok {
		mp, err := asMap(h, "headers")
		if err != nil {
			return capti.Request{}, err
		}
		req.Headers = mp
	}
	if b, ok := m.GetStr("body"); ok {
		req.Body = b
	}
	return req, nil
}

func decodeResponse(v mvalue.Value) (capti.Response, error) {
	if v.Kind() != mvalue.Mapping {
		return capti.Response{}, fmt.Errorf("expect must be a mapping, got %s", v.Kind())
	}
	m := v.Map()
	resp := capti.Response{Status: mvalue.UnsetStatus()}
	if st, ok := m.GetStr("status"); ok {
		status, err := mvalue.ParseStatus(st)
		if err != nil {
			return capti.Response{}, err
		}
		resp.Status = status
	}
	if h, ok := m.GetStr("headers"); ok {
		mp, err := asMap(h, "headers")
		if err != nil {
			return capti.Response{}, err
		}
		resp.Headers = mp
	}
	if b, ok := m.GetStr("body"); ok {
		resp.Body = b
	}
	return resp, nil
}

func decodeExtractor(v mvalue.Value) (capti.Extractor, error) {
	if v.Kind() != mvalue.Mapping {
		return capti.Extractor{}, fmt.Errorf("extract must be a mapping, got %s", v.Kind())
	}
	m := v.Map()
	ex := capti.Extractor{}
	if b, ok := m.GetStr("body"); ok {
		ex.Body = b
	}
	if h, ok := m.GetStr("headers"); ok {
		mp, err := asMap(h, "headers")
		if err != nil {
			return capti.Extractor{}, err
		}
		ex.Headers = mp
	}
	return ex, nil
}

func asMap(v mvalue.Value, field string) (*mvalue.Map, error) {
	if v.Kind() != mvalue.Mapping {
		return nil, fmt.Errorf("%s must be a mapping, got %s", field, v.Kind())
	}
	return v.Map(), nil
}
