// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the optional run-wide configuration file (spec
// §6 "Configuration file"): a discovered capti-config.yaml/.yml
// supplying a global setup lifecycle and an optional env-file path.
// Discovery is grounded on github.com/spf13/viper, the discover-a-
// named-config-file-in-a-search-path library used across the corpus's
// CLI-shaped repos; decoding is handed off to the loader package's
// mvalue-based setup decoder rather than viper's own mapstructure
// path, since the setup schema embeds MValue/matcher values that only
// mvalue.Value already knows how to parse.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vdobler/capti"
	"github.com/vdobler/capti/loader"
	"github.com/vdobler/capti/mvalue"
	"github.com/vdobler/capti/vars"
)

// RunConfig is the decoded shape of the run configuration file.
type RunConfig struct {
	Setup   capti.Setup
	EnvFile map[string]string
}

// Load discovers and decodes the run configuration. When explicit is
// non-empty it names the config file directly (the CLI's --config
// flag); otherwise capti-config.yaml/.yml is searched for under dir
// (spec §6). A missing config file is not an error: configuration is
// optional, and the zero RunConfig is returned.
func Load(dir, explicit string) (RunConfig, error) {
	v := viper.New()
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("capti-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && errors.As(err, &notFound) {
			return RunConfig{}, nil
		}
		if explicit == "" && os.IsNotExist(err) {
			return RunConfig{}, nil
		}
		return RunConfig{}, fmt.Errorf("config: locating config file: %w", err)
	}

	path := v.ConfigFileUsed()
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var root mvalue.Value
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return RunConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if root.IsNull() {
		return RunConfig{}, nil
	}
	if root.Kind() != mvalue.Mapping {
		return RunConfig{}, fmt.Errorf("config: %s: document must be a mapping, got %s", path, root.Kind())
	}
	m := root.Map()

	cfg := RunConfig{}
	if setupVal, ok := m.GetStr("setup"); ok {
		su, err := loader.DecodeSetup(setupVal)
		if err != nil {
			return RunConfig{}, fmt.Errorf("config: %s: %w", path, err)
		}
		cfg.Setup = su
	}
	if envFileVal, ok := m.GetStr("env_file"); ok {
		envPath := envFileVal.Str()
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(filepath.Dir(path), envPath)
		}
		envFile, err := vars.LoadEnvFile(envPath)
		if err != nil {
			return RunConfig{}, fmt.Errorf("config: loading env_file %q: %w", envPath, err)
		}
		cfg.EnvFile = envFile
	}
	return cfg, nil
}
