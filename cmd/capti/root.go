// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/vdobler/capti/config"
	"github.com/vdobler/capti/loader"
	"github.com/vdobler/capti/setup"
)

func newRootCmd() *cobra.Command {
	var path string
	var configFile string

	cmd := &cobra.Command{
		Use:   "capti",
		Short: "Run declarative HTTP-API test suites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(context.Background(), path, configFile)
		},
	}
	cmd.Flags().StringVar(&path, "path", ".", "directory to search for suite files")
	cmd.Flags().StringVar(&configFile, "config", "", "explicit capti-config.yaml/.yml path")
	return cmd
}

// runAll discovers every suite file under path, loads the optional run
// configuration, and executes each suite in turn (spec §4.K, §6).
// Returning a non-nil error here means a setup/discovery failure, not
// a failing test — per-test and per-suite failures are printed via
// report.Render and never change the process exit code (spec §9).
func runAll(ctx context.Context, path, configFile string) error {
	cfg, err := config.Load(path, configFile)
	if err != nil {
		return fmt.Errorf("capti: loading configuration: %w", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := setup.Run(ctx, cfg.Setup.BeforeAll, true); err != nil {
		return fmt.Errorf("capti: global before_all: %w", err)
	}

	files, err := loader.DiscoverSuiteFiles(path)
	if err != nil {
		return fmt.Errorf("capti: discovering suites under %s: %w", path, err)
	}

	for _, f := range files {
		s, err := loader.LoadSuiteFile(f)
		if err != nil {
			logger.Printf("capti: skipping %s: %s", f, err)
			continue
		}
		if cfg.EnvFile != nil {
			s.Vars.SetEnvFile(cfg.EnvFile)
		}
		// The config file's setup uses "the same schema as per-suite
		// setup" (spec §6), so its before_each/after_each apply to
		// every test in every suite, nesting around the suite's own
		// per-test hooks: global before_each runs first, global
		// after_each runs last.
		s.Setup.BeforeEach = append(append([]setup.Instruction{}, cfg.Setup.BeforeEach...), s.Setup.BeforeEach...)
		s.Setup.AfterEach = append(append([]setup.Instruction{}, s.Setup.AfterEach...), cfg.Setup.AfterEach...)

		sr, err := s.Execute(ctx)
		if err != nil {
			logger.Printf("capti: suite %q: %s", s.Name, err)
			continue
		}
		fmt.Println(sr.Render())
	}

	if err := setup.Run(ctx, cfg.Setup.AfterAll, false); err != nil {
		logger.Printf("capti: global after_all: %s", err)
	}

	return nil
}
