// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vars

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads a KEY=VALUE env-file (spec §4.F/§6: quoted values
// have outer quotes stripped, blank lines ignored) using godotenv,
// which implements exactly that line format.
func LoadEnvFile(path string) (map[string]string, error) {
	m, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("vars: reading env file %s: %w", path, err)
	}
	return m, nil
}
