// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package setup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vdobler/capti/mvalue"
)

// ParseWaitPolicy parses a suite YAML wait_until value into a
// WaitPolicy, per spec §6: "finished" | "finish" | "port <u64>" |
// numeric (seconds) | any other string (stdout-substring). An absent
// (Null) value is the zero WaitPolicy: spawn and move on immediately.
func ParseWaitPolicy(v mvalue.Value) (WaitPolicy, error) {
	switch v.Kind() {
	case mvalue.Null:
		return WaitPolicy{}, nil
	case mvalue.Number:
		return WaitPolicy{HasSecs: true, Seconds: v.Num().AsFloat64()}, nil
	case mvalue.String:
		s := v.Str()
		switch s {
		case "finished", "finish":
			return WaitPolicy{Finished: true}, nil
		}
		if rest, ok := strings.CutPrefix(s, "port "); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return WaitPolicy{}, fmt.Errorf("setup: malformed wait_until %q: %w", s, err)
			}
			return WaitPolicy{HasPort: true, Port: n}, nil
		}
		return WaitPolicy{HasStdout: true, Stdout: s}, nil
	}
	return WaitPolicy{}, fmt.Errorf("setup: wait_until must be a number or string, got %s", v.Kind())
}
