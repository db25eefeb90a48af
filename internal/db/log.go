// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/mesa-nmanteufel/testhub/internal/logging"

var debugEnabled bool

// SetDebug toggles verbose logging of store internals (connection pool
// sizing, migration timing). Wired to the --verbose flag.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// dbLogf emits a debug message when store debugging is enabled.
func dbLogf(format string, v ...any) {
	if debugEnabled {
		logging.Debugf(format, v...)
	}
}
