// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jtagbridge

import (
	"fmt"
	"io"
	"os"
	"time"
)

// debugEnabled controls whether debug logging is active
var debugEnabled = false

// Console sinks. Debug output shares stdout with the optional command trace;
// warnings go to stderr.
var (
	debugOutput io.Writer = os.Stdout
	warnOutput  io.Writer = os.Stderr
)

func init() {
	// Enable debug logging if DEBUG environment variable is set
	if os.Getenv("JTAGBRIDGE_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

func logToSession(level, message string) {
	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s %s: %s\n", timestamp, level, message)
	}
}

// Debugf prints debug information.
// Always writes to session log file (if initialized) with timestamp.
// Only prints to console when debug mode is enabled.
func Debugf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	logToSession("DEBUG", message)

	if debugEnabled {
		_, _ = fmt.Fprintf(debugOutput, "DEBUG: %s\n", message)
	}
}

// Debugln prints debug information.
// Always writes to session log file (if initialized) with timestamp.
// Only prints to console when debug mode is enabled.
func Debugln(args ...any) {
	message := fmt.Sprint(args...)
	logToSession("DEBUG", message)

	if debugEnabled {
		_, _ = fmt.Fprint(debugOutput, "DEBUG: ")
		_, _ = fmt.Fprintln(debugOutput, args...)
	}
}

// Warnf reports a non-fatal fault. It always reaches stderr and the session
// log, regardless of debug mode.
func Warnf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	logToSession("WARN", message)
	_, _ = fmt.Fprintf(warnOutput, "WARN: %s\n", message)
}

// SetDebugEnabled allows programmatic control of debug logging
// Useful for testing or application-controlled debug modes
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugEnabled
}
