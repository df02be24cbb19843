// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// logging functions

import (
	"github.com/intuitivelabs/slog"
)

// Log is the generic log for the sieve compiler package.
var Log slog.Log = slog.New(slog.LERR, slog.LbackTraceL|slog.LlocInfoL,
	slog.LStdErr)

// BuildTags records which optional build tags (debug/nodebug) were
// compiled into this binary, appended to from log_debug.go/log_nodebug.go.
var BuildTags []string

// WARN is a shorthand for logging a warning message.
func WARN(f string, a ...interface{}) {
	Log.LLog(slog.LWARN, 1, "WARNING: sieve: ", f, a...)
}

// ERR is a shorthand for logging an error message.
func ERR(f string, a ...interface{}) {
	Log.LLog(slog.LERR, 1, "ERROR: sieve: ", f, a...)
}

// BUG is a shorthand for logging a bug message. It is used only for
// invariants the compiler must never violate (e.g. an unexpected block
// kind reaching closeBlock).
func BUG(f string, a ...interface{}) {
	Log.LLog(slog.LBUG, 1, "BUG: sieve: ", f, a...)
}
