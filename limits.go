// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// Limits holds the resource limits enforced during compilation
// (spec §4.D, §6). The zero Limits is invalid; use DefaultLimits.
type Limits struct {
	MaxScriptSize        int
	MaxStringSize         int
	MaxVariableNameSize   int
	MaxNestedBlocks       int
	MaxNestedTests        int
	MaxNestedForEveryPart int
	MaxMatchVariables     int
	MaxLocalVariables     int
	MaxHeaderSize         int
	MaxIncludes           int

	// MaxVariableSize is carried alongside the compile-time limits but
	// is not read by the compiler or the runtime: `set` stores its
	// value untruncated.
	MaxVariableSize int

	// CheckCapabilities toggles require-gating (spec §4.D); disabling
	// it is meant for tooling (linting scripts against a superset of
	// capabilities), not production use.
	CheckCapabilities bool
}

// DefaultLimits returns the limits spec §6 documents as defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxScriptSize:         1 << 20, // 1 MiB
		MaxStringSize:         4 << 10, // 4 KiB
		MaxVariableNameSize:   32,
		MaxNestedBlocks:       15,
		MaxNestedTests:        15,
		MaxNestedForEveryPart: 3,
		MaxMatchVariables:     30,
		MaxLocalVariables:     128,
		MaxHeaderSize:         1 << 10, // 1 KiB
		MaxIncludes:           6,
		MaxVariableSize:       8 << 10,
		CheckCapabilities:     true,
	}
}

// CompilerOption configures a Compiler built with NewCompiler.
type CompilerOption func(*Compiler)

// WithLimits overrides the default resource limits.
func WithLimits(l Limits) CompilerOption {
	return func(c *Compiler) { c.limits = l }
}

// WithRegexCompiler supplies the host's regex engine, used to validate
// and pre-compile :regex patterns at compile time (:matches wildcards
// do not use it). Without one, regex patterns are accepted as opaque
// source text and are not compiled; the runtime never matches a :regex
// key that has no compiled form.
func WithRegexCompiler(rc RegexCompiler) CompilerOption {
	return func(c *Compiler) { c.regexCompiler = rc }
}

// Compiler compiles Sieve source into a Sieve program. A Compiler is a
// pure function of (source, limits, capability set); two compilations
// may run concurrently against the same Compiler value (spec §5).
type Compiler struct {
	limits        Limits
	regexCompiler RegexCompiler
}

// NewCompiler builds a Compiler with DefaultLimits, adjusted by opts.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{limits: DefaultLimits()}
	for _, o := range opts {
		o(c)
	}
	return c
}
