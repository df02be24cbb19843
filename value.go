// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	VKText ValueKind = iota
	VKNumber
	VKVariable
	VKRegex
	VKList
	VKTransform
)

// VarRefKind tags the variant held by a VariableRef.
type VarRefKind uint8

const (
	VarLocal VarRefKind = iota
	VarMatch
	VarGlobal
	VarEnvironment
	VarEnvelope
	VarHeader
	VarPart
)

// HeaderRef names a header field read, optionally restricted to one of
// its structured sub-parts (e.g. the address list of a From header).
type HeaderRef struct {
	Name string
	Part string // "", "localpart", "domain", "all", "detail", "user" ...
}

// VariableRef identifies where a Variable value is read from or
// written to (spec §3). Local indices are dense per compilation; Match
// indices address the innermost enclosing successful test's captures.
type VariableRef struct {
	Kind   VarRefKind
	Local  int       // VarLocal
	Match  int       // VarMatch
	Name   string    // VarGlobal, VarEnvironment
	Env    EnvelopeKind // VarEnvelope
	Header HeaderRef // VarHeader
	Part   string    // VarPart
}

// EnvelopeKind is a closed enumeration of envelope field kinds (spec §3).
type EnvelopeKind uint8

const (
	EnvFrom EnvelopeKind = iota
	EnvTo
	EnvAuth
	EnvNotify
	EnvOrcpt
	EnvEnvID
	envLast
)

var envelopeKindName = [envLast]string{
	EnvFrom:   "from",
	EnvTo:     "to",
	EnvAuth:   "auth",
	EnvNotify: "notify",
	EnvOrcpt:  "orcpt",
	EnvEnvID:  "envid",
}

func (k EnvelopeKind) String() string {
	if int(k) >= len(envelopeKindName) {
		return "?"
	}
	return envelopeKindName[k]
}

// Number is the tagged Number(int64|float64) variant of Value. Size
// tests prefer the integer form; only explicit fractional literals
// set IsFloat.
type Number struct {
	Int     int64
	Float   float64
	IsFloat bool
}

// Regexp is implemented by the host's regex engine (out of scope per
// spec §1 — "regex engine" is an external collaborator). MatchCaptures
// reports whether s matches and, on a match, the capture groups in
// order (index 0 is the whole match, as with RFC 5228 ${0}).
type Regexp interface {
	MatchCaptures(s []byte) (matched bool, captures [][]byte)
}

// RegexCompiler is supplied to the Compiler so :regex tests can be
// validated and precompiled during compilation rather than on every
// run.
type RegexCompiler interface {
	Compile(pattern string, caseInsensitive bool) (Regexp, error)
}

// Regex holds a compiled regular expression plus its source text, kept
// side by side so serialisation and error messages can recover the
// original pattern without decompiling the host Regexp.
type Regex struct {
	Source   string
	Compiled Regexp
}

// Transform represents a variable read through a chain of host-
// registered function ids (the extracttext/convert function-call
// surface), e.g. ${func1(${x})}.
type Transform struct {
	Var VariableRef
	Fns []string
}

// Value is the tagged scalar/variable/regex union used throughout
// compiled instructions and tests (spec §3).
type Value struct {
	Kind      ValueKind
	Text      string
	Num       Number
	Var       VariableRef
	Rx        Regex
	List      []Value
	Transform Transform
}

// TextValue builds a literal Value.
func TextValue(s string) Value { return Value{Kind: VKText, Text: s} }

// NumberValue builds an integer literal Value.
func NumberValue(n int64) Value { return Value{Kind: VKNumber, Num: Number{Int: n}} }

// VariableValue builds a Value referring to a variable.
func VariableValue(ref VariableRef) Value { return Value{Kind: VKVariable, Var: ref} }

// ListValue builds a positional-argument list Value.
func ListValue(vs []Value) Value { return Value{Kind: VKList, List: vs} }
