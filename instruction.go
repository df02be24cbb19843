// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// sentinel marks a forward-jump address not yet backpatched. A
// successfully compiled Sieve never contains it (spec §8, jump
// closure property).
const sentinel = -1

// InstrOp tags the variant held by an Instruction, generalising
// msg_sig.go's "one struct holds every parsed sub-field" shape into a
// discriminated union over the program's primitive operations.
type InstrOp uint8

const (
	OpRequire InstrOp = iota
	OpKeep
	OpFileInto
	OpRedirect
	OpDiscard
	OpStop
	OpTest
	OpJmp
	OpJz
	OpJnz
	OpForEveryPartPush
	OpForEveryPart
	OpForEveryPartPop
	OpReplace
	OpEnclose
	OpExtractText
	OpConvert
	OpAddHeader
	OpDeleteHeader
	OpSet
	OpClear
	OpNotify
	OpReject
	OpEReject
	OpVacation
	OpError
	OpEditFlags
	OpInclude
	OpReturn
	OpInvalid
)

// Instruction is one primitive action or control-flow element in a
// compiled Sieve program (spec §3). Only the fields relevant to Op are
// populated; unused fields are the zero value.
type Instruction struct {
	Op InstrOp

	// OpRequire
	Caps []Capability

	// OpFileInto / OpRedirect / OpAddHeader / OpDeleteHeader / OpSet /
	// OpNotify / OpReject / OpEReject / OpVacation / OpError /
	// OpEditFlags / OpReplace / OpEnclose / OpExtractText / OpConvert
	Args ActionArgs

	// OpTest
	Test Test

	// OpJmp / OpJz / OpJnz / OpForEveryPart (jz_addr)
	Addr int

	// OpForEveryPartPop
	PopCount int

	// OpClear
	MatchMask uint64
	LocalBase int
	LocalCount int

	// OpInclude
	Include IncludeArgs

	// OpInvalid
	InvalidName string
	Line, Col   int
}

// ActionArgs holds the positional/tagged arguments of an action
// instruction. Only the fields relevant to the owning Instruction.Op
// are meaningful; this mirrors the original's per-action struct set
// (FileInto, Redirect, Set, AddHeader, ...) folded into one shape to
// keep Instruction a flat, serialisable struct rather than an
// interface union (Go has no sum types; see DESIGN.md).
type ActionArgs struct {
	// generic positional values (mailbox name, address, message text, ...)
	Values []Value

	// common tags
	Copy        bool
	Once        bool
	Name        string // :subject (replace/enclose/vacation), :message (notify), flag variable, or Set's global name (empty for a local)
	Modifiers   []string
	Importance  string // notify :importance argument
	Handle      string
	Days        int64
	Flags       []Value
	HeaderName  string
	HeaderValue Value
	Last        bool // editheader :last
	Index       int
	IndexLast   bool
	MimeType    string
	FromVar     VariableRef // set and extracttext target variable
	FirstBytes  int64       // extracttext :first
}

// IncludeArgs holds the arguments to an include command.
type IncludeArgs struct {
	Location string // "personal" or "global"
	Name     string
	Once     bool
	Optional bool
}

// TestOp tags the variant held by a Test.
type TestOp uint8

const (
	TAllOf TestOp = iota
	TAnyOf
	TNot
	TTrue
	TFalse
	TAddress
	TEnvelope
	TExists
	THeader
	TSize
	TString
	TBody
	TDate
	TCurrentDate
	TDuplicate
	TMailboxExists
	TSpamTest
	TVirusTest
	TIHave
	THasFlag
	TValidExtList
)

// MatchType is the comparator-driving match semantics of a test
// (spec §4.D, ":matches"/":regex" populate match variables).
type MatchType uint8

const (
	MatchIs MatchType = iota
	MatchContains
	MatchMatches
	MatchRegex
	MatchCount
	MatchValue
)

// Test is the boolean-predicate tagged union evaluated by Jz/Jnz
// (spec §3). Sub-tests of allof/anyof are flattened into Tests; Not
// wraps exactly one sub-test in Tests[0].
type Test struct {
	Op    TestOp
	Tests []Test // TAllOf, TAnyOf, TNot (len 1)

	Comparator string
	Match      MatchType
	MatchFlag  string // MatchCount/MatchValue relational flag (":over"/...)

	Headers   []string // THeader, TAddress, TDate (the date header), THasFlag (variable names)
	Source    []Value  // TString: operand values, resolved at run time (not header names)
	KeyList   []Value
	AddrPart  string // TAddress: "localpart"/"domain"/"all"/"detail"/"user"
	EnvParts  []string // TEnvelope
	Size      Value
	SizeOver  bool // true=:over, false=:under
	DateZone  string
	DatePart  string // TDate/TCurrentDate

	// TDuplicate
	DupHeader   string
	DupUniqueID Value
	DupSeconds  int64
	DupLast     bool

	// TBody
	BodyRaw bool

	// match-variable population: the bit indices (0..63) of ${n}
	// variables that a successful evaluation of this test must
	// populate. Filled in by the parser when a later ${n} reference
	// forces propagation back to this test (spec §4.D).
	MatchVars uint64
}

// Sieve is a compiled program: the instruction vector plus the peak
// local- and match-variable counts observed across the whole script
// (spec §3).
type Sieve struct {
	Instructions []Instruction
	PeakLocals   int
	PeakMatches  int

	// Caps is the union of every capability named in a `require` clause
	// anywhere in the script. `require` itself emits no instruction (it
	// only gates compilation), so this is the runtime's sole record of
	// what was declared — needed to evaluate an `ihave` test (spec §12,
	// RFC 5463) against the running program rather than the transient
	// per-block state the compiler used for gating.
	Caps CapabilitySet
}

// Len returns the number of instructions.
func (s *Sieve) Len() int { return len(s.Instructions) }

// jumpsResolved reports whether every control-transfer instruction's
// address has been backpatched and is in range (spec §8, jump
// closure). Neither Compile nor any test in this repository calls it.
func (s *Sieve) jumpsResolved() bool {
	n := len(s.Instructions)
	for _, ins := range s.Instructions {
		switch ins.Op {
		case OpJmp, OpJz, OpJnz, OpForEveryPart:
			if ins.Addr == sentinel || ins.Addr < 0 || ins.Addr > n {
				return false
			}
		}
	}
	return true
}
