// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"testing"

	sievesp "github.com/intuitivelabs/sievesp"
)

func testMsg() Message {
	return newFakeMessage(map[string][]string{
		"Subject": {"Hello World"},
		"From":    {"alice@example.com"},
	}, "the message body")
}

// TestRunImplicitKeep verifies that a program with no dispositional
// action at all falls through to the RFC 5228 §2.10.2 implicit keep.
func TestRunImplicitKeep(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpStop},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.kept) != 1 {
		t.Fatalf("kept = %v, want exactly one implicit keep", host.kept)
	}
}

// TestRunExplicitKeepWithFlags verifies that an explicit `keep` with
// flags is the only Keep call fired (no duplicate implicit keep).
func TestRunExplicitKeepWithFlags(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpKeep, Args: sievesp.ActionArgs{Flags: []sievesp.Value{sievesp.TextValue("\\Seen")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.kept) != 1 || host.kept[0] != "\\Seen" {
		t.Fatalf("kept = %v, want one entry \\Seen", host.kept)
	}
}

func TestRunFileIntoCancelsImplicitKeep(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Junk")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "Junk" {
		t.Fatalf("filedInto = %v, want one entry Junk", host.filedInto)
	}
	if len(host.kept) != 0 {
		t.Fatalf("kept = %v, want none (fileinto cancels implicit keep)", host.kept)
	}
}

func TestRunDiscardSuppressesImplicitKeep(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpDiscard},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.kept) != 0 {
		t.Fatalf("kept = %v, want none after discard", host.kept)
	}
	if host.discarded {
		t.Fatalf("host.Discard should not be called: discard only cancels implicit keep")
	}
}

// TestRunTestBranching builds "if true { fileinto 'A' } else { fileinto
// 'B' }" directly as instructions and checks the true branch runs.
func TestRunTestBranching(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpTest, Test: sievesp.Test{Op: sievesp.TTrue}},
		{Op: sievesp.OpJz, Addr: 4},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("A")}}},
		{Op: sievesp.OpJmp, Addr: 5},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("B")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "A" {
		t.Fatalf("filedInto = %v, want exactly [A]", host.filedInto)
	}
}

func TestRunTestBranchingFalse(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpTest, Test: sievesp.Test{Op: sievesp.TFalse}},
		{Op: sievesp.OpJz, Addr: 4},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("A")}}},
		{Op: sievesp.OpJmp, Addr: 5},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("B")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "B" {
		t.Fatalf("filedInto = %v, want exactly [B]", host.filedInto)
	}
}

// TestRunHeaderTestMatches exercises a `header :contains "subject"
// "Hello"` test against the real headerSources/evalKeyMatch path.
func TestRunHeaderTestMatches(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpTest, Test: sievesp.Test{
			Op:      sievesp.THeader,
			Match:   sievesp.MatchContains,
			Headers: []string{"Subject"},
			KeyList: []sievesp.Value{sievesp.TextValue("Hello")},
		}},
		{Op: sievesp.OpJz, Addr: 3},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Matched")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "Matched" {
		t.Fatalf("filedInto = %v, want exactly [Matched]", host.filedInto)
	}
}

// TestRunSetWithModifiers exercises OpSet's modifier chain end to end,
// then reads the result back via a :is header test on a variable would
// require compiler wiring; here we check the stored local directly.
func TestRunSetWithModifiers(t *testing.T) {
	prog := &sievesp.Sieve{PeakLocals: 1, Instructions: []sievesp.Instruction{
		{Op: sievesp.OpSet, Args: sievesp.ActionArgs{
			Values:    []sievesp.Value{sievesp.TextValue("Hello World")},
			Modifiers: []string{"lower"},
			FromVar:   sievesp.VariableRef{Kind: sievesp.VarLocal, Local: 0},
		}},
		{Op: sievesp.OpStop},
	}}
	_, ctx, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := ctx.resolveVar(sievesp.VariableRef{Kind: sievesp.VarLocal, Local: 0})
	if got != "hello world" {
		t.Errorf("local 0 after set :lower = %q, want %q", got, "hello world")
	}
}

// TestRunEditFlagsAddThenHasFlag verifies setflag/addflag write the
// synthetic flag variable that hasflag (via evalTest) reads back.
func TestRunEditFlagsAddThenHasFlag(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpEditFlags, Args: sievesp.ActionArgs{
			Modifiers: []string{"set"},
			Flags:     []sievesp.Value{sievesp.TextValue("\\Seen")},
		}},
		{Op: sievesp.OpEditFlags, Args: sievesp.ActionArgs{
			Modifiers: []string{"add"},
			Flags:     []sievesp.Value{sievesp.TextValue("\\Flagged")},
		}},
		{Op: sievesp.OpTest, Test: sievesp.Test{
			Op:      sievesp.THasFlag,
			Match:   sievesp.MatchIs,
			KeyList: []sievesp.Value{sievesp.TextValue("\\Flagged")},
		}},
		{Op: sievesp.OpJz, Addr: 4},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Flagged")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "Flagged" {
		t.Fatalf("filedInto = %v, want exactly [Flagged] (hasflag should see \\Flagged)", host.filedInto)
	}
}

func TestRunEditFlagsRemove(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpEditFlags, Args: sievesp.ActionArgs{
			Modifiers: []string{"set"},
			Flags:     []sievesp.Value{sievesp.TextValue("\\Seen"), sievesp.TextValue("\\Flagged")},
		}},
		{Op: sievesp.OpEditFlags, Args: sievesp.ActionArgs{
			Modifiers: []string{"remove"},
			Flags:     []sievesp.Value{sievesp.TextValue("\\Flagged")},
		}},
	}}
	_, ctx, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	flags := ctx.currentFlags("")
	if len(flags) != 1 || flags[0] != "\\Seen" {
		t.Errorf("currentFlags after remove = %v, want [\\Seen]", flags)
	}
}

// TestRunErrorStopsExecution verifies OpError raises a RuntimeError and
// does not run the implicit keep.
func TestRunErrorStopsExecution(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpError, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("boom")}}},
		{Op: sievesp.OpKeep},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err == nil {
		t.Fatalf("expected a RuntimeError from OpError, got nil")
	}
	rerr, ok := err.(*sievesp.RuntimeError)
	if !ok {
		t.Fatalf("err = %T, want *sievesp.RuntimeError", err)
	}
	if rerr.Kind != sievesp.ErrRTScriptErrorMessage {
		t.Errorf("rerr.Kind = %v, want ErrRTScriptErrorMessage", rerr.Kind)
	}
	if len(host.kept) != 0 {
		t.Errorf("kept = %v, want none: OpError should abort before Commit", host.kept)
	}
}

// TestRunInvalidOpIsLoggedAndTolerated exercises OpInvalid's
// tolerant-no-op behaviour (logged, execution continues).
func TestRunInvalidOpIsLoggedAndTolerated(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpInvalid, InvalidName: "blorp"},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Kept")}}},
	}}
	host, ctx, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "Kept" {
		t.Fatalf("filedInto = %v, want [Kept]: OpInvalid should not halt execution", host.filedInto)
	}
	found := false
	for _, e := range ctx.Events {
		if e.Kind == EvBad && e.Action == "blorp" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an EvBad event for the invalid instruction, got %+v", ctx.Events)
	}
}

// TestRunCPULimit verifies the instruction budget halts a runaway
// (infinite-loop) program with ErrRTCPULimitReached rather than
// spinning forever.
func TestRunCPULimit(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpJmp, Addr: 0},
	}}
	host := newFakeHost()
	ctx := NewContext(prog)
	ctx.Prepare(testMsg(), Envelope{}, host, 50)
	err := Run(ctx, prog)
	if err == nil {
		t.Fatalf("expected ErrRTCPULimitReached, got nil")
	}
	rerr, ok := err.(*sievesp.RuntimeError)
	if !ok || rerr.Kind != sievesp.ErrRTCPULimitReached {
		t.Fatalf("err = %v, want RuntimeError{Kind: ErrRTCPULimitReached}", err)
	}
}

// TestRunIHaveTest verifies `ihave` reports true only for capabilities
// the program actually declared via require (spec's Caps field).
func TestRunIHaveTest(t *testing.T) {
	var caps sievesp.CapabilitySet
	caps.Set(sievesp.CapFileInto)
	prog := &sievesp.Sieve{Caps: caps, Instructions: []sievesp.Instruction{
		{Op: sievesp.OpTest, Test: sievesp.Test{
			Op:      sievesp.TIHave,
			KeyList: []sievesp.Value{sievesp.TextValue("fileinto")},
		}},
		{Op: sievesp.OpJz, Addr: 3},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Have")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "Have" {
		t.Fatalf("filedInto = %v, want [Have]: ihave(fileinto) should be true", host.filedInto)
	}
}

func TestRunIHaveTestFalseForUndeclaredCapability(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpTest, Test: sievesp.Test{
			Op:      sievesp.TIHave,
			KeyList: []sievesp.Value{sievesp.TextValue("vacation")},
		}},
		{Op: sievesp.OpJz, Addr: 3},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Have")}}},
	}}
	host, _, err := runProgram(prog, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 0 {
		t.Fatalf("filedInto = %v, want none: ihave(vacation) should be false without require", host.filedInto)
	}
}

// TestRunVacationDedup verifies the RFC 5230 §4.7 dedup window
// suppresses a second vacation reply for the same handle.
func TestRunVacationDedup(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpVacation, Args: sievesp.ActionArgs{
			Values: []sievesp.Value{sievesp.TextValue("I am away")},
			Handle: "h1",
			Days:   7,
		}},
	}}
	host := newFakeHost()
	ctx := NewContext(prog)
	ctx.Prepare(testMsg(), Envelope{}, host, 0)
	if err := Run(ctx, prog); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if len(host.vacations) != 1 {
		t.Fatalf("vacations after first run = %v, want one", host.vacations)
	}

	ctx2 := NewContext(prog)
	ctx2.Prepare(testMsg(), Envelope{}, host, 0)
	if err := Run(ctx2, prog); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if len(host.vacations) != 1 {
		t.Errorf("vacations after second run = %v, want still one (deduped)", host.vacations)
	}
}
