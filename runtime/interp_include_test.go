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

// TestRunIncludeResumesCaller verifies `include` runs the named
// program to completion and resumes the including script at the
// instruction right after OpInclude.
func TestRunIncludeResumesCaller(t *testing.T) {
	included := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("FromIncluded")}}},
	}}
	data, err := included.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary error: %v", err)
	}

	main := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpInclude, Include: sievesp.IncludeArgs{Name: "sub.sieve", Location: "personal"}},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("FromMain")}}},
	}}

	host := newFakeHost()
	host.includes["sub.sieve"] = data
	ctx := NewContext(main)
	ctx.Prepare(testMsg(), Envelope{}, host, 0)
	if err := Run(ctx, main); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []string{"FromIncluded", "FromMain"}
	if len(host.filedInto) != len(want) {
		t.Fatalf("filedInto = %v, want %v", host.filedInto, want)
	}
	for i := range want {
		if host.filedInto[i] != want[i] {
			t.Errorf("filedInto[%d] = %q, want %q", i, host.filedInto[i], want[i])
		}
	}
}

// TestRunIncludeOptionalMissingIsSkipped verifies an :optional include
// of a script the host does not have is silently skipped rather than
// raising a RuntimeError.
func TestRunIncludeOptionalMissingIsSkipped(t *testing.T) {
	main := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpInclude, Include: sievesp.IncludeArgs{Name: "missing.sieve", Optional: true}},
		{Op: sievesp.OpFileInto, Args: sievesp.ActionArgs{Values: []sievesp.Value{sievesp.TextValue("Continued")}}},
	}}
	host, _, err := runProgram(main, testMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.filedInto) != 1 || host.filedInto[0] != "Continued" {
		t.Fatalf("filedInto = %v, want [Continued]", host.filedInto)
	}
}

// TestRunIncludeRequiredMissingIsFatal verifies a non-optional include
// of a script the host does not have raises a RuntimeError.
func TestRunIncludeRequiredMissingIsFatal(t *testing.T) {
	main := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpInclude, Include: sievesp.IncludeArgs{Name: "missing.sieve"}},
	}}
	_, _, err := runProgram(main, testMsg(), Envelope{})
	if err == nil {
		t.Fatalf("expected an error for a missing required include, got nil")
	}
}
