// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// sieveWireVersion is bumped whenever the wire shape of Sieve changes
// in a way that breaks decoding of an older payload (spec §6).
const sieveWireVersion = 2

// wireSieve is the gob-encoded envelope: a version tag plus the
// program. Kept distinct from Sieve itself so a version mismatch can
// be detected before gob attempts to decode a shape it no longer
// matches.
type wireSieve struct {
	Version      int
	Instructions []Instruction
	PeakLocals   int
	PeakMatches  int
	Caps         CapabilitySet
}

// MarshalBinary serialises s (spec §6). Any host-precompiled Regexp
// held in a Value.Rx.Compiled field is dropped: the host's compiled
// regex is not a value this package can name a concrete type for, and
// is meant to be a pure compilation cache — RecompileRegexes rebuilds
// it from the retained pattern source after a round trip.
func (s *Sieve) MarshalBinary() ([]byte, error) {
	clone := make([]Instruction, len(s.Instructions))
	copy(clone, s.Instructions)
	for i := range clone {
		stripInstructionRegex(&clone[i])
	}
	w := wireSieve{Version: sieveWireVersion, Instructions: clone, PeakLocals: s.PeakLocals, PeakMatches: s.PeakMatches, Caps: s.Caps}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a payload written by MarshalBinary.
func (s *Sieve) UnmarshalBinary(data []byte) error {
	var w wireSieve
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	if w.Version != sieveWireVersion {
		return fmt.Errorf("sieve: wire version mismatch: got %d, want %d", w.Version, sieveWireVersion)
	}
	s.Instructions = w.Instructions
	s.PeakLocals = w.PeakLocals
	s.PeakMatches = w.PeakMatches
	s.Caps = w.Caps
	return nil
}

// RecompileRegexes walks a decoded Sieve and recompiles every
// Value.Rx.Source pattern through rc, restoring the Compiled field
// MarshalBinary had to drop.
func (s *Sieve) RecompileRegexes(rc RegexCompiler) error {
	var firstErr error
	walkValues(s.Instructions, func(v *Value) {
		if v.Kind != VKRegex || v.Rx.Source == "" || firstErr != nil {
			return
		}
		compiled, err := rc.Compile(v.Rx.Source, false)
		if err != nil {
			firstErr = err
			return
		}
		v.Rx.Compiled = compiled
	})
	return firstErr
}

func stripInstructionRegex(ins *Instruction) {
	for i := range ins.Args.Values {
		stripValueRegex(&ins.Args.Values[i])
	}
	for i := range ins.Args.Flags {
		stripValueRegex(&ins.Args.Flags[i])
	}
	stripValueRegex(&ins.Args.HeaderValue)
	stripTestRegex(&ins.Test)
}

func stripTestRegex(t *Test) {
	for i := range t.Tests {
		stripTestRegex(&t.Tests[i])
	}
	for i := range t.Source {
		stripValueRegex(&t.Source[i])
	}
	for i := range t.KeyList {
		stripValueRegex(&t.KeyList[i])
	}
	stripValueRegex(&t.Size)
	stripValueRegex(&t.DupUniqueID)
}

func stripValueRegex(v *Value) {
	if v.Kind == VKRegex {
		v.Rx.Compiled = nil
	}
	for i := range v.List {
		stripValueRegex(&v.List[i])
	}
}

// walkValues visits every Value reachable from instrs, including
// those nested inside Test trees and Value lists.
func walkValues(instrs []Instruction, fn func(*Value)) {
	for i := range instrs {
		ins := &instrs[i]
		for j := range ins.Args.Values {
			walkValue(&ins.Args.Values[j], fn)
		}
		for j := range ins.Args.Flags {
			walkValue(&ins.Args.Flags[j], fn)
		}
		walkValue(&ins.Args.HeaderValue, fn)
		walkTest(&ins.Test, fn)
	}
}

func walkTest(t *Test, fn func(*Value)) {
	for i := range t.Tests {
		walkTest(&t.Tests[i], fn)
	}
	for i := range t.Source {
		walkValue(&t.Source[i], fn)
	}
	for i := range t.KeyList {
		walkValue(&t.KeyList[i], fn)
	}
	walkValue(&t.Size, fn)
	walkValue(&t.DupUniqueID, fn)
}

func walkValue(v *Value, fn func(*Value)) {
	fn(v)
	for i := range v.List {
		walkValue(&v.List[i], fn)
	}
}
