// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// MaxParams is the original's MAX_PARAMS bound, kept as a constant
// only: the parser has no param-presence array, and duplicate tagged
// parameters are not rejected.
const MaxParams = 11

// Block is compile-time-only state for one lexical block (spec §3).
// Forward-jump backpatching (spec design note): the address of each
// not-yet-resolved Jmp/Jz is pushed here and walked at block close,
// replacing the source's mutable index handles.
type Block struct {
	Kind  Word // WIf, WElsIf, WElse, WForEveryPart, or WUnknown for top level
	Label []byte

	Line, Col int

	// LastBlockStart is the address of the controlling instruction:
	// the Jz for If/ElsIf, the ForEveryPart for loops.
	LastBlockStart int

	IfJmps    []int
	BreakJmps []int

	// MatchTestPos holds the addresses of Test instructions in this
	// block whose MatchVars mask may still grow (spec §4.D): a later
	// ${n} reference sets bit n on every test listed here.
	MatchTestPos []int
	MatchVars    uint64

	LocalVars map[string]int // case-folded name -> dense local index

	Capabilities CapabilitySet
	// CapabilityCheckOff disables require-gating within this block. It
	// is set on the block of an `if`/`elsif` whose test is `ihave`, and
	// on every block opened inside such a block.
	CapabilityCheckOff bool
}

func newBlock(kind Word) *Block {
	return &Block{Kind: kind, LocalVars: make(map[string]int)}
}

// withLabel sets the block's break/return label and returns it, chaining
// in the style of the original's Block::with_label.
func (b *Block) withLabel(label []byte) *Block {
	b.Label = label
	return b
}
