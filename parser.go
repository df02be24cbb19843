// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

import "github.com/intuitivelabs/bytescase"

// compilerState is the single-pass parser/code-generator state (spec
// §4.D), grounded on the original's CompilerState + the teacher's
// parse_msg.go top-level driving loop.
type compilerState struct {
	c   *Compiler
	lex *Lexer

	instr []Instruction

	blockStack []*Block
	block      *Block

	lastBlockType Word

	varsGlobal map[string]bool
	varsNum    int
	varsNumMax int
	varsMatchMax int

	includesNum int

	// allCaps is the union of every capability ever required, script-wide
	// (see Sieve.Caps).
	allCaps CapabilitySet
}

// Compile compiles src into a Sieve program (spec §6).
func (c *Compiler) Compile(src []byte) (*Sieve, *CompileError) {
	if len(src) > c.limits.MaxScriptSize {
		return nil, &CompileError{Line: 1, Col: 1, Kind: ErrScriptTooLong}
	}
	cs := &compilerState{
		c:          c,
		lex:        NewLexer(src, c.limits.MaxStringSize),
		block:      newBlock(WUnknown),
		varsGlobal: make(map[string]bool),
	}

	for {
		tok, err := cs.lex.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkEOF {
			break
		}

		switch tok.Kind {
		case TkIdentifier:
			if err := cs.parseCommand(tok); err != nil {
				return nil, err
			}
		case TkCurlyClose:
			if len(cs.blockStack) == 0 {
				return nil, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
					Expected: "instruction", Found: "}"}
			}
			if err := cs.closeBlock(); err != nil {
				return nil, err
			}
		default:
			return nil, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
				Expected: "instruction", Found: tokenDesc(tok)}
		}
	}

	if len(cs.blockStack) != 0 || cs.block.Kind != WUnknown {
		return nil, &CompileError{Line: cs.block.Line, Col: cs.block.Col, Kind: ErrUnterminatedBlock}
	}
	if cs.varsNum > cs.varsNumMax {
		cs.varsNumMax = cs.varsNum
	}
	return &Sieve{Instructions: cs.instr, PeakLocals: cs.varsNumMax, PeakMatches: cs.varsMatchMax, Caps: cs.allCaps}, nil
}

func tokenDesc(t Token) string {
	switch t.Kind {
	case TkEOF:
		return "<eof>"
	case TkCurlyOpen:
		return "{"
	case TkCurlyClose:
		return "}"
	case TkBracketOpen:
		return "["
	case TkBracketClose:
		return "]"
	case TkParenOpen:
		return "("
	case TkParenClose:
		return ")"
	case TkComma:
		return ","
	case TkSemicolon:
		return ";"
	case TkStringConstant, TkStringVariable:
		return string(t.Bytes)
	case TkNumber:
		return "<number>"
	case TkIdentifier, TkTag:
		return string(t.Name)
	}
	return "?"
}

func (cs *compilerState) emit(ins Instruction) int {
	cs.instr = append(cs.instr, ins)
	return len(cs.instr) - 1
}

// requireCapability enforces require-gating (spec §4.D) unless
// disabled or the enclosing ihave branch turned checking off (§12).
func (cs *compilerState) requireCapability(cap Capability, line, col int) *CompileError {
	if !cs.c.limits.CheckCapabilities || cs.block.CapabilityCheckOff {
		return nil
	}
	if cs.capabilitiesInScope().Test(cap) {
		return nil
	}
	return &CompileError{Line: line, Col: col, Kind: ErrUndeclaredCapability, Name: cap.String()}
}

func (cs *compilerState) capabilitiesInScope() CapabilitySet {
	s := cs.block.Capabilities
	for i := len(cs.blockStack) - 1; i >= 0; i-- {
		s = s.Union(cs.blockStack[i].Capabilities)
	}
	return s
}

// --- token helpers ---

func (cs *compilerState) next() (Token, *CompileError) { return cs.lex.Next() }
func (cs *compilerState) peek() (Token, *CompileError) { return cs.lex.Peek() }

func (cs *compilerState) expect(kind TokenKind, expectedDesc string) (Token, *CompileError) {
	tok, err := cs.lex.Next()
	if err != nil {
		return tok, err
	}
	if tok.Kind == TkEOF {
		return tok, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedEOF}
	}
	if tok.Kind != kind {
		return tok, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
			Expected: expectedDesc, Found: tokenDesc(tok)}
	}
	return tok, nil
}

func (cs *compilerState) expectInstructionEnd() *CompileError {
	_, err := cs.expect(TkSemicolon, ";")
	return err
}

// peekTag reports whether the next token is the tag w, without
// consuming it unless it matches.
func (cs *compilerState) peekTag(w Word) (bool, *CompileError) {
	tok, err := cs.peek()
	if err != nil {
		return false, err
	}
	if tok.Kind == TkTag && tok.Word == w {
		_, err := cs.next()
		return true, err
	}
	return false, nil
}

// expectString consumes a string literal, compiling ${...} templates
// via compileTemplate (spec §4.A "StringVariable produces a template").
func (cs *compilerState) expectString() (Value, *CompileError) {
	tok, err := cs.next()
	if err != nil {
		return Value{}, err
	}
	switch tok.Kind {
	case TkStringConstant:
		return TextValue(string(tok.Bytes)), nil
	case TkStringVariable:
		v, err := cs.compileTemplate(tok.Bytes)
		if err != nil && err.Line == 0 {
			err.Line, err.Col = tok.Line, tok.Col
		}
		return v, err
	}
	return Value{}, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
		Expected: "string", Found: tokenDesc(tok)}
}

// expectConstantString requires a literal with no ${...} interpolation
// (used where the grammar demands a compile-time-known string, e.g.
// foreverypart/break labels and include names).
func (cs *compilerState) expectConstantString() ([]byte, *CompileError) {
	tok, err := cs.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TkStringConstant {
		return nil, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrExpectedConstantString}
	}
	return tok.Bytes, nil
}

// expectStringList parses a single string or a bracketed, comma
// separated string list, returning Values (each possibly a template).
func (cs *compilerState) expectStringList() ([]Value, *CompileError) {
	tok, err := cs.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TkBracketOpen {
		v, err := cs.expectString()
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil
	}
	cs.next() // consume '['
	var out []Value
	for {
		v, err := cs.expectString()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		tok, err := cs.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkBracketClose {
			break
		}
		if tok.Kind != TkComma {
			return nil, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
				Expected: "',' or ']'", Found: tokenDesc(tok)}
		}
	}
	return out, nil
}

// expectConstantStringList parses a literal string list (used by
// `require`, which spec §4.D says must be compile-time constant).
func (cs *compilerState) expectConstantStringList() ([][]byte, *CompileError) {
	tok, err := cs.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TkBracketOpen {
		s, err := cs.expectConstantString()
		if err != nil {
			return nil, err
		}
		return [][]byte{s}, nil
	}
	cs.next()
	var out [][]byte
	for {
		s, err := cs.expectConstantString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		tok, err := cs.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkBracketClose {
			break
		}
		if tok.Kind != TkComma {
			return nil, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
				Expected: "',' or ']'", Found: tokenDesc(tok)}
		}
	}
	return out, nil
}

// expectNumber parses a plain or K/M/G-scaled integer literal.
func (cs *compilerState) expectNumber() (int64, *CompileError) {
	tok, err := cs.expect(TkNumber, "number")
	if err != nil {
		return 0, err
	}
	return tok.Num * tok.Scale.Scale(), nil
}

// --- variable scoping (spec §4.D, ported from the original's
// register_local_var/register_global_var/get_local_var/is_var_*) ---

func foldName(s string) string {
	b := []byte(s)
	dst := make([]byte, len(b))
	bytescase.ToLower(b, dst)
	return string(dst)
}

func (cs *compilerState) getLocalVar(folded string) (int, bool) {
	if id, ok := cs.block.LocalVars[folded]; ok {
		return id, true
	}
	for i := len(cs.blockStack) - 1; i >= 0; i-- {
		if id, ok := cs.blockStack[i].LocalVars[folded]; ok {
			return id, true
		}
	}
	return 0, false
}

func (cs *compilerState) isVarGlobal(folded string) bool {
	return cs.varsGlobal[folded]
}

// registerLocalVar returns the dense local index for name, allocating
// a new one in the innermost block if it is not already known as
// local anywhere in the block stack.
func (cs *compilerState) registerLocalVar(name string) int {
	folded := foldName(name)
	if id, ok := cs.getLocalVar(folded); ok {
		return id
	}
	id := cs.varsNum
	cs.block.LocalVars[folded] = id
	cs.varsNum++
	return id
}

func (cs *compilerState) registerGlobalVar(name string) {
	cs.varsGlobal[foldName(name)] = true
}

// resolveVariable classifies a bare ${name} reference (spec §4.D,
// §3 VariableRef). Global identity wins over local (a name declared
// global in any enclosing scope can never become local, spec §4.D);
// an unrecognised name is implicitly treated as local-on-first-read,
// matching `set`'s lazy declaration.
func (cs *compilerState) resolveVariable(name string) VariableRef {
	folded := foldName(name)
	if cs.isVarGlobal(folded) {
		return VariableRef{Kind: VarGlobal, Name: folded}
	}
	if id, ok := cs.getLocalVar(folded); ok {
		return VariableRef{Kind: VarLocal, Local: id}
	}
	return VariableRef{Kind: VarLocal, Local: cs.registerLocalVar(name)}
}

// registerMatchVar propagates bit `num` back to every pending test in
// the innermost block that has one (spec §4.D). It returns false if no
// enclosing block is currently tracking match-populating tests (the
// ${n} reference is still legal; it just reads as empty at runtime).
func (cs *compilerState) registerMatchVar(num int) bool {
	b := cs.block
	if len(b.MatchTestPos) == 0 {
		for i := len(cs.blockStack) - 1; i >= 0; i-- {
			if len(cs.blockStack[i].MatchTestPos) > 0 {
				b = cs.blockStack[i]
				break
			}
		}
	}
	if len(b.MatchTestPos) == 0 {
		return false
	}
	mask := uint64(1) << uint(num)
	for _, pos := range b.MatchTestPos {
		cs.instr[pos].Test.MatchVars |= mask
	}
	b.MatchVars |= mask
	if num+1 > cs.varsMatchMax {
		cs.varsMatchMax = num + 1
	}
	return true
}

// --- control-structure dispatch ---

func (cs *compilerState) parseCommand(tok Token) *CompileError {
	w := tok.Word
	var opened *Block

	switch w {
	case WRequire:
		if err := cs.parseRequire(); err != nil {
			return err
		}

	case WGlobal:
		if err := cs.requireCapability(CapVariables, tok.Line, tok.Col); err != nil {
			return err
		}
		names, err := cs.expectConstantStringList()
		if err != nil {
			return err
		}
		if err := cs.expectInstructionEnd(); err != nil {
			return err
		}
		for _, n := range names {
			cs.registerGlobalVar(string(n))
		}
		return nil

	case WIf:
		t, err := cs.parseTest(0)
		if err != nil {
			return err
		}
		testPos := cs.emit(Instruction{Op: OpTest, Test: t})
		cs.emit(Instruction{Op: OpJz, Addr: sentinel})
		cs.block.IfJmps = nil
		opened = newBlock(WIf)
		opened.MatchTestPos = []int{testPos}
		opened.CapabilityCheckOff = t.Op == TIHave

	case WElsIf:
		if cs.lastBlockType != WIf && cs.lastBlockType != WElsIf {
			return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
				Expected: "'if' before 'elsif'", Found: tokenDesc(tok)}
		}
		t, err := cs.parseTest(0)
		if err != nil {
			return err
		}
		testPos := cs.emit(Instruction{Op: OpTest, Test: t})
		cs.emit(Instruction{Op: OpJz, Addr: sentinel})
		opened = newBlock(WElsIf)
		opened.MatchTestPos = []int{testPos}
		opened.CapabilityCheckOff = t.Op == TIHave

	case WElse:
		if cs.lastBlockType != WIf && cs.lastBlockType != WElsIf {
			return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
				Expected: "'if' or 'elsif' before 'else'", Found: tokenDesc(tok)}
		}
		opened = newBlock(WElse)

	case WStop:
		cs.emit(Instruction{Op: OpStop})

	case WKeep:
		if err := cs.parseKeep(); err != nil {
			return err
		}

	case WFileInto:
		if err := cs.requireCapability(CapFileInto, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseFileInto(); err != nil {
			return err
		}

	case WRedirect:
		if err := cs.parseRedirect(); err != nil {
			return err
		}

	case WDiscard:
		cs.emit(Instruction{Op: OpDiscard})

	case WForEveryPart:
		if err := cs.requireCapability(CapForEveryPart, tok.Line, tok.Col); err != nil {
			return err
		}
		depth := 0
		for _, b := range cs.blockStack {
			if b.Kind == WForEveryPart {
				depth++
			}
		}
		if cs.block.Kind == WForEveryPart {
			depth++
		}
		if depth >= cs.c.limits.MaxNestedForEveryPart {
			return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrTooManyNestedForEveryParts}
		}
		nb := newBlock(WForEveryPart)
		if hasLabel, err := cs.peekTag(WName); err != nil {
			return err
		} else if hasLabel {
			label, err := cs.expectConstantString()
			if err != nil {
				return err
			}
			if cs.labelDefined(label) {
				return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrLabelAlreadyDefined, Name: string(label)}
			}
			nb.withLabel(label)
		}
		cs.emit(Instruction{Op: OpForEveryPartPush})
		cs.emit(Instruction{Op: OpForEveryPart, Addr: sentinel})
		opened = nb

	case WBreak:
		if err := cs.requireCapability(CapForEveryPart, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseBreak(tok); err != nil {
			return err
		}

	case WReturn:
		n := 0
		if cs.block.Kind == WForEveryPart {
			n++
		}
		for _, b := range cs.blockStack {
			if b.Kind == WForEveryPart {
				n++
			}
		}
		cs.emit(Instruction{Op: OpForEveryPartPop, PopCount: n})
		cs.emit(Instruction{Op: OpReturn})

	case WInclude:
		if err := cs.requireCapability(CapInclude, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseInclude(tok); err != nil {
			return err
		}

	case WSet:
		if err := cs.requireCapability(CapVariables, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseSet(); err != nil {
			return err
		}

	case WAddHeader:
		if err := cs.requireCapability(CapEditHeader, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseAddHeader(); err != nil {
			return err
		}

	case WDeleteHeader:
		if err := cs.requireCapability(CapEditHeader, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseDeleteHeader(); err != nil {
			return err
		}

	case WReplace:
		if err := cs.requireCapability(CapMime, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseReplace(); err != nil {
			return err
		}

	case WEnclose:
		if err := cs.requireCapability(CapEnclose, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseEnclose(); err != nil {
			return err
		}

	case WExtractText:
		if err := cs.requireCapability(CapExtractText, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseExtractText(); err != nil {
			return err
		}

	case WConvert:
		if err := cs.requireCapability(CapConvert, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseConvert(); err != nil {
			return err
		}

	case WNotify:
		if err := cs.requireCapability(CapEnotify, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseNotify(); err != nil {
			return err
		}

	case WReject, WEReject:
		cap := CapReject
		if w == WEReject {
			cap = CapEReject
		}
		if err := cs.requireCapability(cap, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseReject(w == WEReject); err != nil {
			return err
		}

	case WVacation:
		if err := cs.requireCapability(CapVacation, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseVacation(); err != nil {
			return err
		}

	case WError:
		if err := cs.parseError(); err != nil {
			return err
		}

	case WSetFlag, WAddFlag, WRemoveFlag:
		if err := cs.requireCapability(CapImap4Flags, tok.Line, tok.Col); err != nil {
			return err
		}
		if err := cs.parseEditFlags(w); err != nil {
			return err
		}

	default:
		if err := cs.ignoreInstruction(); err != nil {
			return err
		}
		cs.emit(Instruction{Op: OpInvalid, InvalidName: string(tok.Name), Line: tok.Line, Col: tok.Col})
		return nil
	}

	if opened != nil {
		nt, err := cs.expect(TkCurlyOpen, "{")
		if err != nil {
			return err
		}
		if len(cs.blockStack) >= cs.c.limits.MaxNestedBlocks {
			return &CompileError{Line: nt.Line, Col: nt.Col, Kind: ErrTooManyNestedBlocks}
		}
		opened.Line, opened.Col = nt.Line, nt.Col
		if cs.block.CapabilityCheckOff {
			opened.CapabilityCheckOff = true
		}
		cs.block.LastBlockStart = len(cs.instr) - 1
		cs.blockStack = append(cs.blockStack, cs.block)
		cs.block = opened
		return nil
	}
	return cs.expectInstructionEnd()
}

func (cs *compilerState) labelDefined(label []byte) bool {
	if cs.block.Kind == WForEveryPart && bytesEq(cs.block.Label, label) {
		return true
	}
	for _, b := range cs.blockStack {
		if b.Kind == WForEveryPart && bytesEq(b.Label, label) {
			return true
		}
	}
	return false
}

func bytesEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// parseBreak handles `break [:name L];` (spec §4.D). Unlike if/elsif/
// foreverypart, break never opens a block.
func (cs *compilerState) parseBreak(tok Token) *CompileError {
	hasLabel, err := cs.peekTag(WName)
	if err != nil {
		return err
	}
	if hasLabel {
		label, err := cs.expectConstantString()
		if err != nil {
			return err
		}
		n := 0
		found := false
		if cs.block.Kind == WForEveryPart {
			n++
			if bytesEq(cs.block.Label, label) {
				found = true
			}
		}
		if !found {
			for i := len(cs.blockStack) - 1; i >= 0; i-- {
				b := cs.blockStack[i]
				if b.Kind != WForEveryPart {
					continue
				}
				n++
				if bytesEq(b.Label, label) {
					cs.emit(Instruction{Op: OpForEveryPartPop, PopCount: n})
					b.BreakJmps = append(b.BreakJmps, cs.emit(Instruction{Op: OpJmp, Addr: sentinel}))
					return cs.expectInstructionEnd()
				}
			}
			return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrLabelUndefined, Name: string(label)}
		}
		cs.emit(Instruction{Op: OpForEveryPartPop, PopCount: n})
		cs.block.BreakJmps = append(cs.block.BreakJmps, cs.emit(Instruction{Op: OpJmp, Addr: sentinel}))
		return cs.expectInstructionEnd()
	}

	if cs.block.Kind == WForEveryPart {
		cs.emit(Instruction{Op: OpForEveryPartPop, PopCount: 1})
		cs.block.BreakJmps = append(cs.block.BreakJmps, cs.emit(Instruction{Op: OpJmp, Addr: sentinel}))
		return cs.expectInstructionEnd()
	}
	for i := len(cs.blockStack) - 1; i >= 0; i-- {
		if cs.blockStack[i].Kind == WForEveryPart {
			// only blockStack[i] is a foreverypart: the blocks above
			// it are if/elsif/else, which hold no loop frame.
			cs.emit(Instruction{Op: OpForEveryPartPop, PopCount: 1})
			cs.blockStack[i].BreakJmps = append(cs.blockStack[i].BreakJmps, cs.emit(Instruction{Op: OpJmp, Addr: sentinel}))
			return cs.expectInstructionEnd()
		}
	}
	return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrBreakOutsideLoop}
}

// closeBlock handles `}` (spec §4.D, the backpatch design note).
func (cs *compilerState) closeBlock() *CompileError {
	cs.emitBlockEndClear()
	prev := cs.blockStack[len(cs.blockStack)-1]
	cs.blockStack = cs.blockStack[:len(cs.blockStack)-1]

	switch cs.block.Kind {
	case WForEveryPart:
		cs.emit(Instruction{Op: OpJmp, Addr: prev.LastBlockStart})
		// natural exit releases the loop frame; a break has already
		// popped its frames, so it jumps past this pop.
		exitPos := cs.emit(Instruction{Op: OpForEveryPartPop, PopCount: 1})
		curPos := len(cs.instr)
		cs.instr[prev.LastBlockStart].Addr = exitPos
		for _, pos := range cs.block.BreakJmps {
			cs.instr[pos].Addr = curPos
		}
		cs.lastBlockType = WUnknown

	case WIf, WElsIf:
		nextIsBlock := false
		if nt, err := cs.peek(); err != nil {
			return err
		} else if nt.Kind == TkIdentifier && (nt.Word == WElsIf || nt.Word == WElse) {
			nextIsBlock = true
		}
		if nextIsBlock {
			prev.IfJmps = append(prev.IfJmps, cs.emit(Instruction{Op: OpJmp, Addr: sentinel}))
		}
		curPos := len(cs.instr)
		cs.instr[prev.LastBlockStart].Addr = curPos
		if !nextIsBlock {
			for _, pos := range prev.IfJmps {
				cs.instr[pos].Addr = curPos
			}
			prev.IfJmps = nil
			cs.lastBlockType = WUnknown
		} else {
			cs.lastBlockType = cs.block.Kind
		}

	case WElse:
		curPos := len(cs.instr)
		for _, pos := range prev.IfJmps {
			cs.instr[pos].Addr = curPos
		}
		prev.IfJmps = nil
		cs.lastBlockType = WElse

	default:
		BUG("unexpected block kind %v at close", cs.block.Kind)
	}

	cs.block = prev
	return nil
}

// emitBlockEndClear mirrors the original's block_end: release this
// block's local-variable range and its match-variable mask (spec §4.D).
func (cs *compilerState) emitBlockEndClear() {
	n := len(cs.block.LocalVars)
	if n > 0 {
		if cs.varsNum > cs.varsNumMax {
			cs.varsNumMax = cs.varsNum
		}
		cs.varsNum -= n
		cs.emit(Instruction{Op: OpClear, MatchMask: cs.block.MatchVars, LocalBase: cs.varsNum, LocalCount: n})
	} else if cs.block.MatchVars != 0 {
		cs.emit(Instruction{Op: OpClear, MatchMask: cs.block.MatchVars})
	}
}

// ignoreInstruction consumes an unrecognised command's argument list
// and terminator, tolerating it per the `ihave` fallback contract
// (spec §4.D "Unknown commands").
func (cs *compilerState) ignoreInstruction() *CompileError {
	depth := 0
	for {
		tok, err := cs.next()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case TkEOF:
			return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedEOF}
		case TkCurlyOpen:
			depth++
		case TkCurlyClose:
			if depth == 0 {
				return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken, Found: "}"}
			}
			depth--
			if depth == 0 {
				return nil
			}
		case TkSemicolon:
			if depth == 0 {
				return nil
			}
		}
	}
}

// parseRequire implements `require <string-list>;` (spec §4.D): it
// unions the listed capabilities into the current block's set. Its
// position is not checked: a require that follows other commands of
// the block is accepted, and its capabilities apply from that point
// on.
func (cs *compilerState) parseRequire() *CompileError {
	names, err := cs.expectConstantStringList()
	if err != nil {
		return err
	}
	if err := cs.expectInstructionEnd(); err != nil {
		return err
	}
	for _, n := range names {
		if cap, ok := GetCapability(n); ok {
			cs.block.Capabilities.Set(cap)
			cs.allCaps.Set(cap)
		}
		// unknown capability names are accepted silently: a later
		// construct needing one will fail with UndeclaredCapability;
		// an unused unknown string is harmless (RFC permits listing
		// capabilities the implementation may not gate on).
	}
	return nil
}
