// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// This file parses the boolean test grammar evaluated by Jz/Jnz
// (spec §3, §4.D): allof/anyof/not combinators and the leaf tests
// defined by the base spec and its extensions.

// parseTest parses one test, enforcing MaxNestedTests (spec §6).
func (cs *compilerState) parseTest(depth int) (Test, *CompileError) {
	if depth > cs.c.limits.MaxNestedTests {
		tok, _ := cs.peek()
		return Test{}, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrTooManyNestedTests}
	}
	tok, err := cs.next()
	if err != nil {
		return Test{}, err
	}
	if tok.Kind != TkIdentifier {
		return Test{}, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
			Expected: "test", Found: tokenDesc(tok)}
	}

	switch tok.Word {
	case WAllOf:
		ts, err := cs.parseTestList(depth)
		if err != nil {
			return Test{}, err
		}
		return Test{Op: TAllOf, Tests: ts}, nil

	case WAnyOf:
		ts, err := cs.parseTestList(depth)
		if err != nil {
			return Test{}, err
		}
		return Test{Op: TAnyOf, Tests: ts}, nil

	case WNot:
		if _, err := cs.expect(TkParenOpen, "("); err != nil {
			return Test{}, err
		}
		t, err := cs.parseTest(depth + 1)
		if err != nil {
			return Test{}, err
		}
		if _, err := cs.expect(TkParenClose, ")"); err != nil {
			return Test{}, err
		}
		return Test{Op: TNot, Tests: []Test{t}}, nil

	case WTrue:
		return Test{Op: TTrue}, nil
	case WFalse:
		return Test{Op: TFalse}, nil

	case WAddress:
		return cs.parseAddressLikeTest(TAddress, false)
	case WEnvelope:
		return cs.parseAddressLikeTest(TEnvelope, true)
	case WHeader:
		return cs.parseHeaderTest()
	case WString:
		return cs.parseStringTest()
	case WExists:
		names, err := cs.expectStringList()
		if err != nil {
			return Test{}, err
		}
		return Test{Op: TExists, KeyList: names}, nil
	case WSize:
		return cs.parseSizeTest()
	case WBody:
		return cs.parseBodyTest()
	case WDate:
		return cs.parseDateTest(false)
	case WCurrentDate:
		return cs.parseDateTest(true)
	case WDuplicate:
		return cs.parseDuplicateTest()
	case WMailboxExists:
		names, err := cs.expectStringList()
		if err != nil {
			return Test{}, err
		}
		return Test{Op: TMailboxExists, KeyList: names}, nil
	case WSpamTest:
		return cs.parseScoreTest(TSpamTest)
	case WVirusTest:
		return cs.parseScoreTest(TVirusTest)
	case WIHave:
		return cs.parseIHaveTest()
	case WHasFlag:
		return cs.parseHasFlagTest()
	case WValid_ExtList:
		names, err := cs.expectStringList()
		if err != nil {
			return Test{}, err
		}
		return Test{Op: TValidExtList, KeyList: names}, nil
	}

	return Test{}, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
		Expected: "test", Found: tokenDesc(tok)}
}

// parseTestList parses "(" test *("," test) ")".
func (cs *compilerState) parseTestList(depth int) ([]Test, *CompileError) {
	if _, err := cs.expect(TkParenOpen, "("); err != nil {
		return nil, err
	}
	var out []Test
	for {
		t, err := cs.parseTest(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		tok, err := cs.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkParenClose {
			break
		}
		if tok.Kind != TkComma {
			return nil, &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrUnexpectedToken,
				Expected: "',' or ')'", Found: tokenDesc(tok)}
		}
	}
	return out, nil
}

// parseComparatorAndMatch consumes zero or more of the ":comparator",
// ":is"/":contains"/":matches"/":regex"/":count"/":value" tags shared
// by nearly every leaf test (spec §3 MatchType, §4.D).
func (cs *compilerState) parseComparatorAndMatch() (comparator string, match MatchType, matchFlag string, err *CompileError) {
	match = MatchIs
	for {
		if ok, e := cs.peekTag(WComparator); e != nil {
			return "", 0, "", e
		} else if ok {
			v, e := cs.expectConstantString()
			if e != nil {
				return "", 0, "", e
			}
			comparator = string(v)
			continue
		}
		if ok, e := cs.peekTag(WIs); e != nil {
			return "", 0, "", e
		} else if ok {
			match = MatchIs
			continue
		}
		if ok, e := cs.peekTag(WContains); e != nil {
			return "", 0, "", e
		} else if ok {
			match = MatchContains
			continue
		}
		if ok, e := cs.peekTag(WMatches); e != nil {
			return "", 0, "", e
		} else if ok {
			match = MatchMatches
			continue
		}
		if ok, e := cs.peekTag(WRegex); e != nil {
			return "", 0, "", e
		} else if ok {
			match = MatchRegex
			continue
		}
		if ok, e := cs.peekTag(WCount); e != nil {
			return "", 0, "", e
		} else if ok {
			match = MatchCount
			f, e := cs.expectConstantString()
			if e != nil {
				return "", 0, "", e
			}
			matchFlag = string(f)
			continue
		}
		if ok, e := cs.peekTag(WValue); e != nil {
			return "", 0, "", e
		} else if ok {
			match = MatchValue
			f, e := cs.expectConstantString()
			if e != nil {
				return "", 0, "", e
			}
			matchFlag = string(f)
			continue
		}
		break
	}
	return comparator, match, matchFlag, nil
}

// parseAddressPart consumes an optional ":localpart"/":domain"/":all"/
// ":detail"/":user" tag (spec §3 address-part).
func (cs *compilerState) parseAddressPart() (string, *CompileError) {
	for _, w := range []Word{WLocalPart, WDomain, WAll, WDetail, WUser} {
		if ok, err := cs.peekTag(w); err != nil {
			return "", err
		} else if ok {
			return w.String(), nil
		}
	}
	return "", nil
}

// parseAddressLikeTest parses the shared `address`/`envelope` grammar:
// [ADDRESS-PART] [COMPARATOR] [MATCH-TYPE] <names: string-list> <key-list: string-list>.
// envelope stores its part names in EnvParts, address in Headers.
func (cs *compilerState) parseAddressLikeTest(op TestOp, envelope bool) (Test, *CompileError) {
	var t Test
	t.Op = op
	if p, err := cs.parseAddressPart(); err != nil {
		return Test{}, err
	} else {
		t.AddrPart = p
	}
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	names, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	if envelope {
		t.EnvParts = valuesToStrings(names)
	} else {
		t.Headers = valuesToStrings(names)
	}
	keys, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.KeyList = keys
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (cs *compilerState) parseHeaderTest() (Test, *CompileError) {
	var t Test
	t.Op = THeader
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	names, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.Headers = valuesToStrings(names)
	keys, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.KeyList = keys
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (cs *compilerState) parseStringTest() (Test, *CompileError) {
	var t Test
	t.Op = TString
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	source, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	keys, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.Source = source // resolved at run time so a "${var}" operand still works
	t.KeyList = keys
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (cs *compilerState) parseSizeTest() (Test, *CompileError) {
	var t Test
	t.Op = TSize
	if ok, err := cs.peekTag(WOver); err != nil {
		return Test{}, err
	} else if ok {
		t.SizeOver = true
	} else if ok, err := cs.peekTag(WUnder); err != nil {
		return Test{}, err
	} else if ok {
		t.SizeOver = false
	}
	n, err := cs.expectNumber()
	if err != nil {
		return Test{}, err
	}
	t.Size = NumberValue(n)
	return t, nil
}

func (cs *compilerState) parseBodyTest() (Test, *CompileError) {
	var t Test
	t.Op = TBody
	if ok, err := cs.peekTag(WRaw); err != nil {
		return Test{}, err
	} else if ok {
		t.BodyRaw = true
	} else if ok, err := cs.peekTag(WText); err != nil {
		return Test{}, err
	} else if ok {
		t.BodyRaw = false
	}
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	keys, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.KeyList = keys
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (cs *compilerState) parseDateTest(current bool) (Test, *CompileError) {
	var t Test
	if current {
		t.Op = TCurrentDate
	} else {
		t.Op = TDate
	}
	if ok, err := cs.peekTag(WZone); err != nil {
		return Test{}, err
	} else if ok {
		z, err := cs.expectConstantString()
		if err != nil {
			return Test{}, err
		}
		t.DateZone = string(z)
	}
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	if !current {
		hdr, err := cs.expectString()
		if err != nil {
			return Test{}, err
		}
		t.Headers = []string{hdr.Text}
	}
	part, err := cs.expectConstantString()
	if err != nil {
		return Test{}, err
	}
	t.DatePart = string(part)
	keys, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.KeyList = keys
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (cs *compilerState) parseDuplicateTest() (Test, *CompileError) {
	var t Test
	t.Op = TDuplicate
	for {
		if ok, err := cs.peekTag(WHeader); err != nil {
			return Test{}, err
		} else if ok {
			h, err := cs.expectConstantString()
			if err != nil {
				return Test{}, err
			}
			t.DupHeader = string(h)
			continue
		}
		if ok, err := cs.peekTag(WUniqueID); err != nil {
			return Test{}, err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return Test{}, err
			}
			t.DupUniqueID = v
			continue
		}
		if ok, err := cs.peekTag(WSeconds); err != nil {
			return Test{}, err
		} else if ok {
			n, err := cs.expectNumber()
			if err != nil {
				return Test{}, err
			}
			t.DupSeconds = n
			continue
		}
		if ok, err := cs.peekTag(WIndexLast); err != nil {
			return Test{}, err
		} else if ok {
			t.DupLast = true
			continue
		}
		break
	}
	return t, nil
}

func (cs *compilerState) parseScoreTest(op TestOp) (Test, *CompileError) {
	var t Test
	t.Op = op
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	keys, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	t.KeyList = keys
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

// parseIHaveTest implements `ihave <capability-names: string-list>`
// (RFC 5463). The test itself is true iff every named capability was
// declared via require. When it is the whole test of an `if`/`elsif`,
// parseCommand sets Block.CapabilityCheckOff on the block it opens, so
// commands inside that block (and blocks nested in it) may use
// capabilities the script merely probes for; the `else` branch and
// ihave nested inside allof/anyof/not get no such exemption.
func (cs *compilerState) parseIHaveTest() (Test, *CompileError) {
	names, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	return Test{Op: TIHave, KeyList: names}, nil
}

func (cs *compilerState) parseHasFlagTest() (Test, *CompileError) {
	var t Test
	t.Op = THasFlag
	cmp, match, flag, err := cs.parseComparatorAndMatch()
	if err != nil {
		return Test{}, err
	}
	t.Comparator, t.Match, t.MatchFlag = cmp, match, flag
	first, err := cs.expectStringList()
	if err != nil {
		return Test{}, err
	}
	if tok, err := cs.peek(); err != nil {
		return Test{}, err
	} else if tok.Kind == TkStringConstant || tok.Kind == TkStringVariable || tok.Kind == TkBracketOpen {
		second, err := cs.expectStringList()
		if err != nil {
			return Test{}, err
		}
		t.Headers = valuesToStrings(first) // variable-list, reused slot
		t.KeyList = second
	} else {
		t.KeyList = first
	}
	if err := cs.compileRegexKeys(&t); err != nil {
		return Test{}, err
	}
	return t, nil
}

// compileRegexKeys converts t.KeyList's literal strings into VKRegex
// values when the test was given the :regex match type (spec §3 Regex
// value). If a RegexCompiler was supplied to the Compiler, each pattern
// is validated and precompiled here; without one the pattern is kept
// as source text only, is not validated, and Rx.Compiled stays nil.
func (cs *compilerState) compileRegexKeys(t *Test) *CompileError {
	if t.Match != MatchRegex {
		return nil
	}
	for i, v := range t.KeyList {
		if v.Kind != VKText {
			continue
		}
		rx := Regex{Source: v.Text}
		if cs.c.regexCompiler != nil {
			compiled, err := cs.c.regexCompiler.Compile(v.Text, false)
			if err != nil {
				return &CompileError{Line: cs.lex.line, Col: cs.lex.col, Kind: ErrInvalidRegex, Name: v.Text}
			}
			rx.Compiled = compiled
		}
		t.KeyList[i] = Value{Kind: VKRegex, Rx: rx}
	}
	return nil
}

// valuesToStrings extracts literal text from Values that are plain
// constants; template values keep their empty string placeholder here
// since the set of header/source names is normally constant (spec §4.D).
func valuesToStrings(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		if v.Kind == VKText {
			out[i] = v.Text
		}
	}
	return out
}
