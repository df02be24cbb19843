// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

// This file parses the action commands (spec §3 "action instruction",
// §4.D). Each parseX mirrors the shape of parseCommand's control
// structures: consume tags in a loop via peekTag, then the positional
// arguments, leaving instruction-end consumption to the caller.

// parseKeep implements `keep [:flags <string-list>];` (RFC 5232).
func (cs *compilerState) parseKeep() *CompileError {
	var args ActionArgs
	for {
		if ok, err := cs.peekTag(WFlags); err != nil {
			return err
		} else if ok {
			fl, err := cs.expectStringList()
			if err != nil {
				return err
			}
			args.Flags = fl
			continue
		}
		break
	}
	cs.emit(Instruction{Op: OpKeep, Args: args})
	return nil
}

// parseFileInto implements
// `fileinto [:copy] [:flags <string-list>] [:create] <folder: string>;`
func (cs *compilerState) parseFileInto() *CompileError {
	var args ActionArgs
	for {
		if ok, err := cs.peekTag(WCopy); err != nil {
			return err
		} else if ok {
			args.Copy = true
			continue
		}
		if ok, err := cs.peekTag(WCreate); err != nil {
			return err
		} else if ok {
			args.Modifiers = append(args.Modifiers, "create")
			continue
		}
		if ok, err := cs.peekTag(WFlags); err != nil {
			return err
		} else if ok {
			fl, err := cs.expectStringList()
			if err != nil {
				return err
			}
			args.Flags = fl
			continue
		}
		break
	}
	folder, err := cs.expectString()
	if err != nil {
		return err
	}
	args.Values = []Value{folder}
	cs.emit(Instruction{Op: OpFileInto, Args: args})
	return nil
}

// parseRedirect implements `redirect [:copy] <address: string>;`
func (cs *compilerState) parseRedirect() *CompileError {
	var args ActionArgs
	if ok, err := cs.peekTag(WCopy); err != nil {
		return err
	} else if ok {
		args.Copy = true
	}
	addr, err := cs.expectString()
	if err != nil {
		return err
	}
	args.Values = []Value{addr}
	cs.emit(Instruction{Op: OpRedirect, Args: args})
	return nil
}

// parseInclude implements
// `include [:personal / :global] [:once] [:optional] <value: string>;`
// (RFC 6609).
func (cs *compilerState) parseInclude(tok Token) *CompileError {
	if cs.includesNum >= cs.c.limits.MaxIncludes {
		return &CompileError{Line: tok.Line, Col: tok.Col, Kind: ErrTooManyIncludes}
	}
	var in IncludeArgs
	in.Location = "personal"
	for {
		if ok, err := cs.peekTag(WPersonal); err != nil {
			return err
		} else if ok {
			in.Location = "personal"
			continue
		}
		if ok, err := cs.peekTag(WGlobal); err != nil {
			return err
		} else if ok {
			in.Location = "global"
			continue
		}
		if ok, err := cs.peekTag(WOnce); err != nil {
			return err
		} else if ok {
			in.Once = true
			continue
		}
		if ok, err := cs.peekTag(WOptional); err != nil {
			return err
		} else if ok {
			in.Optional = true
			continue
		}
		break
	}
	name, err := cs.expectConstantString()
	if err != nil {
		return err
	}
	in.Name = string(name)
	cs.includesNum++
	cs.emit(Instruction{Op: OpInclude, Include: in})
	return nil
}

// parseSet implements
// `set [MODIFIER]* <name: string> <value: string>;` (RFC 5229).
func (cs *compilerState) parseSet() *CompileError {
	var args ActionArgs
	modifierTags := []struct {
		w    Word
		name string
	}{
		{WLower, "lower"}, {WUpper, "upper"}, {WLowerFirst, "lowerfirst"},
		{WUpperFirst, "upperfirst"}, {WQuoteWildcard, "quotewildcard"}, {WLength, "length"},
	}
modifierLoop:
	for {
		for _, mt := range modifierTags {
			ok, err := cs.peekTag(mt.w)
			if err != nil {
				return err
			}
			if ok {
				args.Modifiers = append(args.Modifiers, mt.name)
				continue modifierLoop
			}
		}
		break
	}
	nameTok, err := cs.peek()
	if err != nil {
		return err
	}
	name, err := cs.expectConstantString()
	if err != nil {
		return err
	}
	if len(name) > cs.c.limits.MaxVariableNameSize {
		return &CompileError{Line: nameTok.Line, Col: nameTok.Col, Kind: ErrVariableTooLong, Name: string(name)}
	}
	val, err := cs.expectString()
	if err != nil {
		return err
	}
	ref := cs.resolveVariable(string(name))
	args.Name = ref.Name
	if ref.Kind == VarLocal {
		args.Index = ref.Local
	}
	args.Values = []Value{val}
	args.FromVar = ref
	cs.emit(Instruction{Op: OpSet, Args: args})
	return nil
}

// parseAddHeader implements
// `addheader [:last] <field-name: string> <value: string>;`
func (cs *compilerState) parseAddHeader() *CompileError {
	var args ActionArgs
	if ok, err := cs.peekTag(WIndexLast); err != nil {
		return err
	} else if ok {
		args.Last = true
	}
	field, err := cs.expectConstantString()
	if err != nil {
		return err
	}
	val, err := cs.expectString()
	if err != nil {
		return err
	}
	args.HeaderName = string(field)
	args.HeaderValue = val
	cs.emit(Instruction{Op: OpAddHeader, Args: args})
	return nil
}

// parseDeleteHeader implements
// `deleteheader [:index <number> [:last]] <field-name: string> [<value-patterns: string-list>];`
func (cs *compilerState) parseDeleteHeader() *CompileError {
	var args ActionArgs
	if ok, err := cs.peekTag(WIndex); err != nil {
		return err
	} else if ok {
		n, err := cs.expectNumber()
		if err != nil {
			return err
		}
		args.Index = int(n)
		if ok, err := cs.peekTag(WIndexLast); err != nil {
			return err
		} else if ok {
			args.IndexLast = true
		}
	}
	field, err := cs.expectConstantString()
	if err != nil {
		return err
	}
	args.HeaderName = string(field)
	if tok, err := cs.peek(); err != nil {
		return err
	} else if tok.Kind == TkStringConstant || tok.Kind == TkStringVariable || tok.Kind == TkBracketOpen {
		vals, err := cs.expectStringList()
		if err != nil {
			return err
		}
		args.Values = vals
	}
	cs.emit(Instruction{Op: OpDeleteHeader, Args: args})
	return nil
}

// parseReplace implements
// `replace [:subject <string>] [:from <string>] <string>;` (RFC 5703).
func (cs *compilerState) parseReplace() *CompileError {
	var args ActionArgs
	for {
		if ok, err := cs.peekTag(WSubject); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.Name = v.Text
			continue
		}
		if ok, err := cs.peekTag(WFrom); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.HeaderValue = v
			continue
		}
		break
	}
	body, err := cs.expectString()
	if err != nil {
		return err
	}
	args.Values = []Value{body}
	cs.emit(Instruction{Op: OpReplace, Args: args})
	return nil
}

// parseEnclose implements
// `enclose [:subject <string>] <string>;` (RFC 5703).
func (cs *compilerState) parseEnclose() *CompileError {
	var args ActionArgs
	if ok, err := cs.peekTag(WSubject); err != nil {
		return err
	} else if ok {
		v, err := cs.expectString()
		if err != nil {
			return err
		}
		args.Name = v.Text
	}
	body, err := cs.expectString()
	if err != nil {
		return err
	}
	args.Values = []Value{body}
	cs.emit(Instruction{Op: OpEnclose, Args: args})
	return nil
}

// parseExtractText implements
// `extracttext [:first <number>] <varname: string>;` (RFC 5703).
func (cs *compilerState) parseExtractText() *CompileError {
	var args ActionArgs
	if ok, err := cs.peekTag(WFirst); err != nil {
		return err
	} else if ok {
		n, err := cs.expectNumber()
		if err != nil {
			return err
		}
		args.FirstBytes = n
	}
	name, err := cs.expectConstantString()
	if err != nil {
		return err
	}
	ref := cs.resolveVariable(string(name))
	args.FromVar = ref
	cs.emit(Instruction{Op: OpExtractText, Args: args})
	return nil
}

// parseConvert implements
// `convert <from-media-type: string> <to-media-type: string> <transcoding-params: string-list>;` (RFC 6558).
func (cs *compilerState) parseConvert() *CompileError {
	var args ActionArgs
	from, err := cs.expectString()
	if err != nil {
		return err
	}
	to, err := cs.expectString()
	if err != nil {
		return err
	}
	params, err := cs.expectStringList()
	if err != nil {
		return err
	}
	args.Values = append([]Value{from, to}, params...)
	args.MimeType = to.Text
	cs.emit(Instruction{Op: OpConvert, Args: args})
	return nil
}

// parseNotify implements
// `notify [:from <string>] [:importance <string>] [:message <string>] <method: string>;` (RFC 5435).
func (cs *compilerState) parseNotify() *CompileError {
	var args ActionArgs
	for {
		if ok, err := cs.peekTag(WFrom); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.HeaderValue = v
			continue
		}
		if ok, err := cs.peekTag(WImportance); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.Importance = v.Text
			continue
		}
		if ok, err := cs.peekTag(WMessage); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.Name = v.Text
			continue
		}
		break
	}
	method, err := cs.expectString()
	if err != nil {
		return err
	}
	args.Values = []Value{method}
	cs.emit(Instruction{Op: OpNotify, Args: args})
	return nil
}

// parseReject implements `reject <string>;` / `ereject <string>;`
// (RFC 5429).
func (cs *compilerState) parseReject(ereject bool) *CompileError {
	msg, err := cs.expectString()
	if err != nil {
		return err
	}
	op := OpReject
	if ereject {
		op = OpEReject
	}
	cs.emit(Instruction{Op: op, Args: ActionArgs{Values: []Value{msg}}})
	return nil
}

// parseVacation implements
// `vacation [:subject <string>] [:from <string>] [:addresses <string-list>]
//           [:mime] [:handle <string>] [:days <number>] <reason: string>;` (RFC 5230).
func (cs *compilerState) parseVacation() *CompileError {
	var args ActionArgs
	args.Days = 7 // RFC 5230 default
	for {
		if ok, err := cs.peekTag(WSubject); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.Name = v.Text
			continue
		}
		if ok, err := cs.peekTag(WFrom); err != nil {
			return err
		} else if ok {
			v, err := cs.expectString()
			if err != nil {
				return err
			}
			args.HeaderValue = v
			continue
		}
		if ok, err := cs.peekTag(WAddresses); err != nil {
			return err
		} else if ok {
			vs, err := cs.expectStringList()
			if err != nil {
				return err
			}
			args.Flags = vs
			continue
		}
		if ok, err := cs.peekTag(WMime); err != nil {
			return err
		} else if ok {
			args.Modifiers = append(args.Modifiers, "mime")
			continue
		}
		if ok, err := cs.peekTag(WHandle); err != nil {
			return err
		} else if ok {
			h, err := cs.expectConstantString()
			if err != nil {
				return err
			}
			args.Handle = string(h)
			continue
		}
		if ok, err := cs.peekTag(WDays); err != nil {
			return err
		} else if ok {
			n, err := cs.expectNumber()
			if err != nil {
				return err
			}
			args.Days = n
			continue
		}
		break
	}
	reason, err := cs.expectString()
	if err != nil {
		return err
	}
	args.Values = []Value{reason}
	cs.emit(Instruction{Op: OpVacation, Args: args})
	return nil
}

// parseError implements `error <string>;` (RFC 5463).
func (cs *compilerState) parseError() *CompileError {
	msg, err := cs.expectString()
	if err != nil {
		return err
	}
	cs.emit(Instruction{Op: OpError, Args: ActionArgs{Values: []Value{msg}}})
	return nil
}

// parseEditFlags implements
// `setflag/addflag/removeflag [<varname: string>] <list-of-flags: string-list>;` (RFC 5232).
// The optional leading string names the target variable; a trailing
// bracketed list or bare string is always the flag list, so a
// single-string form is ambiguous and is treated as the flag list with
// the implicit "internal" variable (spec §12 simplification).
func (cs *compilerState) parseEditFlags(w Word) *CompileError {
	var args ActionArgs
	first, err := cs.expectStringList()
	if err != nil {
		return err
	}
	if tok, err := cs.peek(); err != nil {
		return err
	} else if tok.Kind == TkStringConstant || tok.Kind == TkStringVariable || tok.Kind == TkBracketOpen {
		if len(first) == 1 && first[0].Kind == VKText {
			args.Name = first[0].Text
		}
		second, err := cs.expectStringList()
		if err != nil {
			return err
		}
		args.Flags = second
	} else {
		args.Flags = first
	}
	switch w {
	case WAddFlag:
		args.Modifiers = []string{"add"}
	case WRemoveFlag:
		args.Modifiers = []string{"remove"}
	default:
		args.Modifiers = []string{"set"}
	}
	cs.emit(Instruction{Op: OpEditFlags, Args: args})
	return nil
}
