// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

import "strconv"

// compileTemplate splits a string containing "${...}" interpolations
// (spec §3, §4.D) into a Value. A template with no variable reference
// collapses to a plain VKText; a template with exactly one reference
// and no surrounding text collapses to VKVariable; otherwise the parts
// are kept as a VKList, which downstream consumers (Value used as a
// single string argument) render by concatenating each part's string
// form (spec §5).
func (cs *compilerState) compileTemplate(raw []byte) (Value, *CompileError) {
	var parts []Value
	i := 0
	textStart := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			if i > textStart {
				parts = append(parts, TextValue(string(raw[textStart:i])))
			}
			end := i + 2
			for end < len(raw) && raw[end] != '}' {
				end++
			}
			if end >= len(raw) {
				return Value{}, &CompileError{Kind: ErrInvalidCharacter, Name: string(raw)}
			}
			ref, err := cs.resolveTemplateRef(raw[i+2 : end])
			if err != nil {
				return Value{}, err
			}
			parts = append(parts, VariableValue(ref))
			i = end + 1
			textStart = i
			continue
		}
		i++
	}
	if textStart < len(raw) {
		parts = append(parts, TextValue(string(raw[textStart:])))
	}

	switch len(parts) {
	case 0:
		return TextValue(""), nil
	case 1:
		return parts[0], nil
	default:
		return ListValue(parts), nil
	}
}

// resolveTemplateRef classifies the content of one "${...}" reference
// (spec §3 VariableRef, §4.D namespace handling).
func (cs *compilerState) resolveTemplateRef(content []byte) (VariableRef, *CompileError) {
	name := string(content)
	if isAllDigits(content) {
		n, err := strconv.Atoi(name)
		if err != nil || n >= cs.c.limits.MaxMatchVariables {
			return VariableRef{}, &CompileError{Kind: ErrInvalidMatchVariable, Name: name}
		}
		cs.registerMatchVar(n)
		return VariableRef{Kind: VarMatch, Match: n}, nil
	}

	if dot := indexByte(content, '.'); dot >= 0 {
		ns := string(content[:dot])
		rest := string(content[dot+1:])
		switch ns {
		case "global":
			cs.registerGlobalVar(rest)
			return VariableRef{Kind: VarGlobal, Name: foldName(rest)}, nil
		case "env":
			return VariableRef{Kind: VarEnvironment, Name: rest}, nil
		default:
			return VariableRef{}, &CompileError{Kind: ErrInvalidNamespace, Name: ns}
		}
	}

	if len(content) > cs.c.limits.MaxVariableNameSize {
		return VariableRef{}, &CompileError{Kind: ErrVariableTooLong, Name: name}
	}
	return cs.resolveVariable(name), nil
}

func isAllDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
