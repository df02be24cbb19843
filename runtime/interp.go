// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sievesp "github.com/intuitivelabs/sievesp"
)

// Run executes prog against ctx's attached message/envelope/host
// (spec §4, §7) until the program falls off its end, a `stop`/`return`
// outside any include ends it, or a fatal RuntimeError occurs. On a
// normal end it commits the queued disposition actions
// (keep/fileinto/redirect/...) itself, so a caller never has to call
// Commit separately; when it returns an error nothing is committed,
// not even the implicit keep. Grounded on
// calltr/state_machine.go's explicit switch-per-opcode state-transition
// dispatch, generalised from "one SIP message" to "one instruction".
func Run(ctx *Context, prog *sievesp.Sieve) error {
	ctx.prog = prog
	ctx.pc = 0
	for {
		if ctx.instrLimit > 0 {
			ctx.instrCount++
			if ctx.instrCount > ctx.instrLimit {
				ctx.logEvent(EvLoopLimit, "", "")
				return &sievesp.RuntimeError{Kind: sievesp.ErrRTCPULimitReached, PC: ctx.pc}
			}
		}
		if ctx.pc >= len(ctx.prog.Instructions) {
			if !ctx.popInclude() {
				break
			}
			continue
		}
		ins := &ctx.prog.Instructions[ctx.pc]
		stop, err := ctx.step(ins)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return ctx.Commit()
}

// step executes one instruction, advancing ctx.pc as appropriate. It
// reports stop=true when the program should end (OpStop, or OpReturn
// with no enclosing include to resume).
func (ctx *Context) step(ins *sievesp.Instruction) (stop bool, err error) {
	switch ins.Op {
	case sievesp.OpRequire:
		// gates compilation only; nothing to do at run time.
		ctx.pc++

	case sievesp.OpKeep:
		ctx.queueAction(sievesp.OpKeep, "keep", ins.Args)
		ctx.pc++
	case sievesp.OpFileInto:
		ctx.queueAction(sievesp.OpFileInto, "fileinto", ins.Args)
		ctx.pc++
	case sievesp.OpRedirect:
		ctx.queueAction(sievesp.OpRedirect, "redirect", ins.Args)
		ctx.pc++
	case sievesp.OpReject:
		ctx.queueAction(sievesp.OpReject, "reject", ins.Args)
		ctx.pc++
	case sievesp.OpEReject:
		ctx.queueAction(sievesp.OpEReject, "ereject", ins.Args)
		ctx.pc++
	case sievesp.OpNotify:
		ctx.queueAction(sievesp.OpNotify, "notify", ins.Args)
		ctx.pc++
	case sievesp.OpVacation:
		ctx.queueAction(sievesp.OpVacation, "vacation", ins.Args)
		ctx.pc++
	case sievesp.OpDiscard:
		ctx.discard()
		ctx.pc++

	case sievesp.OpStop:
		return true, nil

	case sievesp.OpTest:
		ok, terr := ctx.evalTest(&ins.Test)
		if terr != nil {
			return false, terr
		}
		ctx.lastTest = ok
		ctx.pc++

	case sievesp.OpJmp:
		ctx.pc = ins.Addr
	case sievesp.OpJz:
		if !ctx.lastTest {
			ctx.pc = ins.Addr
		} else {
			ctx.pc++
		}
	case sievesp.OpJnz:
		if ctx.lastTest {
			ctx.pc = ins.Addr
		} else {
			ctx.pc++
		}

	case sievesp.OpForEveryPartPush:
		ctx.pushForEveryPart()
		ctx.pc++
	case sievesp.OpForEveryPart:
		if ctx.advanceForEveryPart() {
			ctx.pc++
		} else {
			ctx.pc = ins.Addr
		}
	case sievesp.OpForEveryPartPop:
		ctx.popForEveryPart(ins.PopCount)
		ctx.pc++

	case sievesp.OpReplace:
		err = ctx.host.Replace(ctx, ins.Args.Name, ctx.resolveValue(ins.Args.HeaderValue), ctx.valueText(ins.Args.Values, 0))
		ctx.pc++
	case sievesp.OpEnclose:
		err = ctx.host.Enclose(ctx, ins.Args.Name, ctx.valueText(ins.Args.Values, 0))
		ctx.pc++
	case sievesp.OpExtractText:
		err = ctx.runExtractText(ins.Args)
		ctx.pc++
	case sievesp.OpConvert:
		err = ctx.runConvert(ins.Args)
		ctx.pc++

	case sievesp.OpAddHeader:
		err = ctx.host.AddHeader(ctx, ins.Args.HeaderName, ctx.resolveValue(ins.Args.HeaderValue), ins.Args.Last)
		ctx.pc++
	case sievesp.OpDeleteHeader:
		err = ctx.host.DeleteHeader(ctx, ins.Args.HeaderName, ins.Args.Index, ins.Args.IndexLast, ctx.resolveTextList(ins.Args.Values))
		ctx.pc++

	case sievesp.OpSet:
		v := ctx.valueText(ins.Args.Values, 0)
		v = applyStringModifiers(v, ins.Args.Modifiers)
		ctx.setVar(ins.Args.FromVar, sievesp.TextValue(v))
		ctx.pc++

	case sievesp.OpClear:
		ctx.clearMatches(ins.MatchMask)
		for i := ins.LocalBase; i < ins.LocalBase+ins.LocalCount; i++ {
			ctx.setLocal(i, sievesp.Value{})
		}
		ctx.pc++

	case sievesp.OpEditFlags:
		ctx.runEditFlags(ins.Args)
		ctx.pc++

	case sievesp.OpError:
		msg := ctx.valueText(ins.Args.Values, 0)
		if ctx.host != nil {
			_ = ctx.host.ScriptError(ctx, msg)
		}
		ctx.logEvent(EvScriptError, "error", msg)
		return false, &sievesp.RuntimeError{Kind: sievesp.ErrRTScriptErrorMessage, PC: ctx.pc, Message: msg}

	case sievesp.OpInclude:
		stop, err = ctx.runInclude(ins.Include)

	case sievesp.OpReturn:
		if ctx.popInclude() {
			return false, nil
		}
		return true, nil

	case sievesp.OpInvalid:
		ctx.logEvent(EvBad, ins.InvalidName, "")
		ctx.pc++

	default:
		return false, &sievesp.RuntimeError{Kind: sievesp.ErrRTInvalidInstruction, PC: ctx.pc}
	}
	return stop, err
}

// runExtractText implements `extracttext` (RFC 5703 §4.6.1): ask the
// host for the message's plain-text rendering, apply the :first byte
// limit defensively (in case the host returns more than asked for),
// and store the result in the named variable.
func (ctx *Context) runExtractText(args sievesp.ActionArgs) error {
	text, err := ctx.host.ExtractText(ctx, args.FirstBytes)
	if err != nil {
		return err
	}
	if args.FirstBytes > 0 {
		text = trimToBytes(text, args.FirstBytes)
	}
	ctx.setVar(args.FromVar, sievesp.TextValue(text))
	return nil
}

// runConvert implements `convert` (RFC 6558): args.Values holds
// from-type, to-type, then the transcoding parameter list.
func (ctx *Context) runConvert(args sievesp.ActionArgs) error {
	from := ctx.valueText(args.Values, 0)
	to := ctx.valueText(args.Values, 1)
	var params []string
	if len(args.Values) > 2 {
		params = ctx.resolveTextList(args.Values[2:])
	}
	return ctx.host.Convert(ctx, from, to, params)
}

// runEditFlags implements setflag/addflag/removeflag (RFC 5232),
// storing the resulting flag set under the synthetic global key
// flagVarKey(args.Name) as a VKList of text Values so hasflag (tests.go
// reusing Test.Headers as the variable-name slot) and currentFlags can
// read it back the same way.
func (ctx *Context) runEditFlags(args sievesp.ActionArgs) {
	key := flagVarKey(args.Name)
	cur := ctx.currentFlags(args.Name)
	next := ctx.resolveTextList(args.Flags)

	var merged []string
	op := "set"
	if len(args.Modifiers) > 0 {
		op = args.Modifiers[0]
	}
	switch op {
	case "add":
		merged = dedupFlags(append(append([]string{}, cur...), next...))
	case "remove":
		merged = removeFlags(cur, next)
	default:
		merged = dedupFlags(next)
	}

	list := make([]sievesp.Value, len(merged))
	for i, f := range merged {
		list[i] = sievesp.TextValue(f)
	}
	ctx.setGlobal(key, sievesp.ListValue(list))
}

func dedupFlags(flags []string) []string {
	seen := make(map[string]bool, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func removeFlags(cur, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, f := range drop {
		skip[f] = true
	}
	out := make([]string, 0, len(cur))
	for _, f := range cur {
		if !skip[f] {
			out = append(out, f)
		}
	}
	return out
}

// runInclude implements `include` (RFC 6609): fetch the named script
// from the host, already compiled, and switch execution to it,
// remembering where to resume once it returns.
func (ctx *Context) runInclude(in sievesp.IncludeArgs) (stop bool, err error) {
	if len(ctx.includes) >= maxIncludeDepth {
		return false, &sievesp.RuntimeError{Kind: sievesp.ErrRTTooManyIncludes, PC: ctx.pc}
	}
	data, found, herr := ctx.host.Include(ctx, in.Location, in.Name, in.Once)
	if herr != nil {
		return false, herr
	}
	if !found {
		if in.Optional {
			ctx.pc++
			return false, nil
		}
		return false, &sievesp.RuntimeError{Kind: sievesp.ErrRTInvalidInstruction, PC: ctx.pc}
	}
	var included sievesp.Sieve
	if err := included.UnmarshalBinary(data); err != nil {
		return false, err
	}
	ctx.includes = append(ctx.includes, includeFrame{prog: ctx.prog, pc: ctx.pc + 1})
	ctx.prog = &included
	ctx.pc = 0
	return false, nil
}

// popInclude resumes the caller frame after an included program runs
// off its own end (or hits `return`). Reports whether a frame was
// popped.
func (ctx *Context) popInclude() bool {
	if len(ctx.includes) == 0 {
		return false
	}
	top := ctx.includes[len(ctx.includes)-1]
	ctx.includes = ctx.includes[:len(ctx.includes)-1]
	ctx.prog = top.prog
	ctx.pc = top.pc
	return true
}

// maxIncludeDepth bounds include nesting independent of the compiler's
// MaxIncludes (which only bounds includes named in a single script);
// this guards against an include cycle spanning several hosted scripts.
const maxIncludeDepth = 10

// applyStringModifiers applies the `set` string modifiers (RFC 5229
// §4) in the order the compiler recorded them.
func applyStringModifiers(s string, mods []string) string {
	for _, m := range mods {
		switch m {
		case "lower":
			s = strings.ToLower(s)
		case "upper":
			s = strings.ToUpper(s)
		case "lowerfirst":
			s = changeFirstRune(s, strings.ToLower)
		case "upperfirst":
			s = changeFirstRune(s, strings.ToUpper)
		case "quotewildcard":
			s = quoteWildcard(s)
		case "length":
			s = strconv.Itoa(utf8.RuneCountInString(s))
		}
	}
	return s
}

func changeFirstRune(s string, f func(string) string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return f(string(r[0])) + string(r[1:])
}

// quoteWildcard escapes the characters ":matches" treats specially
// (RFC 5229 §4) so a value can be safely used as a literal wildcard
// pattern.
func quoteWildcard(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
