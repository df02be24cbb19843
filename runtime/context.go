// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import sievesp "github.com/intuitivelabs/sievesp"

// loopFrame is one active `foreverypart` iteration (spec §4.G): the
// sibling parts at this nesting level and the cursor into them, so
// OpForEveryPart can re-test "any part left" on every iteration.
type loopFrame struct {
	siblings []*Part
	idx      int
}

// includeFrame is one suspended caller while an `include`d program
// runs (spec §4.D, RFC 6609). Run switches ctx.prog/ctx.pc to the
// included program and restores them from the top of Context.includes
// on OpReturn falling off the included program's end.
type includeFrame struct {
	prog *sievesp.Sieve
	pc   int
}

// Context is one script execution's mutable state (spec §4.G),
// generalising calltr/callstate.go's CallKey/CallEntry buffer-plus-
// parsed-view aggregate from "one SIP dialog" to "one script run".
// A Context is reusable across runs of the same compiled program via
// pool.go's sync.Pool; Reset clears it back to a pristine state.
type Context struct {
	prog *sievesp.Sieve
	pc   int

	locals  []sievesp.Value
	globals map[string]sievesp.Value

	matches    []string
	matchesSet uint64
	lastTest   bool

	msg      Message
	env      Envelope
	host     HostFunctions

	loops   []loopFrame
	curPart *Part

	includes []includeFrame

	pending     []pendingAction
	keptByFlags bool // keep/fileinto/redirect/reject/ereject/discard ran: no implicit keep

	instrCount int
	instrLimit int

	Events []Event
}

// NewContext allocates a zeroed Context sized for prog. Prefer
// Pool.Get for repeated runs; this is for one-off callers.
func NewContext(prog *sievesp.Sieve) *Context {
	ctx := &Context{}
	ctx.init(prog)
	return ctx
}

func (ctx *Context) init(prog *sievesp.Sieve) {
	ctx.prog = prog
	ctx.pc = 0
	if cap(ctx.locals) < prog.PeakLocals {
		ctx.locals = make([]sievesp.Value, prog.PeakLocals)
	} else {
		ctx.locals = ctx.locals[:prog.PeakLocals]
		for i := range ctx.locals {
			ctx.locals[i] = sievesp.Value{}
		}
	}
	if ctx.globals == nil {
		ctx.globals = make(map[string]sievesp.Value)
	} else {
		for k := range ctx.globals {
			delete(ctx.globals, k)
		}
	}
	if cap(ctx.matches) < prog.PeakMatches {
		ctx.matches = make([]string, prog.PeakMatches)
	} else {
		ctx.matches = ctx.matches[:prog.PeakMatches]
		for i := range ctx.matches {
			ctx.matches[i] = ""
		}
	}
	ctx.matchesSet = 0
	ctx.lastTest = false
	ctx.loops = ctx.loops[:0]
	ctx.curPart = nil
	ctx.includes = ctx.includes[:0]
	ctx.pending = ctx.pending[:0]
	ctx.keptByFlags = false
	ctx.instrCount = 0
	ctx.Events = ctx.Events[:0]
}

// Prepare attaches the per-run collaborators and the CPU-instruction
// budget (spec §6) before Run executes. Call after NewContext/Pool.Get
// (which only set up the program-shaped storage) and before Run.
func (ctx *Context) Prepare(msg Message, env Envelope, host HostFunctions, maxInstructions int) {
	ctx.msg = msg
	ctx.env = env
	ctx.host = host
	ctx.instrLimit = maxInstructions
	if r := msg.Root(); r != nil {
		ctx.curPart = r
	}
}

// Reset clears ctx so it can be returned to a Pool and reused by an
// unrelated later run.
func (ctx *Context) Reset() {
	ctx.prog = nil
	ctx.msg = nil
	ctx.env = Envelope{}
	ctx.host = nil
	ctx.locals = ctx.locals[:0]
	for k := range ctx.globals {
		delete(ctx.globals, k)
	}
	ctx.matches = ctx.matches[:0]
	ctx.matchesSet = 0
	ctx.lastTest = false
	ctx.loops = ctx.loops[:0]
	ctx.curPart = nil
	ctx.includes = ctx.includes[:0]
	ctx.pending = ctx.pending[:0]
	ctx.keptByFlags = false
	ctx.instrCount = 0
	ctx.instrLimit = 0
	ctx.Events = ctx.Events[:0]
}

func (ctx *Context) logEvent(kind EventKind, action, detail string) {
	ctx.Events = append(ctx.Events, Event{Kind: kind, Action: action, Detail: detail, PC: ctx.pc})
}

// setLocal grows ctx.locals on demand: Sieve.PeakLocals is an upper
// bound observed at compile time, but a recompiled/hand-built program
// could under-report it, and growing defensively is cheaper than a
// second compiler-trust invariant to maintain here.
func (ctx *Context) setLocal(idx int, v sievesp.Value) {
	for idx >= len(ctx.locals) {
		ctx.locals = append(ctx.locals, sievesp.Value{})
	}
	ctx.locals[idx] = v
}

func (ctx *Context) getLocal(idx int) sievesp.Value {
	if idx < 0 || idx >= len(ctx.locals) {
		return sievesp.Value{}
	}
	return ctx.locals[idx]
}

func (ctx *Context) setMatch(n int, v string) {
	for n >= len(ctx.matches) {
		ctx.matches = append(ctx.matches, "")
	}
	ctx.matches[n] = v
	ctx.matchesSet |= 1 << uint(n)
}

func (ctx *Context) getMatch(n int) string {
	if n < 0 || n >= len(ctx.matches) || ctx.matchesSet&(1<<uint(n)) == 0 {
		return ""
	}
	return ctx.matches[n]
}

// clearMatches drops the capture groups named by mask (OpClear, spec
// §4.D: match variables go out of scope at block exit so a sibling
// `if` cannot observe a stale capture).
func (ctx *Context) clearMatches(mask uint64) {
	ctx.matchesSet &^= mask
	for n := 0; n < len(ctx.matches); n++ {
		if mask&(1<<uint(n)) != 0 {
			ctx.matches[n] = ""
		}
	}
}

func (ctx *Context) setGlobal(name string, v sievesp.Value) {
	ctx.globals[name] = v
}

func (ctx *Context) getGlobal(name string) (sievesp.Value, bool) {
	v, ok := ctx.globals[name]
	return v, ok
}
