// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import sievesp "github.com/intuitivelabs/sievesp"

// pendingAction is one disposition action queued during Run, committed
// (or dropped) by Commit once the script finishes (spec §4.H, RFC 5228
// §2.10). Non-dispositional actions (addheader, setflag, replace, ...)
// are not queued here: they fire immediately from interp.go, since
// later tests in the same script can observe their effect.
type pendingAction struct {
	op   sievesp.InstrOp
	args sievesp.ActionArgs
}

// queueAction records a disposition action. Keep, fileinto, redirect,
// reject and ereject also mark that the implicit keep no longer
// applies (RFC 5228 §2.10.2); vacation and notify do not cancel it.
// Discard is handled separately since it has no action of its own to
// queue.
//
// Repeated dispositions of the same kind collapse per spec §4.H: a
// second fileinto to a mailbox already queued, a second redirect to an
// address already queued, or any keep after one is already queued, is
// dropped rather than appended.
func (ctx *Context) queueAction(op sievesp.InstrOp, name string, args sievesp.ActionArgs) {
	if op != sievesp.OpVacation && op != sievesp.OpNotify {
		ctx.keptByFlags = true
	}
	switch op {
	case sievesp.OpKeep:
		for _, p := range ctx.pending {
			if p.op == sievesp.OpKeep {
				ctx.logEvent(EvActionDropped, name, "keep already pending")
				return
			}
		}
	case sievesp.OpFileInto:
		mailbox := ctx.valueText(args.Values, 0)
		for _, p := range ctx.pending {
			if p.op == sievesp.OpFileInto && ctx.valueText(p.args.Values, 0) == mailbox {
				ctx.logEvent(EvActionDropped, name, "duplicate fileinto \""+mailbox+"\"")
				return
			}
		}
	case sievesp.OpRedirect:
		addr := ctx.valueText(args.Values, 0)
		for _, p := range ctx.pending {
			if p.op == sievesp.OpRedirect && ctx.valueText(p.args.Values, 0) == addr {
				ctx.logEvent(EvActionDropped, name, "duplicate redirect \""+addr+"\"")
				return
			}
		}
	}
	ctx.pending = append(ctx.pending, pendingAction{op: op, args: args})
	ctx.logEvent(EvActionPending, name, "")
}

// discard cancels the implicit keep without queuing a replacement
// action (RFC 5228 §4.5: it only suppresses the fallback keep, it
// does not cancel any other action already queued).
func (ctx *Context) discard() {
	ctx.keptByFlags = true
	ctx.logEvent(EvActionPending, "discard", "")
}

// vacationDuplicate reports whether a vacation reply keyed by handle
// was already sent within the RFC 5230 §4.7 dedup window, consulting
// the host's duplicate-tracking store. A host error is treated as "not
// a duplicate" so a transient store failure degrades to sending an
// extra reply rather than silently eating the action.
func (ctx *Context) vacationDuplicate(handle string, days int64) bool {
	if days <= 0 {
		days = 7
	}
	key := "vacation:" + handle
	dup, err := ctx.host.DuplicateSeen(ctx, key, days*86400, true)
	if err != nil {
		return false
	}
	return dup
}

// Commit executes every queued disposition action in the order it was
// produced, then applies the implicit keep if nothing cancelled it
// (spec §4.H). It is the only point at which this package calls a
// HostFunctions delivery method.
func (ctx *Context) Commit() error {
	fired := false
	for _, a := range ctx.pending {
		if err := ctx.fire(a); err != nil {
			return err
		}
		fired = true
	}
	if !ctx.keptByFlags {
		if err := ctx.host.Keep(ctx, nil); err != nil {
			return err
		}
		ctx.logEvent(EvImplicitKeep, "keep", "")
		return nil
	}
	if !fired {
		// nothing was queued and a bare discard cancelled the
		// implicit keep: no copy of the message is kept.
		ctx.logEvent(EvImplicitKeep, "discard", "suppressed, no action fired")
	}
	return nil
}

func (ctx *Context) fire(a pendingAction) error {
	args := a.args
	switch a.op {
	case sievesp.OpKeep:
		err := ctx.host.Keep(ctx, ctx.flagStrings(args.Flags))
		ctx.logFired("keep", err)
		return err
	case sievesp.OpFileInto:
		mailbox := ctx.valueText(args.Values, 0)
		err := ctx.host.FileInto(ctx, mailbox, ctx.flagStrings(args.Flags), args.Copy)
		ctx.logFired("fileinto", err)
		return err
	case sievesp.OpRedirect:
		addr := ctx.valueText(args.Values, 0)
		err := ctx.host.Redirect(ctx, addr, args.Copy)
		ctx.logFired("redirect", err)
		return err
	case sievesp.OpReject, sievesp.OpEReject:
		msg := ctx.valueText(args.Values, 0)
		err := ctx.host.Reject(ctx, msg, a.op == sievesp.OpEReject)
		ctx.logFired("reject", err)
		return err
	case sievesp.OpNotify:
		method := ctx.valueText(args.Values, 0)
		err := ctx.host.Notify(ctx, method, ctx.resolveValue(args.HeaderValue), args.Importance, args.Name)
		ctx.logFired("notify", err)
		return err
	case sievesp.OpVacation:
		if ctx.vacationDuplicate(args.Handle, args.Days) {
			ctx.logEvent(EvActionDropped, "vacation", "duplicate within handle window")
			return nil
		}
		reason := ctx.valueText(args.Values, 0)
		mime := hasModifier(args.Modifiers, "mime")
		err := ctx.host.Vacation(ctx, reason, args.Name, ctx.resolveValue(args.HeaderValue), args.Handle, ctx.flagStrings(args.Flags), args.Days, mime)
		ctx.logFired("vacation", err)
		return err
	}
	return nil
}

func (ctx *Context) logFired(name string, err error) {
	if err != nil {
		ctx.logEvent(EvScriptError, name, err.Error())
		return
	}
	ctx.logEvent(EvActionFired, name, "")
}

func hasModifier(mods []string, name string) bool {
	for _, m := range mods {
		if m == name {
			return true
		}
	}
	return false
}

// flagStrings resolves each flag argument (a literal or a "${...}"
// interpolation, per vartemplate.go) to its current text.
func (ctx *Context) flagStrings(vs []sievesp.Value) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, ctx.resolveValue(v))
	}
	return out
}

func (ctx *Context) valueText(vs []sievesp.Value, i int) string {
	if i < 0 || i >= len(vs) {
		return ""
	}
	return ctx.resolveValue(vs[i])
}

// trimToBytes truncates s to at most n bytes without splitting a UTF-8
// rune (RFC 5703 §4.6.1 extracttext :first, ported in meaning from
// original_source's action_set.rs UTF-8-boundary truncation).
func trimToBytes(s string, n int64) string {
	if n <= 0 || int64(len(s)) <= n {
		return s
	}
	end := int(n)
	for end > 0 && isUTF8Continuation(s[end]) {
		end--
	}
	return s[:end]
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}
