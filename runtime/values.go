// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"net/mail"
	"strconv"
	"strings"

	sievesp "github.com/intuitivelabs/sievesp"
)

var envelopeKindByName = map[string]sievesp.EnvelopeKind{
	"from":   sievesp.EnvFrom,
	"to":     sievesp.EnvTo,
	"auth":   sievesp.EnvAuth,
	"notify": sievesp.EnvNotify,
	"orcpt":  sievesp.EnvOrcpt,
	"envid":  sievesp.EnvEnvID,
}

// resolveValue evaluates v to the text a test/action argument needs at
// run time (spec §3, §4.D). Variable references read through the
// current locals/globals/matches/envelope/header state; VKTransform's
// host function-call chain is left unapplied (there is no host hook
// for it) and simply resolves its underlying variable.
func (ctx *Context) resolveValue(v sievesp.Value) string {
	switch v.Kind {
	case sievesp.VKText:
		return v.Text
	case sievesp.VKNumber:
		if v.Num.IsFloat {
			return strconv.FormatFloat(v.Num.Float, 'g', -1, 64)
		}
		return strconv.FormatInt(v.Num.Int, 10)
	case sievesp.VKVariable:
		return ctx.resolveVar(v.Var)
	case sievesp.VKRegex:
		return v.Rx.Source
	case sievesp.VKList:
		var b strings.Builder
		for _, part := range v.List {
			b.WriteString(ctx.resolveValue(part))
		}
		return b.String()
	case sievesp.VKTransform:
		return ctx.resolveVar(v.Transform.Var)
	}
	return ""
}

func (ctx *Context) resolveVar(ref sievesp.VariableRef) string {
	switch ref.Kind {
	case sievesp.VarLocal:
		return ctx.resolveValue(ctx.getLocal(ref.Local))
	case sievesp.VarMatch:
		return ctx.getMatch(ref.Match)
	case sievesp.VarGlobal:
		if v, ok := ctx.getGlobal(ref.Name); ok {
			return ctx.resolveValue(v)
		}
		return ""
	case sievesp.VarEnvironment:
		if ctx.host != nil {
			if v, ok, err := ctx.host.Environment(ctx, ref.Name); err == nil && ok {
				return v
			}
		}
		return ""
	case sievesp.VarEnvelope:
		vs := ctx.env.Lookup(ref.Env)
		if len(vs) == 0 {
			return ""
		}
		return vs[0]
	case sievesp.VarHeader:
		vs, _ := ctx.msg.Header(ref.Header.Name)
		if len(vs) == 0 {
			return ""
		}
		if ref.Header.Part == "" {
			return vs[0]
		}
		parts := addressParts(vs[0], ref.Header.Part)
		if len(parts) == 0 {
			return ""
		}
		return parts[0]
	case sievesp.VarPart:
		if ctx.curPart == nil {
			return ""
		}
		switch ref.Part {
		case "content-type", "contenttype":
			return ctx.curPart.ContentType
		case "subtype":
			return ctx.curPart.SubType
		}
		if v, ok := ctx.curPart.Params[ref.Part]; ok {
			return v
		}
		return ""
	}
	return ""
}

// setVar writes v to the variable ref identifies (OpSet, OpExtractText;
// spec §3 — `set`/`extracttext` only ever target a local or a global,
// never a match/envelope/header/part variable, since those are all
// read-only views over message state).
func (ctx *Context) setVar(ref sievesp.VariableRef, v sievesp.Value) {
	switch ref.Kind {
	case sievesp.VarLocal:
		ctx.setLocal(ref.Local, v)
	case sievesp.VarGlobal:
		ctx.setGlobal(ref.Name, v)
	}
}

// addressParts parses the RFC 5322 mailbox/address-list header value
// and returns the requested address-part (localpart/domain/all/user/
// detail, spec §3) for every address it contains. If the value does not
// parse as a list, it is parsed once more as a single address; if that
// fails too, nil is returned, so one malformed entry hides the others.
func addressParts(header, part string) []string {
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		// ParseAddressList gives up on the first malformed entry; fall
		// back to a single best-effort parse of the whole value.
		if a, err2 := mail.ParseAddress(header); err2 == nil {
			addrs = []*mail.Address{a}
		} else {
			return nil
		}
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		local, domain := splitAddress(a.Address)
		switch part {
		case "localpart":
			out = append(out, local)
		case "domain":
			out = append(out, domain)
		case "user":
			out = append(out, splitDetail(local))
		case "detail":
			if _, det, ok := splitDetailOK(local); ok {
				out = append(out, det)
			} else {
				out = append(out, "")
			}
		default: // "all", or no part requested
			out = append(out, a.Address)
		}
	}
	return out
}

func splitAddress(addr string) (local, domain string) {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr, ""
	}
	return addr[:at], addr[at+1:]
}

// splitDetail implements RFC 5233 subaddressing: "user+detail" ->
// "user". Absent a "+" the whole local-part is the user.
func splitDetail(local string) string {
	user, _, _ := splitDetailOK(local)
	return user
}

func splitDetailOK(local string) (user, detail string, ok bool) {
	if i := strings.Index(local, "+"); i >= 0 {
		return local[:i], local[i+1:], true
	}
	return local, "", false
}
