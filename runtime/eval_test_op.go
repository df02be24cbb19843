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
	"time"

	sievesp "github.com/intuitivelabs/sievesp"
)

// evalTest evaluates a compiled boolean test (spec §3, §4.D) against
// the current message/envelope/variable state, populating match
// variables 0..N from the winning comparison per RFC 5229 before
// returning.
func (ctx *Context) evalTest(t *sievesp.Test) (bool, error) {
	switch t.Op {
	case sievesp.TAllOf:
		for i := range t.Tests {
			ok, err := ctx.evalTest(&t.Tests[i])
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case sievesp.TAnyOf:
		for i := range t.Tests {
			ok, err := ctx.evalTest(&t.Tests[i])
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case sievesp.TNot:
		ok, err := ctx.evalTest(&t.Tests[0])
		return !ok, err

	case sievesp.TTrue:
		return true, nil
	case sievesp.TFalse:
		return false, nil

	case sievesp.TAddress:
		sources := ctx.addressSources(t.Headers, t.AddrPart, true)
		return ctx.evalKeyMatch(t, sources)

	case sievesp.TEnvelope:
		sources := ctx.envelopeSources(t.EnvParts, t.AddrPart)
		return ctx.evalKeyMatch(t, sources)

	case sievesp.THeader:
		return ctx.evalKeyMatch(t, ctx.headerSources(t.Headers))

	case sievesp.TExists:
		for _, name := range t.KeyList {
			if _, ok := ctx.msg.Header(ctx.resolveValue(name)); !ok {
				return false, nil
			}
		}
		return true, nil

	case sievesp.TSize:
		n, err := strconv.ParseInt(ctx.resolveValue(t.Size), 10, 64)
		if err != nil {
			return false, nil
		}
		size := ctx.msg.Size()
		if t.SizeOver {
			return size > n, nil
		}
		return size < n, nil

	case sievesp.TString:
		return ctx.evalKeyMatch(t, ctx.resolveTextList(t.Source))

	case sievesp.TBody:
		return ctx.evalKeyMatch(t, []string{string(ctx.msg.Body(t.BodyRaw))})

	case sievesp.TDate, sievesp.TCurrentDate:
		return ctx.evalDateTest(t)

	case sievesp.TDuplicate:
		return ctx.evalDuplicateTest(t)

	case sievesp.TMailboxExists:
		return ctx.host.MailboxExists(ctx, ctx.resolveTextList(t.KeyList))

	case sievesp.TSpamTest:
		score, err := ctx.host.SpamScore(ctx)
		if err != nil {
			return false, err
		}
		return ctx.evalKeyMatch(t, []string{formatScore(score)})

	case sievesp.TVirusTest:
		score, err := ctx.host.VirusScore(ctx)
		if err != nil {
			return false, err
		}
		return ctx.evalKeyMatch(t, []string{formatScore(score)})

	case sievesp.TIHave:
		for _, name := range t.KeyList {
			cap, ok := sievesp.GetCapability([]byte(ctx.resolveValue(name)))
			if !ok || !ctx.prog.Caps.Test(cap) {
				return false, nil
			}
		}
		return true, nil

	case sievesp.THasFlag:
		names := t.Headers
		if len(names) == 0 {
			names = []string{""}
		}
		var flags []string
		for _, name := range names {
			flags = append(flags, ctx.currentFlags(name)...)
		}
		return ctx.evalKeyMatch(t, flags)

	case sievesp.TValidExtList:
		return ctx.host.ValidExtList(ctx, ctx.resolveTextList(t.KeyList))
	}
	return false, nil
}

// evalKeyMatch runs the shared comparator/match-type evaluation
// (spec §3 MatchType) between sources and t.KeyList, populating match
// variables on a win.
func (ctx *Context) evalKeyMatch(t *sievesp.Test, sources []string) (bool, error) {
	ok, captures := ctx.matchAgainst(t.Comparator, t.Match, t.MatchFlag, sources, t.KeyList)
	if ok {
		for i, c := range captures {
			ctx.setMatch(i, c)
		}
	}
	return ok, nil
}

func (ctx *Context) matchAgainst(comparator string, match sievesp.MatchType, matchFlag string, sources []string, keys []sievesp.Value) (bool, []string) {
	switch match {
	case sievesp.MatchCount:
		count := strconv.Itoa(len(sources))
		for _, k := range keys {
			kn, err := strconv.Atoi(ctx.resolveValue(k))
			if err != nil {
				continue
			}
			sn, _ := strconv.Atoi(count)
			if relOp(matchFlag, sn, kn) {
				return true, nil
			}
		}
		return false, nil

	case sievesp.MatchValue:
		for _, src := range sources {
			for _, k := range keys {
				if relOpCompare(comparator, matchFlag, src, ctx.resolveValue(k)) {
					return true, nil
				}
			}
		}
		return false, nil
	}

	for _, src := range sources {
		for _, k := range keys {
			switch match {
			case sievesp.MatchIs:
				if equalFold(comparator, src, ctx.resolveValue(k)) {
					return true, nil
				}
			case sievesp.MatchContains:
				needle := ctx.resolveValue(k)
				if containsFold(comparator, src, needle) {
					return true, []string{needle}
				}
			case sievesp.MatchMatches:
				if ok, caps := wildcardMatch(comparator, ctx.resolveValue(k), src); ok {
					return true, append([]string{src}, caps...)
				}
			case sievesp.MatchRegex:
				if k.Kind == sievesp.VKRegex && k.Rx.Compiled != nil {
					if matched, caps := k.Rx.Compiled.MatchCaptures([]byte(src)); matched {
						out := make([]string, len(caps))
						for i, c := range caps {
							out[i] = string(c)
						}
						return true, out
					}
				}
			}
		}
	}
	return false, nil
}

func (ctx *Context) resolveTextList(vs []sievesp.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = ctx.resolveValue(v)
	}
	return out
}

func (ctx *Context) headerSources(names []string) []string {
	var out []string
	for _, name := range names {
		vs, _ := ctx.msg.Header(name)
		out = append(out, vs...)
	}
	return out
}

// addressSources collects the requested address-part from every
// address found in the named headers (TAddress).
func (ctx *Context) addressSources(names []string, part string, fullHeader bool) []string {
	var out []string
	for _, name := range names {
		vs, _ := ctx.msg.Header(name)
		for _, v := range vs {
			if fullHeader {
				out = append(out, addressParts(v, part)...)
			} else {
				out = append(out, envelopeAddressPart(v, part))
			}
		}
	}
	return out
}

func (ctx *Context) envelopeSources(names []string, part string) []string {
	var out []string
	for _, name := range names {
		kind, ok := envelopeKindByName[strings.ToLower(name)]
		if !ok {
			continue
		}
		for _, v := range ctx.env.Lookup(kind) {
			out = append(out, envelopeAddressPart(v, part))
		}
	}
	return out
}

// envelopeAddressPart extracts an address-part from a bare envelope
// address (no display name/comments to strip, unlike a full header).
func envelopeAddressPart(addr, part string) string {
	if part == "" || part == "all" {
		return addr
	}
	local, domain := splitAddress(addr)
	switch part {
	case "localpart":
		return local
	case "domain":
		return domain
	case "user":
		return splitDetail(local)
	case "detail":
		_, det, _ := splitDetailOK(local)
		return det
	}
	return addr
}

func (ctx *Context) evalDateTest(t *sievesp.Test) (bool, error) {
	var when time.Time
	if t.Op == sievesp.TCurrentDate {
		now, err := ctx.host.Now(ctx)
		if err != nil {
			return false, err
		}
		when = now
	} else {
		if len(t.Headers) == 0 {
			return false, nil
		}
		vs, ok := ctx.msg.Header(t.Headers[0])
		if !ok || len(vs) == 0 {
			return false, nil
		}
		parsed, err := mail.ParseDate(vs[0])
		if err != nil {
			return false, nil
		}
		when = parsed
	}
	if t.DateZone != "" {
		if loc, err := parseZoneOffset(t.DateZone); err == nil {
			when = when.In(loc)
		}
	}
	formatted := formatDatePart(when, t.DatePart)
	return ctx.evalKeyMatch(t, []string{formatted})
}

func (ctx *Context) evalDuplicateTest(t *sievesp.Test) (bool, error) {
	key := t.DupHeader
	if uid := ctx.resolveValue(t.DupUniqueID); uid != "" {
		key = uid
	}
	if key == "" {
		if vs, ok := ctx.msg.Header("Message-ID"); ok && len(vs) > 0 {
			key = vs[0]
		}
	}
	seconds := t.DupSeconds
	if seconds <= 0 {
		seconds = 7 * 86400
	}
	seen, err := ctx.host.DuplicateSeen(ctx, key, seconds, !t.DupLast)
	if err != nil {
		return false, err
	}
	return seen, nil
}

// currentFlags reads the IMAP flag list most recently set by setflag/
// addflag/removeflag for varName ("" selects the default/internal
// variable, spec §12 simplification documented in commands.go).
func (ctx *Context) currentFlags(varName string) []string {
	v, ok := ctx.getGlobal(flagVarKey(varName))
	if !ok {
		return nil
	}
	out := make([]string, len(v.List))
	for i, e := range v.List {
		out[i] = ctx.resolveValue(e)
	}
	return out
}

func flagVarKey(name string) string {
	if name == "" {
		return "\x00flags"
	}
	return "\x00flags:" + strings.ToLower(name)
}

func formatScore(score float64) string {
	n := int(score)
	if n < 0 {
		n = 0
	}
	if n > 10 {
		n = 10
	}
	return strconv.Itoa(n)
}
