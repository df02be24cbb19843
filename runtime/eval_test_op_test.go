// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"testing"

	sievesp "github.com/intuitivelabs/sievesp"
)

func contextWithMsg(headers map[string][]string, body string) *Context {
	prog := &sievesp.Sieve{PeakMatches: 8}
	ctx := NewContext(prog)
	ctx.Prepare(newFakeMessage(headers, body), Envelope{}, newFakeHost(), 0)
	return ctx
}

func mustEval(t *testing.T, ctx *Context, test sievesp.Test) bool {
	t.Helper()
	ok, err := ctx.evalTest(&test)
	if err != nil {
		t.Fatalf("evalTest(%+v) returned error: %v", test, err)
	}
	return ok
}

func TestEvalTestExists(t *testing.T) {
	ctx := contextWithMsg(map[string][]string{"Subject": {"hi"}}, "")
	if !mustEval(t, ctx, sievesp.Test{Op: sievesp.TExists, KeyList: []sievesp.Value{sievesp.TextValue("Subject")}}) {
		t.Errorf("exists Subject = false, want true")
	}
	if mustEval(t, ctx, sievesp.Test{Op: sievesp.TExists, KeyList: []sievesp.Value{sievesp.TextValue("X-Missing")}}) {
		t.Errorf("exists X-Missing = true, want false")
	}
}

func TestEvalTestSize(t *testing.T) {
	ctx := contextWithMsg(nil, "0123456789") // 10 bytes
	if !mustEval(t, ctx, sievesp.Test{Op: sievesp.TSize, Size: sievesp.TextValue("5"), SizeOver: true}) {
		t.Errorf("size :over 5 = false, want true (body is 10 bytes)")
	}
	if mustEval(t, ctx, sievesp.Test{Op: sievesp.TSize, Size: sievesp.TextValue("5"), SizeOver: false}) {
		t.Errorf("size :under 5 = true, want false (body is 10 bytes)")
	}
}

func TestEvalTestHeaderIs(t *testing.T) {
	ctx := contextWithMsg(map[string][]string{"Subject": {"Hello"}}, "")
	test := sievesp.Test{
		Op:      sievesp.THeader,
		Match:   sievesp.MatchIs,
		Headers: []string{"Subject"},
		KeyList: []sievesp.Value{sievesp.TextValue("hello")},
	}
	if !mustEval(t, ctx, test) {
		t.Errorf("header :is Subject hello = false, want true (case-insensitive default comparator)")
	}
}

func TestEvalTestAddressLocalPart(t *testing.T) {
	ctx := contextWithMsg(map[string][]string{"From": {"Alice <alice@example.com>"}}, "")
	test := sievesp.Test{
		Op:       sievesp.TAddress,
		Match:    sievesp.MatchIs,
		Headers:  []string{"From"},
		AddrPart: "localpart",
		KeyList:  []sievesp.Value{sievesp.TextValue("alice")},
	}
	if !mustEval(t, ctx, test) {
		t.Errorf("address :localpart :is From alice = false, want true")
	}
}

func TestEvalTestEnvelope(t *testing.T) {
	prog := &sievesp.Sieve{PeakMatches: 8}
	ctx := NewContext(prog)
	env := Envelope{Parts: []EnvelopePart{{Kind: sievesp.EnvFrom, Value: "bob@example.net"}}}
	ctx.Prepare(newFakeMessage(nil, ""), env, newFakeHost(), 0)
	test := sievesp.Test{
		Op:       sievesp.TEnvelope,
		Match:    sievesp.MatchIs,
		EnvParts: []string{"from"},
		AddrPart: "domain",
		KeyList:  []sievesp.Value{sievesp.TextValue("example.net")},
	}
	if !mustEval(t, ctx, test) {
		t.Errorf("envelope :domain :is from example.net = false, want true")
	}
}

func TestEvalTestMailboxExists(t *testing.T) {
	ctx := contextWithMsg(nil, "")
	ctx.host.(*fakeHost).mailboxes["INBOX"] = true
	ok, err := ctx.evalTest(&sievesp.Test{Op: sievesp.TMailboxExists, KeyList: []sievesp.Value{sievesp.TextValue("INBOX")}})
	if err != nil || !ok {
		t.Errorf("mailboxexists INBOX = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = ctx.evalTest(&sievesp.Test{Op: sievesp.TMailboxExists, KeyList: []sievesp.Value{sievesp.TextValue("Nope")}})
	if err != nil || ok {
		t.Errorf("mailboxexists Nope = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestEvalTestDuplicate(t *testing.T) {
	ctx := contextWithMsg(map[string][]string{"Message-ID": {"<abc@example.com>"}}, "")
	test := sievesp.Test{Op: sievesp.TDuplicate}
	if mustEval(t, ctx, test) {
		t.Errorf("first duplicate check = true, want false (never seen before)")
	}
	if !mustEval(t, ctx, test) {
		t.Errorf("second duplicate check = false, want true (same Message-ID seen again)")
	}
}

func TestEvalTestMatchesWildcardPopulatesCaptures(t *testing.T) {
	ctx := contextWithMsg(map[string][]string{"Subject": {"order-12345"}}, "")
	test := sievesp.Test{
		Op:      sievesp.THeader,
		Match:   sievesp.MatchMatches,
		Headers: []string{"Subject"},
		KeyList: []sievesp.Value{sievesp.TextValue("order-*")},
	}
	if !mustEval(t, ctx, test) {
		t.Fatalf("header :matches Subject order-* = false, want true")
	}
	if got := ctx.getMatch(1); got != "12345" {
		t.Errorf("match variable 1 = %q, want %q", got, "12345")
	}
}

func TestEvalTestAllOfAnyOfNot(t *testing.T) {
	ctx := contextWithMsg(map[string][]string{"Subject": {"Hello"}}, "")
	trueT := sievesp.Test{Op: sievesp.TTrue}
	falseT := sievesp.Test{Op: sievesp.TFalse}

	if !mustEval(t, ctx, sievesp.Test{Op: sievesp.TAllOf, Tests: []sievesp.Test{trueT, trueT}}) {
		t.Errorf("allof(true, true) = false, want true")
	}
	if mustEval(t, ctx, sievesp.Test{Op: sievesp.TAllOf, Tests: []sievesp.Test{trueT, falseT}}) {
		t.Errorf("allof(true, false) = true, want false")
	}
	if !mustEval(t, ctx, sievesp.Test{Op: sievesp.TAnyOf, Tests: []sievesp.Test{falseT, trueT}}) {
		t.Errorf("anyof(false, true) = false, want true")
	}
	if !mustEval(t, ctx, sievesp.Test{Op: sievesp.TNot, Tests: []sievesp.Test{falseT}}) {
		t.Errorf("not(false) = false, want true")
	}
}
