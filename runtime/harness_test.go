// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"strings"
	"time"

	sievesp "github.com/intuitivelabs/sievesp"
)

// fakeMessage is a minimal in-memory Message used across the runtime
// package's tests, in the teacher's table-driven-test style adapted to
// a mock collaborator instead of a byte-buffer parser.
type fakeMessage struct {
	headers map[string][]string
	body    []byte
	root    *Part
	size    int64
}

func newFakeMessage(headers map[string][]string, body string) *fakeMessage {
	m := &fakeMessage{headers: map[string][]string{}, body: []byte(body)}
	for k, v := range headers {
		m.headers[strings.ToLower(k)] = v
	}
	m.size = int64(len(body))
	m.root = &Part{ContentType: "text", SubType: "plain", Body: []byte(body)}
	return m
}

func (m *fakeMessage) Header(name string) ([]string, bool) {
	vs, ok := m.headers[strings.ToLower(name)]
	return vs, ok
}

func (m *fakeMessage) HeaderNames() []string {
	out := make([]string, 0, len(m.headers))
	for k := range m.headers {
		out = append(out, k)
	}
	return out
}

func (m *fakeMessage) Body(raw bool) []byte { return m.body }
func (m *fakeMessage) Size() int64          { return m.size }
func (m *fakeMessage) Root() *Part          { return m.root }

// fakeHost implements HostFunctions, recording every call so tests can
// assert on what fired without a real delivery backend.
type fakeHost struct {
	kept      []string // flags joined, one entry per Keep call
	filedInto []string
	redirects []string
	discarded bool
	rejected  []string
	notified  []string
	vacations []string
	headers   []string
	deleted   []string
	replaced  []string
	enclosed  []string
	converted []string

	mailboxes map[string]bool
	now       time.Time
	env       map[string]string
	dupSeen   map[string]bool
	includes  map[string][]byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		mailboxes: map[string]bool{},
		now:       time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		env:       map[string]string{},
		dupSeen:   map[string]bool{},
		includes:  map[string][]byte{},
	}
}

func (h *fakeHost) Keep(ctx *Context, flags []string) error {
	h.kept = append(h.kept, strings.Join(flags, ","))
	return nil
}
func (h *fakeHost) FileInto(ctx *Context, mailbox string, flags []string, copy bool) error {
	h.filedInto = append(h.filedInto, mailbox)
	return nil
}
func (h *fakeHost) Redirect(ctx *Context, address string, copy bool) error {
	h.redirects = append(h.redirects, address)
	return nil
}
func (h *fakeHost) Discard(ctx *Context) error {
	h.discarded = true
	return nil
}
func (h *fakeHost) Reject(ctx *Context, message string, extended bool) error {
	h.rejected = append(h.rejected, message)
	return nil
}
func (h *fakeHost) Notify(ctx *Context, method, from, importance, message string) error {
	h.notified = append(h.notified, method)
	return nil
}
func (h *fakeHost) Vacation(ctx *Context, reason, subject, from, handle string, addresses []string, days int64, mime bool) error {
	h.vacations = append(h.vacations, handle)
	return nil
}
func (h *fakeHost) AddHeader(ctx *Context, name, value string, last bool) error {
	h.headers = append(h.headers, name+": "+value)
	return nil
}
func (h *fakeHost) DeleteHeader(ctx *Context, name string, index int, indexLast bool, patterns []string) error {
	h.deleted = append(h.deleted, name)
	return nil
}
func (h *fakeHost) EditFlags(ctx *Context, op, variable string, flags []string) error { return nil }
func (h *fakeHost) Replace(ctx *Context, subject, from, body string) error {
	h.replaced = append(h.replaced, body)
	return nil
}
func (h *fakeHost) Enclose(ctx *Context, subject, body string) error {
	h.enclosed = append(h.enclosed, body)
	return nil
}
func (h *fakeHost) ExtractText(ctx *Context, limitBytes int64) (string, error) {
	return "extracted text", nil
}
func (h *fakeHost) Convert(ctx *Context, fromType, toType string, params []string) error {
	h.converted = append(h.converted, fromType+"->"+toType)
	return nil
}
func (h *fakeHost) ScriptError(ctx *Context, message string) error { return nil }
func (h *fakeHost) Environment(ctx *Context, name string) (string, bool, error) {
	v, ok := h.env[name]
	return v, ok, nil
}
func (h *fakeHost) MailboxExists(ctx *Context, names []string) (bool, error) {
	for _, n := range names {
		if !h.mailboxes[n] {
			return false, nil
		}
	}
	return true, nil
}
func (h *fakeHost) SpamScore(ctx *Context) (float64, error) { return 0, nil }
func (h *fakeHost) VirusScore(ctx *Context) (float64, error) { return 0, nil }
func (h *fakeHost) DuplicateSeen(ctx *Context, key string, seconds int64, markSeen bool) (bool, error) {
	seen := h.dupSeen[key]
	if markSeen {
		h.dupSeen[key] = true
	}
	return seen, nil
}
func (h *fakeHost) Include(ctx *Context, location, name string, once bool) ([]byte, bool, error) {
	data, ok := h.includes[name]
	return data, ok, nil
}
func (h *fakeHost) Now(ctx *Context) (time.Time, error) { return h.now, nil }
func (h *fakeHost) ValidExtList(ctx *Context, names []string) (bool, error) { return true, nil }

// runProgram is a small test helper: compiles nothing itself, just
// wires a prebuilt *sievesp.Sieve through a fresh Context/Run/Commit
// cycle and returns the host so the caller can inspect what fired.
func runProgram(prog *sievesp.Sieve, msg Message, env Envelope) (*fakeHost, *Context, error) {
	host := newFakeHost()
	ctx := NewContext(prog)
	ctx.Prepare(msg, env, host, 100000)
	err := Run(ctx, prog)
	return host, ctx, err
}
