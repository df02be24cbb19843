// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package runtime interprets a compiled sieve.Sieve program against a
// concrete message (spec §4.G). All message/MIME/network access is
// delegated to host-implemented interfaces: this package never parses
// MIME or talks to an MTA itself, following the same "read through a
// borrowed view, never own the bytes" contract as the compiler's
// token source.
package runtime

import (
	"time"

	sievesp "github.com/intuitivelabs/sievesp"
)

// Message is the host's read-only view of the message under
// evaluation. Header lookups are case-insensitive per RFC 5228 §2.4.2
// and return values in wire order; an absent header reports ok=false,
// never an empty non-nil slice.
type Message interface {
	Header(name string) (values []string, ok bool)
	HeaderNames() []string

	// Body returns the text used by the `body` test: the decoded text
	// content when raw is false, the untouched wire bytes when raw is
	// true (spec §3, RFC 5173).
	Body(raw bool) []byte

	// Size is the message size in octets, used by the `size` test.
	Size() int64

	// Root is the top of the MIME part tree `foreverypart` walks. A
	// non-multipart message still has exactly one Part: itself.
	Root() *Part
}

// Part is one node of a message's MIME structure (spec §3, §4.G).
type Part struct {
	ContentType string
	SubType     string
	Params      map[string]string
	Headers     map[string][]string
	Body        []byte
	Children    []*Part
}

// EnvelopePart is one (kind, value) pair of the SMTP/LMTP envelope
// (RFC 5228 §5.4, RFC 5429). A part may repeat, e.g. multiple "to"
// recipients, so Envelope carries an ordered slice rather than a map.
type EnvelopePart struct {
	Kind  sievesp.EnvelopeKind
	Value string
}

// Envelope is the host's read-only view of the envelope surrounding
// the message.
type Envelope struct {
	Parts []EnvelopePart
}

// Lookup returns the values recorded for kind, in the order the host
// supplied them.
func (e Envelope) Lookup(kind sievesp.EnvelopeKind) []string {
	var out []string
	for _, p := range e.Parts {
		if p.Kind == kind {
			out = append(out, p.Value)
		}
	}
	return out
}

// HostFunctions is the set of side-effecting and informational
// operations the interpreter cannot perform itself (spec §1 external
// collaborators: MIME parsing, regex engine, persistence, SMTP/LMTP
// delivery). The read-only query methods (MailboxExists, SpamScore,
// VirusScore, DuplicateSeen, Include) are called synchronously during
// evaluation, since a test's result can depend on them. The delivery
// methods (Keep, FileInto, Redirect, Reject, Notify, Vacation) are
// invoked at Commit, after implicit-keep and dedup resolution (spec
// §4.H). The message-editing methods (AddHeader, DeleteHeader,
// Replace, Enclose, ExtractText, Convert) and ScriptError are called as
// their instruction runs. Discard and EditFlags are not called by this
// package: discard only cancels the implicit keep, and the flag
// commands update an internal flag variable.
type HostFunctions interface {
	Keep(ctx *Context, flags []string) error
	FileInto(ctx *Context, mailbox string, flags []string, copy bool) error
	Redirect(ctx *Context, address string, copy bool) error
	Discard(ctx *Context) error
	Reject(ctx *Context, message string, extended bool) error
	Notify(ctx *Context, method, from, importance, message string) error
	Vacation(ctx *Context, reason, subject, from, handle string, addresses []string, days int64, mime bool) error
	AddHeader(ctx *Context, name, value string, last bool) error
	DeleteHeader(ctx *Context, name string, index int, indexLast bool, patterns []string) error
	EditFlags(ctx *Context, op, variable string, flags []string) error
	Replace(ctx *Context, subject, from, body string) error
	Enclose(ctx *Context, subject, body string) error
	ExtractText(ctx *Context, limitBytes int64) (string, error)
	Convert(ctx *Context, fromType, toType string, params []string) error
	ScriptError(ctx *Context, message string) error

	// Environment resolves ${env.name} (RFC 5183): implementation-
	// defined key/value pairs about the running sieve host, e.g.
	// "domain" or "version". ok is false when name is unknown.
	Environment(ctx *Context, name string) (value string, ok bool, err error)

	MailboxExists(ctx *Context, names []string) (bool, error)
	SpamScore(ctx *Context) (float64, error)
	VirusScore(ctx *Context) (float64, error)
	DuplicateSeen(ctx *Context, key string, seconds int64, markSeen bool) (bool, error)
	Include(ctx *Context, location, name string, once bool) (instructions []byte, found bool, err error)

	// Now returns the time the `currentdate` test measures against. A
	// host-supplied clock keeps script evaluation deterministic and
	// testable rather than reading the wall clock from this package.
	Now(ctx *Context) (time.Time, error)

	// ValidExtList reports whether every name is a syntactically valid
	// extension-list identifier for the given list name (RFC 6134
	// `valid_ext_list` test) — the registry of known list names is a
	// host/deployment concern, not something this package can judge.
	ValidExtList(ctx *Context, names []string) (bool, error)
}
