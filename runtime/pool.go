// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"sync"

	sievesp "github.com/intuitivelabs/sievesp"
)

// Pool recycles Context values across executions of the same compiled
// program, avoiding a fresh locals/globals/matches allocation per
// message (spec §7: "running the same script against a stream of
// messages should not re-pay compile-shaped setup costs per run").
// Grounded on calltr/alloc_pool.go's sync.Pool-per-size-class
// allocator; simplified to one pool of *Context, since a Context's
// backing storage is several independently-growable slices/maps
// rather than one contiguous raw buffer, so the unsafe-pointer
// single-block technique alloc_oneblock.go uses does not apply here
// (noted in DESIGN.md).
type Pool struct {
	p sync.Pool
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get returns a Context sized for prog, either freshly allocated or
// recycled from a previous Put. The returned Context still needs
// Prepare before Run.
func (p *Pool) Get(prog *sievesp.Sieve) *Context {
	if ctx, ok := p.p.Get().(*Context); ok {
		ctx.init(prog)
		return ctx
	}
	return NewContext(prog)
}

// Put returns ctx to the pool for reuse by a later, unrelated Get.
// Callers must not touch ctx again afterwards.
func (p *Pool) Put(ctx *Context) {
	ctx.Reset()
	p.p.Put(ctx)
}
