// Copyright (C) 2019-2026 The Dunitrust Project Developers.
// This file is part of dunitrust
//
// dunitrust is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// dunitrust is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with dunitrust.  If not, see <https://www.gnu.org/licenses/>.

package eval

import (
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/logging"
)

// ForkTree stores side-chain blocks by hash until one branch outgrows the
// main chain. First-seen order breaks ties between branches of equal
// length.
type ForkTree struct {
	blocks map[crypto.Digest]*documents.Block
	// arrival preserves first-seen order for the tie-break
	arrival []crypto.Digest
}

// MakeForkTree creates an empty fork tree
func MakeForkTree() *ForkTree {
	return &ForkTree{blocks: make(map[crypto.Digest]*documents.Block)}
}

// Add stores a side block. Duplicate hashes are ignored.
func (t *ForkTree) Add(block *documents.Block) {
	h := block.Hash()
	if _, ok := t.blocks[h]; ok {
		return
	}
	t.blocks[h] = block
	t.arrival = append(t.arrival, h)
}

// Prune drops side blocks at or below the given number; they can no
// longer win against the main chain.
func (t *ForkTree) Prune(n basics.BlockNumber) {
	kept := t.arrival[:0]
	for _, h := range t.arrival {
		if b, ok := t.blocks[h]; ok && b.Number > n {
			kept = append(kept, h)
		} else {
			delete(t.blocks, h)
		}
	}
	t.arrival = kept
}

// branch walks PreviousHash links from tip back to a block whose parent is
// on the main chain, returning the branch oldest-first and its fork point.
func (t *ForkTree) branch(tip *documents.Block, onMain func(basics.BlockNumber, crypto.Digest) bool) ([]*documents.Block, basics.BlockNumber, bool) {
	var rev []*documents.Block
	cur := tip
	for {
		rev = append(rev, cur)
		if cur.Number == 0 {
			return nil, 0, false
		}
		parentNr := cur.Number - 1
		if onMain(parentNr, cur.PreviousHash) {
			out := make([]*documents.Block, len(rev))
			for i, b := range rev {
				out[len(rev)-1-i] = b
			}
			return out, parentNr, true
		}
		parent, ok := t.blocks[cur.PreviousHash]
		if !ok {
			return nil, 0, false
		}
		cur = parent
	}
}

// Longest returns the branch with the highest tip above headNumber whose
// root attaches to the main chain; among equal tips the first-seen wins.
func (t *ForkTree) Longest(headNumber basics.BlockNumber, onMain func(basics.BlockNumber, crypto.Digest) bool) ([]*documents.Block, basics.BlockNumber, bool) {
	var best []*documents.Block
	var bestPoint basics.BlockNumber
	for _, h := range t.arrival {
		tip, ok := t.blocks[h]
		if !ok || tip.Number <= headNumber {
			continue
		}
		chain, point, ok := t.branch(tip, onMain)
		if !ok {
			continue
		}
		// strictly longer than the main chain, first seen wins ties
		if best == nil || tip.Number > best[len(best)-1].Number {
			best = chain
			bestPoint = point
		}
	}
	return best, bestPoint, best != nil
}

// Engine drives the chain head state machine: it validates incoming
// blocks against the current snapshot and resolves forks.
type Engine struct {
	log   logging.Logger
	forks *ForkTree
}

// MakeEngine creates an engine with an empty fork tree
func MakeEngine(log logging.Logger) *Engine {
	return &Engine{log: log, forks: MakeForkTree()}
}

// Process runs one block through the engine. The context carries the
// current snapshot; the engine never writes.
func (e *Engine) Process(ctx *Context, block *documents.Block) Outcome {
	head, hasHead := ctx.Snap.GetBindexHead()

	extendsHead := !hasHead && block.Number == 0 ||
		hasHead && block.Number == head.Number+1 && block.PreviousHash == head.Hash

	if extendsHead {
		muts, err := Validate(ctx, block)
		if err != nil {
			e.log.With("block", block.Number).Warnf("rejected: %v", err)
			return Rejected{Reason: err.Reason}
		}
		e.forks.Prune(block.Number)
		return Accepted{Mutations: muts}
	}

	if !hasHead {
		return Rejected{Reason: "no chain to fork from"}
	}

	// side chain: remember the block, then check whether any branch now
	// outgrows the main chain
	e.forks.Add(block)

	onMain := func(n basics.BlockNumber, h crypto.Digest) bool {
		row, ok := ctx.Snap.BindexAt(n)
		return ok && row.Hash == h
	}
	branch, forkPoint, ok := e.forks.Longest(head.Number, onMain)
	if !ok {
		return Rejected{Reason: "side block does not extend the chain"}
	}

	return e.validateBranch(ctx, forkPoint, branch)
}

// validateBranch replays the side chain against a rewound preview of the
// parent state. All blocks must pass; the mutations are returned per
// block, ready to apply after the rollback.
func (e *Engine) validateBranch(ctx *Context, forkPoint basics.BlockNumber, branch []*documents.Block) Outcome {
	preview := ctx.Snap.RewindPreview(forkPoint)
	muts := make([]*ledger.Mutations, 0, len(branch))
	for _, b := range branch {
		branchCtx := &Context{
			Params: ctx.Params,
			Snap:   preview,
			Wot:    ctx.Wot,
			WotID:  ctx.WotID,
		}
		m, err := Validate(branchCtx, b)
		if err != nil {
			e.log.With("block", b.Number).Warnf("side chain rejected: %v", err)
			return Rejected{Reason: err.Reason}
		}
		muts = append(muts, m)
		preview = preview.Preview(m)
	}
	e.log.With("fork_point", forkPoint).Infof("switching to side chain of %d blocks", len(branch))
	return Forked{ForkPoint: forkPoint, Blocks: muts}
}
