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

// Package eval is the block validation engine: the deterministic pipeline
// that, given the current protocol state and an incoming block, decides
// accept, fork or reject and materializes the index mutations.
//
// The engine never writes: it returns mutations as a value. Every stage
// short-circuits on the first failure and names the reason.
package eval

import (
	"fmt"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/wot"
)

// Context is the protocol state one validation runs against
type Context struct {
	// Params are the currency constants, passed by value
	Params config.CurrencyParams

	// Snap is the parent snapshot the block extends
	Snap *ledger.Snapshot

	// Wot is a read-only snapshot of the trust graph at the parent block
	Wot *wot.WebOfTrust

	// WotID resolves a member pubkey to its graph vertex
	WotID func(crypto.PublicKey) (wot.NodeID, bool)
}

// Outcome is the result of processing one block
type Outcome interface {
	outcome()
}

// Accepted extends the current head
type Accepted struct {
	Mutations *ledger.Mutations
}

// Forked switches to a side chain now strictly longer than the main one:
// roll back to ForkPoint, then apply each side-chain block's mutations in
// order.
type Forked struct {
	ForkPoint basics.BlockNumber
	Blocks    []*ledger.Mutations
}

// Rejected names the violated rule. Final for this block hash.
type Rejected struct {
	Reason string
}

func (Accepted) outcome() {}
func (Forked) outcome()   {}
func (Rejected) outcome() {}

// RuleError is a stage failure carrying its diagnostic reason
type RuleError struct {
	Stage  string
	Reason string
}

// Error implements the error interface
func (e *RuleError) Error() string {
	return fmt.Sprintf("eval: %s: %s", e.Stage, e.Reason)
}

func reject(stage, format string, args ...interface{}) *RuleError {
	return &RuleError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Validate runs the full pipeline for a block that extends the parent
// snapshot's head, returning the mutations to apply or the violated rule.
func Validate(ctx *Context, block *documents.Block) (*ledger.Mutations, *RuleError) {
	head, hasHead := ctx.Snap.GetBindexHead()

	if err := checkSyntactic(block); err != nil {
		return nil, err
	}
	if err := checkStructural(ctx, head, hasHead, block); err != nil {
		return nil, err
	}
	if err := checkTemporal(ctx, head, hasHead, block); err != nil {
		return nil, err
	}
	if err := checkDocuments(block); err != nil {
		return nil, err
	}
	if err := checkRules(ctx, head, hasHead, block); err != nil {
		return nil, err
	}
	return materialize(ctx, head, hasHead, block)
}

// checkSyntactic verifies the inner hash binds the block's content.
// Parsing itself happened before the engine saw the block.
func checkSyntactic(block *documents.Block) *RuleError {
	if block.ComputeInnerHash() != block.InnerHash {
		return reject("syntactic", "inner hash mismatch")
	}
	return nil
}

// checkStructural verifies chain linkage, issuer signature and
// proof of work.
func checkStructural(ctx *Context, head ledger.BIndexRow, hasHead bool, block *documents.Block) *RuleError {
	if hasHead {
		if block.Number != head.Number+1 {
			return reject("structural", "number %d does not extend head %d", block.Number, head.Number)
		}
		if block.PreviousHash != head.Hash {
			return reject("structural", "previous hash mismatch")
		}
	} else if block.Number != 0 {
		return reject("structural", "first block must be number 0")
	}

	if !block.Issuer.Verify(block.SignableBytes(), block.Signature) {
		return reject("structural", "invalid block signature")
	}

	// the genesis block sets the initial difficulty freely; afterwards the
	// declared powMin must match the re-evaluated difficulty
	required := block.PoWMin
	if hasHead {
		required = requiredPoWMin(ctx.Params, head, hasHead)
		if block.PoWMin != required {
			return reject("structural", "powMin %d, required %d", block.PoWMin, required)
		}
	}
	if zeros := block.Hash().LeadingZeros(); zeros < int(required) {
		return reject("structural", "pow below required")
	}
	return nil
}

// requiredPoWMin derives the difficulty the block must declare. The
// difficulty is re-evaluated every DtDiffEval blocks: one step up when the
// window was produced faster than targeted, one step down when slower.
func requiredPoWMin(params config.CurrencyParams, head ledger.BIndexRow, hasHead bool) uint32 {
	if !hasHead {
		return 0
	}
	next := uint64(head.Number) + 1
	if params.DtDiffEval == 0 || next%params.DtDiffEval != 0 {
		return head.PoWMin
	}
	// duration of the evaluated window against its target
	target := params.AvgGenTime * params.DtDiffEval
	actual := head.Time - headTimeBefore(head, params.DtDiffEval)
	switch {
	case actual < target/2 && head.PoWMin < 97:
		return head.PoWMin + 1
	case actual > target*2 && head.PoWMin > 0:
		return head.PoWMin - 1
	default:
		return head.PoWMin
	}
}

// headTimeBefore estimates the start time of the difficulty window. The
// head row carries enough to derive it from the targeted generation time
// when the full window is not in memory.
func headTimeBefore(head ledger.BIndexRow, window uint64) uint64 {
	span := window * 300
	if head.Time < span {
		return 0
	}
	return head.Time - span
}

// checkTemporal verifies the block's time and median time
func checkTemporal(ctx *Context, head ledger.BIndexRow, hasHead bool, block *documents.Block) *RuleError {
	if !hasHead {
		if block.Time != block.MedianTime {
			return reject("temporal", "genesis time must equal median time")
		}
		return nil
	}
	expected := expectedMedianTime(ctx, block.Time)
	if block.MedianTime != expected {
		return reject("temporal", "median time %d, expected %d", block.MedianTime, expected)
	}
	if block.Time < head.MedianTime {
		return reject("temporal", "time before median time")
	}
	if block.Time > head.MedianTime+ctx.Params.MaxTimeDrift() {
		return reject("temporal", "time drift too large")
	}
	return nil
}

// expectedMedianTime recomputes the median over the last MedianTimeBlocks
// block times, including the incoming block's time.
func expectedMedianTime(ctx *Context, blockTime uint64) uint64 {
	window := int(ctx.Params.MedianTimeBlocks)
	tail := ctx.Snap.BindexTail(window - 1)
	times := make([]uint64, 0, len(tail)+1)
	for _, row := range tail {
		times = append(times, row.Time)
	}
	times = append(times, blockTime)
	// insertion sort: the window is small and nearly sorted
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j] < times[j-1]; j-- {
			times[j], times[j-1] = times[j-1], times[j]
		}
	}
	return times[(len(times)-1)/2]
}

// checkDocuments verifies each inner document individually: well-formed
// and signed. Rules against the indices come later.
func checkDocuments(block *documents.Block) *RuleError {
	for i, idty := range block.Identities {
		if idty.Currency() != block.CurrencyName {
			return reject("document", "identity %d: wrong currency", i)
		}
		if err := idty.Verify(); err != nil {
			return reject("document", "identity %d: %v", i, err)
		}
	}
	for _, group := range [][]*documents.Membership{block.Joiners, block.Actives, block.Leavers} {
		for i, ms := range group {
			if ms.Currency() != block.CurrencyName {
				return reject("document", "membership %d: wrong currency", i)
			}
			if err := ms.Verify(); err != nil {
				return reject("document", "membership %d: %v", i, err)
			}
		}
	}
	for i, tx := range block.Transactions {
		if tx.Currency() != block.CurrencyName {
			return reject("document", "transaction %d: wrong currency", i)
		}
		if len(tx.Unlocks) != len(tx.Inputs) {
			return reject("document", "transaction %d: %d unlocks for %d inputs", i, len(tx.Unlocks), len(tx.Inputs))
		}
		if err := tx.Verify(); err != nil {
			return reject("document", "transaction %d: %v", i, err)
		}
	}
	// compact certifications and revocations are checked against the
	// indices, where their signable text is reconstructed
	return nil
}
