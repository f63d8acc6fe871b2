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
	"math"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/wot"
)

// identityRef resolves an identity either from the parent indices or from
// the incoming block itself.
type identityRef struct {
	pubkey    crypto.PublicKey
	uid       basics.UID
	createdOn basics.Blockstamp
	sig       crypto.Signature
	inBlock   bool
}

func blockIdentities(block *documents.Block) map[crypto.PublicKey]identityRef {
	out := make(map[crypto.PublicKey]identityRef, len(block.Identities))
	for _, idty := range block.Identities {
		out[idty.Issuer] = identityRef{
			pubkey:    idty.Issuer,
			uid:       idty.UniqueID,
			createdOn: idty.Timestamp,
			sig:       idty.Signature,
			inBlock:   true,
		}
	}
	return out
}

func resolveIdentity(ctx *Context, inBlock map[crypto.PublicKey]identityRef, pk crypto.PublicKey) (identityRef, bool) {
	if ref, ok := inBlock[pk]; ok {
		return ref, true
	}
	if st, ok := ctx.Snap.Identity(pk); ok {
		return identityRef{
			pubkey:    pk,
			uid:       st.UID,
			createdOn: st.CreatedOn,
			sig:       st.Sig,
		}, true
	}
	return identityRef{}, false
}

// checkRules validates every document against the parent indices: UID
// uniqueness, certification cooldowns, membership chainability, WoT
// distance, UD correctness, transaction balance and source availability.
func checkRules(ctx *Context, head ledger.BIndexRow, hasHead bool, block *documents.Block) *RuleError {
	inBlock := blockIdentities(block)

	if err := checkIdentityRules(ctx, block); err != nil {
		return err
	}
	if err := checkMembershipRules(ctx, inBlock, block); err != nil {
		return err
	}
	if err := checkCertificationRules(ctx, inBlock, block); err != nil {
		return err
	}
	if err := checkDistanceRule(ctx, inBlock, block); err != nil {
		return err
	}
	if err := checkRevocationRules(ctx, inBlock, block); err != nil {
		return err
	}
	if err := checkExclusionRules(ctx, block); err != nil {
		return err
	}
	if err := checkDividendRule(ctx, head, hasHead, block); err != nil {
		return err
	}
	return checkTransactionRules(ctx, head, hasHead, block)
}

func checkIdentityRules(ctx *Context, block *documents.Block) *RuleError {
	seenUID := make(map[basics.UID]bool)
	for _, idty := range block.Identities {
		if ctx.Snap.UIDExists(idty.UniqueID) {
			return reject("rule", "uid %s already taken", idty.UniqueID)
		}
		if _, ok := ctx.Snap.Identity(idty.Issuer); ok {
			return reject("rule", "pubkey %s already has an identity", idty.Issuer)
		}
		if seenUID[idty.UniqueID] {
			return reject("rule", "uid %s repeated in block", idty.UniqueID)
		}
		seenUID[idty.UniqueID] = true
	}
	return nil
}

func checkMembershipRules(ctx *Context, inBlock map[crypto.PublicKey]identityRef, block *documents.Block) *RuleError {
	medianTime := block.MedianTime

	for _, ms := range block.Joiners {
		ref, ok := resolveIdentity(ctx, inBlock, ms.Issuer)
		if !ok {
			return reject("rule", "joiner %s has no identity", ms.Issuer)
		}
		if ms.UserID != ref.uid {
			return reject("rule", "joiner uid mismatch for %s", ms.Issuer)
		}
		if st, ok := ctx.Snap.Identity(ms.Issuer); ok && st.Member {
			return reject("rule", "joiner %s is already a member", ms.Issuer)
		}
		if mst, ok := ctx.Snap.Membership(ms.Issuer); ok {
			if mst.ChainableOn > medianTime {
				return reject("rule", "joiner %s membership not chainable yet", ms.Issuer)
			}
			if mst.RevokedOn != 0 {
				return reject("rule", "joiner %s identity is revoked", ms.Issuer)
			}
		}
		if got := receivedCertCount(ctx, block, ms.Issuer, medianTime); got < ctx.Params.SigQty {
			return reject("rule", "joiner %s has %d certifications, needs %d", ms.Issuer, got, ctx.Params.SigQty)
		}
	}
	for _, ms := range block.Actives {
		st, ok := ctx.Snap.Identity(ms.Issuer)
		if !ok || !st.Member {
			return reject("rule", "active %s is not a member", ms.Issuer)
		}
		if mst, ok := ctx.Snap.Membership(ms.Issuer); ok && mst.ChainableOn > medianTime {
			return reject("rule", "active %s membership not chainable yet", ms.Issuer)
		}
	}
	for _, ms := range block.Leavers {
		st, ok := ctx.Snap.Identity(ms.Issuer)
		if !ok || !st.Member {
			return reject("rule", "leaver %s is not a member", ms.Issuer)
		}
		if mst, ok := ctx.Snap.Membership(ms.Issuer); ok && mst.Leaving {
			return reject("rule", "leaver %s is already leaving", ms.Issuer)
		}
	}
	return nil
}

// receivedCertCount counts live certifications towards a pubkey, index
// rows plus the incoming block's own certifications.
func receivedCertCount(ctx *Context, block *documents.Block, pk crypto.PublicKey, medianTime uint64) uint64 {
	count := uint64(len(ctx.Snap.LiveCertsToReceiver(pk, medianTime)))
	for _, cert := range block.Certifications {
		if cert.Receiver == pk {
			count++
		}
	}
	return count
}

func checkCertificationRules(ctx *Context, inBlock map[crypto.PublicKey]identityRef, block *documents.Block) *RuleError {
	medianTime := block.MedianTime
	seenPair := make(map[[2]crypto.PublicKey]bool)

	for _, cert := range block.Certifications {
		issuerState, ok := ctx.Snap.Identity(cert.Issuer)
		if !ok || !issuerState.Member {
			return reject("rule", "certifier %s is not a member", cert.Issuer)
		}
		ref, ok := resolveIdentity(ctx, inBlock, cert.Receiver)
		if !ok {
			return reject("rule", "certified %s has no identity", cert.Receiver)
		}

		pair := [2]crypto.PublicKey{cert.Issuer, cert.Receiver}
		if seenPair[pair] {
			return reject("rule", "duplicate certification %s -> %s", cert.Issuer, cert.Receiver)
		}
		seenPair[pair] = true

		// a live pair may not recur within the validity window
		if prev, ok := ctx.Snap.CertState(cert.Issuer, cert.Receiver); ok {
			if prev.ExpiredOn == 0 && prev.ExpiresOn > medianTime {
				return reject("rule", "certification %s -> %s is still live", cert.Issuer, cert.Receiver)
			}
		}

		// issuer cooldown and stock
		live := ctx.Snap.LiveCertsFromIssuer(cert.Issuer, medianTime)
		if uint64(len(live)) >= ctx.Params.SigStock {
			return reject("rule", "certifier %s exhausted its stock", cert.Issuer)
		}
		for _, c := range live {
			if c.ChainableOn > medianTime {
				return reject("rule", "certifier %s in cooldown", cert.Issuer)
			}
		}

		// the certified block must exist in this chain. In the genesis
		// block, certifications reference block 0 before it exists; the
		// convention is the empty-content hash.
		var stamp basics.Blockstamp
		if row, ok := ctx.Snap.BindexAt(cert.BlockNumber); ok {
			stamp = row.Blockstamp()
		} else if block.Number == 0 && cert.BlockNumber == 0 {
			stamp = basics.Blockstamp{Number: 0, Hash: crypto.Hash(nil)}
		} else {
			return reject("rule", "certification on unknown block %d", cert.BlockNumber)
		}

		doc := documents.Certification{
			CurrencyName:  block.CurrencyName,
			Issuer:        cert.Issuer,
			IdtyIssuer:    ref.pubkey,
			IdtyUniqueID:  ref.uid,
			IdtyTimestamp: ref.createdOn,
			IdtySignature: ref.sig,
			CertTimestamp: stamp,
			Signature:     cert.Signature,
		}
		if err := doc.Verify(); err != nil {
			return reject("rule", "certification %s -> %s: bad signature", cert.Issuer, cert.Receiver)
		}
	}
	return nil
}

// checkDistanceRule verifies every joiner satisfies the WoT distance rule
// on the graph extended with the block's own certifications.
func checkDistanceRule(ctx *Context, inBlock map[crypto.PublicKey]identityRef, block *documents.Block) *RuleError {
	if ctx.Wot == nil || len(block.Joiners) == 0 {
		return nil
	}

	graph := ctx.Wot.Snapshot()
	ids := make(map[crypto.PublicKey]wot.NodeID)
	resolve := func(pk crypto.PublicKey) (wot.NodeID, bool) {
		if id, ok := ids[pk]; ok {
			return id, true
		}
		if ctx.WotID != nil {
			if id, ok := ctx.WotID(pk); ok {
				return id, true
			}
		}
		return 0, false
	}
	for pk := range inBlock {
		if _, ok := resolve(pk); !ok {
			ids[pk] = graph.AddNode()
		}
	}
	for _, cert := range block.Certifications {
		from, okFrom := resolve(cert.Issuer)
		to, okTo := resolve(cert.Receiver)
		if okFrom && okTo {
			graph.AddLink(from, to)
		}
	}

	membersCount := graph.EnabledCount()
	yMin := wot.SentryRequirement(membersCount, ctx.Params.StepMax)
	for _, ms := range block.Joiners {
		id, ok := resolve(ms.Issuer)
		if !ok {
			return reject("rule", "joiner %s missing from trust graph", ms.Issuer)
		}
		outdistanced, ok := graph.IsOutdistanced(wot.DistanceParams{
			Node:              id,
			SentryRequirement: yMin,
			StepMax:           ctx.Params.StepMax,
			XPercent:          ctx.Params.XPercent,
		})
		if !ok || outdistanced {
			return reject("rule", "joiner %s is outdistanced", ms.Issuer)
		}
	}
	return nil
}

func checkRevocationRules(ctx *Context, inBlock map[crypto.PublicKey]identityRef, block *documents.Block) *RuleError {
	for _, rev := range block.Revoked {
		ref, ok := resolveIdentity(ctx, inBlock, rev.Issuer)
		if !ok {
			return reject("rule", "revocation of unknown identity %s", rev.Issuer)
		}
		if mst, ok := ctx.Snap.Membership(rev.Issuer); ok && mst.RevokedOn != 0 {
			return reject("rule", "identity %s is already revoked", rev.Issuer)
		}
		doc := documents.Revocation{
			CurrencyName:  block.CurrencyName,
			Issuer:        rev.Issuer,
			IdtyUniqueID:  ref.uid,
			IdtyTimestamp: ref.createdOn,
			IdtySignature: ref.sig,
			Signature:     rev.Signature,
		}
		if err := doc.Verify(); err != nil {
			return reject("rule", "revocation of %s: bad signature", rev.Issuer)
		}
	}
	return nil
}

func checkExclusionRules(ctx *Context, block *documents.Block) *RuleError {
	for _, pk := range block.Excluded {
		st, ok := ctx.Snap.Identity(pk)
		if !ok {
			return reject("rule", "exclusion of unknown identity %s", pk)
		}
		if !st.Member {
			return reject("rule", "exclusion of non-member %s", pk)
		}
		expired := false
		if mst, ok := ctx.Snap.Membership(pk); ok && mst.ExpiresOn <= block.MedianTime {
			expired = true
		}
		if !st.Kick && !expired {
			return reject("rule", "exclusion of %s without kick", pk)
		}
	}
	return nil
}

// checkDividendRule verifies a UD is present exactly when due and carries
// the right amount: parent's dividend grown by (1+c) at each reevaluation.
func checkDividendRule(ctx *Context, head ledger.BIndexRow, hasHead bool, block *documents.Block) *RuleError {
	due := dividendDue(ctx, head, hasHead, block.MedianTime)
	if block.UniversalDividend == nil {
		if due {
			return reject("rule", "universal dividend is due")
		}
		return nil
	}
	if !due {
		return reject("rule", "universal dividend not due")
	}
	expected := expectedDividend(ctx, head, block.MedianTime)
	if *block.UniversalDividend != expected {
		return reject("rule", "universal dividend %d, expected %d", *block.UniversalDividend, expected)
	}
	return nil
}

func dividendDue(ctx *Context, head ledger.BIndexRow, hasHead bool, medianTime uint64) bool {
	if !hasHead {
		return false
	}
	if head.LastUDTime == 0 {
		return medianTime >= ctx.Params.UDTime0
	}
	return medianTime >= head.LastUDTime+ctx.Params.Dt
}

func expectedDividend(ctx *Context, head ledger.BIndexRow, medianTime uint64) int64 {
	if head.LastUDAmount == 0 {
		return ctx.Params.UD0
	}
	ud := head.LastUDAmount
	if ctx.Params.DtReeval != 0 && medianTime >= ctx.Params.UDReevalTime0 {
		prevPeriods := uint64(0)
		if head.LastUDTime > ctx.Params.UDReevalTime0 {
			prevPeriods = (head.LastUDTime - ctx.Params.UDReevalTime0) / ctx.Params.DtReeval
		}
		curPeriods := (medianTime - ctx.Params.UDReevalTime0) / ctx.Params.DtReeval
		for p := prevPeriods; p < curPeriods; p++ {
			ud = int64(math.Round(float64(ud) * (1 + ctx.Params.C)))
		}
	}
	return ud
}

// availableSource is a source spendable by the block being validated
type availableSource struct {
	row ledger.SIndexRow
	// writtenMedianTime anchors CSV age checks
	writtenMedianTime uint64
}

func checkTransactionRules(ctx *Context, head ledger.BIndexRow, hasHead bool, block *documents.Block) *RuleError {
	// sources created by earlier transactions of this same block
	created := make(map[ledger.SourceKey]availableSource)
	consumed := make(map[ledger.SourceKey]bool)

	for ti, tx := range block.Transactions {
		if hasHead {
			row, ok := ctx.Snap.BindexAt(tx.Blockstamp.Number)
			if !ok || row.Hash != tx.Blockstamp.Hash {
				return reject("rule", "transaction %d anchored to unknown block", ti)
			}
		}

		var inputAmounts []basics.Amount
		for ii, in := range tx.Inputs {
			key := sourceKeyOfInput(in)
			src, ok := created[key]
			if !ok {
				row, rowConsumed, known := ctx.Snap.Source(key)
				if !known || rowConsumed {
					return reject("rule", "transaction %d input %d: source unavailable", ti, ii)
				}
				src = availableSource{row: row, writtenMedianTime: sourceMedianTime(ctx, row)}
			}
			if consumed[key] {
				return reject("rule", "transaction %d input %d: source spent twice in block", ti, ii)
			}
			if !src.row.Amount.Equal(in.Amount) {
				return reject("rule", "transaction %d input %d: amount mismatch", ti, ii)
			}

			unlock, ok := unlockForInput(tx, uint32(ii))
			if !ok {
				return reject("rule", "transaction %d input %d: no unlock", ti, ii)
			}
			if err := checkUnlock(ctx, block, tx, src, unlock); err != nil {
				return reject("rule", "transaction %d input %d: %s", ti, ii, err.Reason)
			}

			consumed[key] = true
			inputAmounts = append(inputAmounts, in.Amount)
		}

		// balance: inputs equal outputs after base normalization
		var outputAmounts []basics.Amount
		for _, out := range tx.Outputs {
			if out.Amount.Value <= 0 {
				return reject("rule", "transaction %d: non-positive output", ti)
			}
			outputAmounts = append(outputAmounts, out.Amount)
		}
		inSum, err := basics.SumAmounts(inputAmounts)
		if err != nil {
			return reject("rule", "transaction %d: input overflow", ti)
		}
		outSum, err := basics.SumAmounts(outputAmounts)
		if err != nil {
			return reject("rule", "transaction %d: output overflow", ti)
		}
		if !inSum.Equal(outSum) {
			return reject("rule", "transaction %d: unbalanced", ti)
		}

		// outputs become spendable for the rest of the block
		txHash := tx.Hash()
		for oi, out := range tx.Outputs {
			row := ledger.SIndexRow{
				Kind:        ledger.SourceTx,
				TxHash:      txHash,
				OutputIndex: uint32(oi),
				Owner:       outputOwner(out),
				Amount:      out.Amount,
				Conditions:  out.Conditions.String(),
				WrittenOn:   block.Number,
			}
			created[row.Key()] = availableSource{row: row, writtenMedianTime: block.MedianTime}
		}
	}
	return nil
}

func sourceKeyOfInput(in documents.Input) ledger.SourceKey {
	row := ledger.SIndexRow{}
	if in.Kind == documents.InputUD {
		row.Kind = ledger.SourceUD
		row.UDIssuer = in.UDIssuer
		row.UDBlock = in.UDBlock
	} else {
		row.Kind = ledger.SourceTx
		row.TxHash = in.TxHash
		row.OutputIndex = in.OutputIndex
	}
	return row.Key()
}

// sourceMedianTime finds the median time of the block that wrote a source
func sourceMedianTime(ctx *Context, row ledger.SIndexRow) uint64 {
	if b, ok := ctx.Snap.BindexAt(row.WrittenOn); ok {
		return b.MedianTime
	}
	return 0
}

func unlockForInput(tx *documents.Transaction, index uint32) (documents.Unlock, bool) {
	for _, u := range tx.Unlocks {
		if u.InputIndex == index {
			return u, true
		}
	}
	return documents.Unlock{}, false
}

// outputOwner is the pubkey a source is indexed under: the first SIG leaf
// of its condition tree.
func outputOwner(out documents.Output) crypto.PublicKey {
	return firstSigLeaf(out.Conditions)
}

func firstSigLeaf(c *documents.Condition) crypto.PublicKey {
	if c == nil {
		return crypto.PublicKey{}
	}
	if c.Sig != nil {
		return *c.Sig
	}
	if pk := firstSigLeaf(c.Left); !pk.IsZero() {
		return pk
	}
	return firstSigLeaf(c.Right)
}

// checkUnlock evaluates a source's condition tree against the unlock
// proofs of the consuming transaction.
func checkUnlock(ctx *Context, block *documents.Block, tx *documents.Transaction, src availableSource, unlock documents.Unlock) *RuleError {
	var cond *documents.Condition
	if src.row.Conditions == "" {
		// UD sources are implicitly SIG(owner)
		owner := src.row.Owner
		cond = &documents.Condition{Sig: &owner}
	} else {
		parsed, perr := documents.ParseCondition(src.row.Conditions, 0)
		if perr != nil {
			return reject("rule", "unparseable stored condition")
		}
		cond = parsed
	}
	if !evalCondition(cond, tx, unlock, src, block.MedianTime) {
		return reject("rule", "unlock conditions not satisfied")
	}
	return nil
}

func evalCondition(c *documents.Condition, tx *documents.Transaction, unlock documents.Unlock, src availableSource, medianTime uint64) bool {
	switch {
	case c.Sig != nil:
		for _, proof := range unlock.Proofs {
			if proof.IsSig() && proof.SigIndex < len(tx.Issuers) && tx.Issuers[proof.SigIndex] == *c.Sig {
				return true
			}
		}
		return false
	case c.Xhx != nil:
		for _, proof := range unlock.Proofs {
			if !proof.IsSig() && crypto.Hash([]byte(proof.Secret)) == *c.Xhx {
				return true
			}
		}
		return false
	case c.Csv != nil:
		return medianTime >= src.writtenMedianTime+*c.Csv
	case c.Cltv != nil:
		return medianTime >= *c.Cltv
	case c.Op == documents.CondAnd:
		return evalCondition(c.Left, tx, unlock, src, medianTime) && evalCondition(c.Right, tx, unlock, src, medianTime)
	case c.Op == documents.CondOr:
		return evalCondition(c.Left, tx, unlock, src, medianTime) || evalCondition(c.Right, tx, unlock, src, medianTime)
	default:
		return false
	}
}
