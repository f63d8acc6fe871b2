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
	"math/bits"
	"sort"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger"
)

// materialize turns a fully validated block into its index mutations. No
// rule can fail here except arithmetic overflow in the monetary mass.
func materialize(ctx *Context, head ledger.BIndexRow, hasHead bool, block *documents.Block) (*ledger.Mutations, *RuleError) {
	muts := &ledger.Mutations{}
	n := block.Number
	medianTime := block.MedianTime

	for _, idty := range block.Identities {
		muts.IRows = append(muts.IRows, ledger.IIndexRow{
			Pubkey:    idty.Issuer,
			UID:       idty.UniqueID,
			CreatedOn: idty.Timestamp,
			WrittenOn: n,
			Sig:       idty.Signature,
		})
	}
	for _, ms := range block.Joiners {
		muts.IRows = append(muts.IRows, ledger.IIndexRow{
			Pubkey:    ms.Issuer,
			UID:       ms.UserID,
			CreatedOn: ms.CertTS,
			WrittenOn: n,
			Member:    true,
			WasMember: true,
			Sig:       identitySig(ctx, block, ms.Issuer),
		})
		muts.MRows = append(muts.MRows, ledger.MIndexRow{
			Pubkey:      ms.Issuer,
			WrittenOn:   n,
			ChainableOn: medianTime + ctx.Params.MsWindow,
			ExpiresOn:   medianTime + ctx.Params.MsValidity,
		})
	}
	for _, ms := range block.Actives {
		muts.IRows = append(muts.IRows, ledger.IIndexRow{
			Pubkey:    ms.Issuer,
			UID:       ms.UserID,
			CreatedOn: ms.CertTS,
			WrittenOn: n,
			Member:    true,
			WasMember: true,
			Sig:       identitySig(ctx, block, ms.Issuer),
		})
		muts.MRows = append(muts.MRows, ledger.MIndexRow{
			Pubkey:      ms.Issuer,
			WrittenOn:   n,
			ChainableOn: medianTime + ctx.Params.MsWindow,
			ExpiresOn:   medianTime + ctx.Params.MsValidity,
		})
	}
	for _, ms := range block.Leavers {
		muts.MRows = append(muts.MRows, ledger.MIndexRow{
			Pubkey:      ms.Issuer,
			WrittenOn:   n,
			ChainableOn: medianTime + ctx.Params.MsWindow,
			ExpiresOn:   medianTime + ctx.Params.MsValidity,
			Leaving:     true,
		})
	}
	for _, rev := range block.Revoked {
		st, _ := ctx.Snap.Identity(rev.Issuer)
		muts.IRows = append(muts.IRows, ledger.IIndexRow{
			Pubkey:    rev.Issuer,
			UID:       st.UID,
			CreatedOn: st.CreatedOn,
			WrittenOn: n,
			Member:    false,
			WasMember: true,
			Sig:       st.Sig,
		})
		muts.MRows = append(muts.MRows, ledger.MIndexRow{
			Pubkey:    rev.Issuer,
			WrittenOn: n,
			RevokedOn: medianTime,
			Leaving:   true,
		})
	}
	for _, pk := range block.Excluded {
		st, _ := ctx.Snap.Identity(pk)
		muts.IRows = append(muts.IRows, ledger.IIndexRow{
			Pubkey:    pk,
			UID:       st.UID,
			CreatedOn: st.CreatedOn,
			WrittenOn: n,
			Member:    false,
			WasMember: true,
			Sig:       st.Sig,
		})
	}
	for _, cert := range block.Certifications {
		muts.CRows = append(muts.CRows, ledger.CIndexRow{
			Issuer:      cert.Issuer,
			Receiver:    cert.Receiver,
			CreatedOn:   cert.BlockNumber,
			WrittenOn:   n,
			ExpiresOn:   medianTime + ctx.Params.SigValidity,
			ChainableOn: medianTime + ctx.Params.SigPeriod,
		})
	}

	// expiry sweep: certifications lapsed at this median time get their
	// terminal event so the (issuer, receiver) pair may recur
	seenPair := make(map[[2]crypto.PublicKey]bool)
	for _, pk := range ctx.Snap.Members() {
		for _, cert := range ctx.Snap.IterCindexByReceiver(pk) {
			pair := [2]crypto.PublicKey{cert.Issuer, cert.Receiver}
			if seenPair[pair] {
				continue
			}
			seenPair[pair] = true
			last, ok := ctx.Snap.CertState(cert.Issuer, cert.Receiver)
			if !ok || last.ExpiredOn != 0 || last.ExpiresOn > medianTime {
				continue
			}
			expired := last
			expired.WrittenOn = n
			expired.ExpiredOn = medianTime
			muts.CRows = append(muts.CRows, expired)
		}
	}

	// membership expiry sweep: members past their expiry get kicked; the
	// next block carries their exclusion
	for _, pk := range ctx.Snap.Members() {
		st, ok := ctx.Snap.Identity(pk)
		if !ok || st.Kick {
			continue
		}
		if mst, ok := ctx.Snap.Membership(pk); ok && mst.ExpiresOn <= medianTime && mst.RevokedOn == 0 {
			if !containsPubkey(block.Excluded, pk) {
				kick := ledger.IIndexRow{
					Pubkey:    pk,
					UID:       st.UID,
					CreatedOn: st.CreatedOn,
					WrittenOn: n,
					Member:    true,
					WasMember: true,
					Kick:      true,
					Sig:       st.Sig,
				}
				muts.IRows = append(muts.IRows, kick)
			}
		}
	}

	// transactions: one consume per input, one source per output
	for _, tx := range block.Transactions {
		txHash := tx.Hash()
		for _, in := range tx.Inputs {
			row := consumeRowForInput(ctx, in, muts)
			row.WrittenOn = n
			row.Consumed = true
			row.ConsumedOn = n
			muts.SRows = append(muts.SRows, row)
		}
		for oi, out := range tx.Outputs {
			muts.SRows = append(muts.SRows, ledger.SIndexRow{
				Kind:        ledger.SourceTx,
				TxHash:      txHash,
				OutputIndex: uint32(oi),
				Owner:       outputOwner(out),
				Amount:      out.Amount,
				Conditions:  out.Conditions.String(),
				WrittenOn:   n,
			})
		}
	}

	// the dividend mints one source per member
	dividend := int64(0)
	lastUDAmount := head.LastUDAmount
	lastUDTime := head.LastUDTime
	mass := head.MonetaryMass
	membersCount := uint64(0)
	if block.UniversalDividend != nil {
		dividend = *block.UniversalDividend
		lastUDAmount = dividend
		lastUDTime = medianTime
		for _, pk := range membersAfterBlock(ctx, block) {
			muts.SRows = append(muts.SRows, ledger.SIndexRow{
				Kind:      ledger.SourceUD,
				UDIssuer:  pk,
				UDBlock:   n,
				Owner:     pk,
				Amount:    amountAtBase(dividend, block.UnitBase),
				WrittenOn: n,
			})
			membersCount++
		}
		hi, unit := bits.Mul64(uint64(dividend), pow10(block.UnitBase))
		hi2, issued := bits.Mul64(unit, membersCount)
		total, carry := bits.Add64(mass, issued, 0)
		if hi != 0 || hi2 != 0 || carry != 0 {
			return nil, reject("materialize", "monetary mass overflow")
		}
		mass = total
	}

	muts.Head = ledger.BIndexRow{
		Number:          n,
		Hash:            block.Hash(),
		Issuer:          block.Issuer,
		Time:            block.Time,
		MedianTime:      medianTime,
		PoWMin:          block.PoWMin,
		UnitBase:        block.UnitBase,
		MembersCount:    block.MembersCount,
		IssuersCount:    block.DifferentIssuersCount,
		IssuersFrame:    block.IssuersFrame,
		IssuersFrameVar: block.IssuersFrameVar,
		Dividend:        dividend,
		LastUDAmount:    lastUDAmount,
		LastUDTime:      lastUDTime,
		MonetaryMass:    mass,
	}
	return muts, nil
}

// identitySig resolves the identity document signature of a pubkey, from
// the block itself or from the indices.
func identitySig(ctx *Context, block *documents.Block, pk crypto.PublicKey) crypto.Signature {
	for _, idty := range block.Identities {
		if idty.Issuer == pk {
			return idty.Signature
		}
	}
	if st, ok := ctx.Snap.Identity(pk); ok {
		return st.Sig
	}
	return crypto.Signature{}
}

func containsPubkey(set []crypto.PublicKey, pk crypto.PublicKey) bool {
	for _, p := range set {
		if p == pk {
			return true
		}
	}
	return false
}

// consumeRowForInput recovers the source row an input consumes, from the
// parent snapshot or from an earlier output of the same block.
func consumeRowForInput(ctx *Context, in documents.Input, muts *ledger.Mutations) ledger.SIndexRow {
	key := sourceKeyOfInput(in)
	if row, _, known := ctx.Snap.Source(key); known {
		return row
	}
	for _, r := range muts.SRows {
		if !r.Consumed && r.Key() == key {
			return r
		}
	}
	// unreachable after checkTransactionRules; keep the input's own view
	row := ledger.SIndexRow{Amount: in.Amount}
	if in.Kind == documents.InputUD {
		row.Kind = ledger.SourceUD
		row.UDIssuer = in.UDIssuer
		row.UDBlock = in.UDBlock
		row.Owner = in.UDIssuer
	} else {
		row.Kind = ledger.SourceTx
		row.TxHash = in.TxHash
		row.OutputIndex = in.OutputIndex
	}
	return row
}

// membersAfterBlock lists the dividend beneficiaries: current members plus
// the block's joiners, minus its exclusions and revocations, in a
// deterministic order.
func membersAfterBlock(ctx *Context, block *documents.Block) []crypto.PublicKey {
	set := make(map[crypto.PublicKey]bool)
	for _, pk := range ctx.Snap.Members() {
		set[pk] = true
	}
	for _, ms := range block.Joiners {
		set[ms.Issuer] = true
	}
	for _, pk := range block.Excluded {
		delete(set, pk)
	}
	for _, rev := range block.Revoked {
		delete(set, rev.Issuer)
	}
	out := make([]crypto.PublicKey, 0, len(set))
	for pk := range set {
		out = append(out, pk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func amountAtBase(value int64, base uint8) basics.Amount {
	return basics.Amount{Value: value, Base: base}
}

func pow10(base uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < base; i++ {
		v *= 10
	}
	return v
}
