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
	"path/filepath"
	"testing"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/wot"
	"github.com/stretchr/testify/require"
)

const genesisTime = uint64(1700000000)

func testParams() config.CurrencyParams {
	p := config.G1TestCurrencyParams()
	p.SigQty = 0
	p.SigPeriod = 0
	p.MsWindow = 0
	p.MedianTimeBlocks = 1
	p.AvgGenTime = 300
	p.DtDiffEval = 0
	p.UDTime0 = genesisTime + 300
	p.UDReevalTime0 = genesisTime + 300
	p.UD0 = 1000
	p.Dt = 86400
	return p
}

type fixture struct {
	t      *testing.T
	params config.CurrencyParams
	ledger *ledger.Ledger
	engine *Engine
	graph  *wot.WebOfTrust
	ids    map[crypto.PublicKey]wot.NodeID
	issuer *crypto.SignatureSecrets
	alice  *crypto.SignatureSecrets
	bob    *crypto.SignatureSecrets
}

func evalSecrets(tag byte) *crypto.SignatureSecrets {
	var seed crypto.Seed
	seed[0] = tag
	copy(seed[1:], []byte("eval test seed material........."))
	return crypto.GenerateSignatureSecrets(seed)
}

func makeFixture(t *testing.T) *fixture {
	log := logging.TestingLog(t)
	l, err := ledger.Open(log, "pebble", filepath.Join(t.TempDir(), "indexes"), true)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return &fixture{
		t:      t,
		params: testParams(),
		ledger: l,
		engine: MakeEngine(log),
		graph:  wot.Make(),
		ids:    make(map[crypto.PublicKey]wot.NodeID),
		issuer: evalSecrets(1),
		alice:  evalSecrets(2),
		bob:    evalSecrets(3),
	}
}

func (f *fixture) ctx() *Context {
	return &Context{
		Params: f.params,
		Snap:   f.ledger.Snapshot(),
		Wot:    f.graph,
		WotID: func(pk crypto.PublicKey) (wot.NodeID, bool) {
			id, ok := f.ids[pk]
			return id, ok
		},
	}
}

// process runs a block through the engine and applies the outcome
func (f *fixture) process(block *documents.Block) Outcome {
	out := f.engine.Process(f.ctx(), block)
	switch o := out.(type) {
	case Accepted:
		_, err := f.ledger.Apply(block.Number, o.Mutations)
		require.NoError(f.t, err)
		f.applyGraph(o.Mutations)
	case Forked:
		_, err := f.ledger.RollbackTo(o.ForkPoint)
		require.NoError(f.t, err)
		for _, muts := range o.Blocks {
			_, err := f.ledger.Apply(muts.Head.Number, muts)
			require.NoError(f.t, err)
		}
	}
	return out
}

func (f *fixture) applyGraph(muts *ledger.Mutations) {
	for _, r := range muts.IRows {
		if _, ok := f.ids[r.Pubkey]; !ok {
			f.ids[r.Pubkey] = f.graph.AddNode()
		}
		f.graph.SetEnabled(f.ids[r.Pubkey], r.Member)
	}
	for _, r := range muts.CRows {
		if r.ExpiredOn != 0 {
			continue
		}
		from, okF := f.ids[r.Issuer]
		to, okT := f.ids[r.Receiver]
		if okF && okT {
			f.graph.AddLink(from, to)
		}
	}
}

func (f *fixture) identityFor(s *crypto.SignatureSecrets, uid basics.UID) *documents.Identity {
	idty := &documents.Identity{
		CurrencyName: "g1-test",
		Issuer:       s.SignatureVerifier,
		UniqueID:     uid,
		Timestamp:    basics.Blockstamp{Number: 0, Hash: crypto.Hash(nil)},
	}
	idty.Sign(s)
	return idty
}

func (f *fixture) joinerFor(s *crypto.SignatureSecrets, uid basics.UID) *documents.Membership {
	ms := &documents.Membership{
		CurrencyName: "g1-test",
		Issuer:       s.SignatureVerifier,
		Block:        basics.Blockstamp{Number: 0, Hash: crypto.Hash(nil)},
		Kind:         documents.MembershipIn,
		UserID:       uid,
		CertTS:       basics.Blockstamp{Number: 0, Hash: crypto.Hash(nil)},
	}
	ms.Sign(s)
	return ms
}

// genesisBlock joins alice and bob
func (f *fixture) genesisBlock() *documents.Block {
	b := &documents.Block{
		CurrencyName: "g1-test",
		Number:       0,
		PoWMin:       0,
		Time:         genesisTime,
		MedianTime:   genesisTime,
		Issuer:       f.issuer.SignatureVerifier,
		IssuersFrame: 1,
		MembersCount: 2,
		Identities: []*documents.Identity{
			f.identityFor(f.alice, "alice"),
			f.identityFor(f.bob, "bob"),
		},
		Joiners: []*documents.Membership{
			f.joinerFor(f.alice, "alice"),
			f.joinerFor(f.bob, "bob"),
		},
		ParametersLine: f.params.ParamsLine(),
	}
	b.Sign(f.issuer)
	return b
}

// nextBlock builds an empty block extending the current head
func (f *fixture) nextBlock(mutate func(*documents.Block)) *documents.Block {
	head, ok := f.ledger.Snapshot().GetBindexHead()
	require.True(f.t, ok)
	b := &documents.Block{
		CurrencyName:   "g1-test",
		Number:         head.Number + 1,
		PoWMin:         head.PoWMin,
		Time:           head.MedianTime + 300,
		MedianTime:     head.MedianTime + 300,
		Issuer:         f.issuer.SignatureVerifier,
		IssuersFrame:   1,
		MembersCount:   2,
		PreviousHash:   head.Hash,
		PreviousIssuer: f.issuer.SignatureVerifier,
	}
	if mutate != nil {
		mutate(b)
	}
	b.Sign(f.issuer)
	return b
}

func (f *fixture) udBlock() *documents.Block {
	return f.nextBlock(func(b *documents.Block) {
		ud := f.params.UD0
		b.UniversalDividend = &ud
	})
}

func TestGenesisAccepted(t *testing.T) {
	f := makeFixture(t)

	out := f.process(f.genesisBlock())
	acc, ok := out.(Accepted)
	require.True(t, ok, "outcome %#v", out)
	require.Len(t, acc.Mutations.IRows, 4) // 2 identities + 2 joins
	require.Len(t, acc.Mutations.MRows, 2)

	snap := f.ledger.Snapshot()
	st, ok := snap.Identity(f.alice.SignatureVerifier)
	require.True(t, ok)
	require.True(t, st.Member)
	require.Equal(t, basics.UID("alice"), st.UID)
}

func TestDividendIssuedAndRedeemed(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))

	// block 1 must carry the UD: median time reaches UDTime0
	out := f.process(f.udBlock())
	acc, ok := out.(Accepted)
	require.True(t, ok, "outcome %#v", out)

	var udSources int
	for _, r := range acc.Mutations.SRows {
		if r.Kind == ledger.SourceUD {
			udSources++
		}
	}
	require.Equal(t, 2, udSources)

	snap := f.ledger.Snapshot()
	require.Len(t, snap.IterSindexByPubkey(f.alice.SignatureVerifier), 1)

	// block 2 spends alice's UD to bob
	bobPk := f.bob.SignatureVerifier
	tx := &documents.Transaction{
		CurrencyName: "g1-test",
		Blockstamp:   f.mustBlockstamp(1),
		Issuers:      []crypto.PublicKey{f.alice.SignatureVerifier},
		Inputs: []documents.Input{{
			Amount:   basics.Amount{Value: 1000, Base: 0},
			Kind:     documents.InputUD,
			UDIssuer: f.alice.SignatureVerifier,
			UDBlock:  1,
		}},
		Unlocks: []documents.Unlock{{InputIndex: 0, Proofs: []documents.UnlockProof{{SigIndex: 0}}}},
		Outputs: []documents.Output{{
			Amount:     basics.Amount{Value: 1000, Base: 0},
			Conditions: &documents.Condition{Sig: &bobPk},
		}},
	}
	tx.Signatures = []crypto.Signature{f.alice.Sign(tx.SignableBytes())}

	out = f.process(f.nextBlock(func(b *documents.Block) {
		b.Transactions = []*documents.Transaction{tx}
	}))
	acc, ok = out.(Accepted)
	require.True(t, ok, "outcome %#v", out)

	var consumes, inserts int
	for _, r := range acc.Mutations.SRows {
		if r.Consumed {
			consumes++
		} else {
			inserts++
		}
	}
	require.Equal(t, 1, consumes)
	require.Equal(t, 1, inserts)

	snap = f.ledger.Snapshot()
	require.Empty(t, snap.IterSindexByPubkey(f.alice.SignatureVerifier))
	// bob now owns his UD source plus the transferred output
	require.Len(t, snap.IterSindexByPubkey(bobPk), 2)
}

func (f *fixture) mustBlockstamp(n basics.BlockNumber) basics.Blockstamp {
	row, ok := f.ledger.Snapshot().BindexAt(n)
	require.True(f.t, ok)
	return row.Blockstamp()
}

func TestUnbalancedTransactionRejected(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))
	require.IsType(t, Accepted{}, f.process(f.udBlock()))

	bobPk := f.bob.SignatureVerifier
	tx := &documents.Transaction{
		CurrencyName: "g1-test",
		Blockstamp:   f.mustBlockstamp(1),
		Issuers:      []crypto.PublicKey{f.alice.SignatureVerifier},
		Inputs: []documents.Input{{
			Amount:   basics.Amount{Value: 1000, Base: 0},
			Kind:     documents.InputUD,
			UDIssuer: f.alice.SignatureVerifier,
			UDBlock:  1,
		}},
		Unlocks: []documents.Unlock{{InputIndex: 0, Proofs: []documents.UnlockProof{{SigIndex: 0}}}},
		Outputs: []documents.Output{{
			Amount:     basics.Amount{Value: 999, Base: 0},
			Conditions: &documents.Condition{Sig: &bobPk},
		}},
	}
	tx.Signatures = []crypto.Signature{f.alice.Sign(tx.SignableBytes())}

	out := f.process(f.nextBlock(func(b *documents.Block) {
		b.Transactions = []*documents.Transaction{tx}
	}))
	rej, ok := out.(Rejected)
	require.True(t, ok, "outcome %#v", out)
	require.Contains(t, rej.Reason, "unbalanced")
}

func TestUnlockBySignatureOnly(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))
	require.IsType(t, Accepted{}, f.process(f.udBlock()))

	// bob tries to spend alice's UD source
	bobPk := f.bob.SignatureVerifier
	tx := &documents.Transaction{
		CurrencyName: "g1-test",
		Blockstamp:   f.mustBlockstamp(1),
		Issuers:      []crypto.PublicKey{bobPk},
		Inputs: []documents.Input{{
			Amount:   basics.Amount{Value: 1000, Base: 0},
			Kind:     documents.InputUD,
			UDIssuer: f.alice.SignatureVerifier,
			UDBlock:  1,
		}},
		Unlocks: []documents.Unlock{{InputIndex: 0, Proofs: []documents.UnlockProof{{SigIndex: 0}}}},
		Outputs: []documents.Output{{
			Amount:     basics.Amount{Value: 1000, Base: 0},
			Conditions: &documents.Condition{Sig: &bobPk},
		}},
	}
	tx.Signatures = []crypto.Signature{f.bob.Sign(tx.SignableBytes())}

	out := f.process(f.nextBlock(func(b *documents.Block) {
		b.Transactions = []*documents.Transaction{tx}
	}))
	rej, ok := out.(Rejected)
	require.True(t, ok, "outcome %#v", out)
	require.Contains(t, rej.Reason, "unlock")
}

func TestPoWBelowRequiredRejected(t *testing.T) {
	f := makeFixture(t)

	// seed a head that demands 10 leading zeros
	head := ledger.BIndexRow{
		Number:     0,
		Hash:       crypto.Hash([]byte("head")),
		Time:       genesisTime,
		MedianTime: genesisTime,
		PoWMin:     10,
	}
	_, err := f.ledger.Apply(0, &ledger.Mutations{Head: head})
	require.NoError(t, err)

	block := f.nextBlock(nil) // PoWMin inherited: 10
	out := f.engine.Process(f.ctx(), block)
	rej, ok := out.(Rejected)
	require.True(t, ok, "outcome %#v", out)
	require.Equal(t, "pow below required", rej.Reason)

	// nothing was written
	h, ok := f.ledger.Snapshot().GetBindexHead()
	require.True(t, ok)
	require.Equal(t, basics.BlockNumber(0), h.Number)
}

func TestBadMedianTimeRejected(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))

	out := f.process(f.nextBlock(func(b *documents.Block) {
		b.MedianTime = b.Time + 1
	}))
	rej, ok := out.(Rejected)
	require.True(t, ok, "outcome %#v", out)
	require.Contains(t, rej.Reason, "median time")
}

func TestDuplicateUIDRejected(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))

	mallory := evalSecrets(9)
	out := f.process(f.nextBlock(func(b *documents.Block) {
		b.Identities = []*documents.Identity{f.identityFor(mallory, "alice")}
	}))
	rej, ok := out.(Rejected)
	require.True(t, ok, "outcome %#v", out)
	require.Contains(t, rej.Reason, "already taken")
}

func TestForkSwitch(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))
	require.IsType(t, Accepted{}, f.process(f.udBlock()))

	head1, _ := f.ledger.Snapshot().BindexAt(1)

	// main chain head: block 2
	main2 := f.nextBlock(func(b *documents.Block) { b.Nonce = 1 })
	require.IsType(t, Accepted{}, f.process(main2))

	// side chain from block 1: 2' then 3'
	side2 := &documents.Block{
		CurrencyName:   "g1-test",
		Number:         2,
		PoWMin:         0,
		Time:           head1.MedianTime + 300,
		MedianTime:     head1.MedianTime + 300,
		Issuer:         f.issuer.SignatureVerifier,
		IssuersFrame:   1,
		MembersCount:   2,
		PreviousHash:   head1.Hash,
		PreviousIssuer: f.issuer.SignatureVerifier,
		Nonce:          2,
	}
	side2.Sign(f.issuer)
	out := f.process(side2)
	require.IsType(t, Rejected{}, out) // not longer than main yet

	side3 := &documents.Block{
		CurrencyName:   "g1-test",
		Number:         3,
		PoWMin:         0,
		Time:           side2.MedianTime + 300,
		MedianTime:     side2.MedianTime + 300,
		Issuer:         f.issuer.SignatureVerifier,
		IssuersFrame:   1,
		MembersCount:   2,
		PreviousHash:   side2.Hash(),
		PreviousIssuer: f.issuer.SignatureVerifier,
	}
	side3.Sign(f.issuer)

	out = f.engine.Process(f.ctx(), side3)
	forked, ok := out.(Forked)
	require.True(t, ok, "outcome %#v", out)
	require.Equal(t, basics.BlockNumber(1), forked.ForkPoint)
	require.Len(t, forked.Blocks, 2)

	// commit the switch
	_, err := f.ledger.RollbackTo(forked.ForkPoint)
	require.NoError(t, err)
	for _, muts := range forked.Blocks {
		_, err := f.ledger.Apply(muts.Head.Number, muts)
		require.NoError(t, err)
	}

	head, hok := f.ledger.Snapshot().GetBindexHead()
	require.True(t, hok)
	require.Equal(t, basics.BlockNumber(3), head.Number)
	require.Equal(t, side3.Hash(), head.Hash)
}

func TestRejectedIsDeterministic(t *testing.T) {
	f := makeFixture(t)
	require.IsType(t, Accepted{}, f.process(f.genesisBlock()))

	bad := f.nextBlock(func(b *documents.Block) {
		b.MedianTime = b.Time + 1
	})
	first := f.engine.Process(f.ctx(), bad)
	second := f.engine.Process(f.ctx(), bad)
	require.Equal(t, first, second)
}
