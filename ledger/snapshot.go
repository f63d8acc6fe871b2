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

package ledger

import (
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// Snapshot is one immutable, consistent view of every index. Readers hold
// it for as long as they need; it never changes underneath them. Writes
// build a new snapshot and publish it atomically.
type Snapshot struct {
	iindex    map[crypto.PublicKey][]IIndexRow
	byUID     map[basics.UID]crypto.PublicKey
	mindex    map[crypto.PublicKey][]MIndexRow
	cissuer   map[crypto.PublicKey][]CIndexRow
	creceiver map[crypto.PublicKey][]CIndexRow
	sindex    map[crypto.PublicKey][]SIndexRow
	sources   map[SourceKey]sourceState
	bindex    []BIndexRow
}

// sourceState is the folded state of one source
type sourceState struct {
	created  SIndexRow
	consumed bool
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		iindex:    make(map[crypto.PublicKey][]IIndexRow),
		byUID:     make(map[basics.UID]crypto.PublicKey),
		mindex:    make(map[crypto.PublicKey][]MIndexRow),
		cissuer:   make(map[crypto.PublicKey][]CIndexRow),
		creceiver: make(map[crypto.PublicKey][]CIndexRow),
		sindex:    make(map[crypto.PublicKey][]SIndexRow),
		sources:   make(map[SourceKey]sourceState),
		bindex:    nil,
	}
}

// clone shallow-copies the maps so the writer can replace the slices of
// touched keys without disturbing readers of the previous snapshot.
func (s *Snapshot) clone() *Snapshot {
	cp := &Snapshot{
		iindex:    make(map[crypto.PublicKey][]IIndexRow, len(s.iindex)),
		byUID:     make(map[basics.UID]crypto.PublicKey, len(s.byUID)),
		mindex:    make(map[crypto.PublicKey][]MIndexRow, len(s.mindex)),
		cissuer:   make(map[crypto.PublicKey][]CIndexRow, len(s.cissuer)),
		creceiver: make(map[crypto.PublicKey][]CIndexRow, len(s.creceiver)),
		sindex:    make(map[crypto.PublicKey][]SIndexRow, len(s.sindex)),
		sources:   make(map[SourceKey]sourceState, len(s.sources)),
		bindex:    s.bindex,
	}
	for k, v := range s.iindex {
		cp.iindex[k] = v
	}
	for k, v := range s.byUID {
		cp.byUID[k] = v
	}
	for k, v := range s.mindex {
		cp.mindex[k] = v
	}
	for k, v := range s.cissuer {
		cp.cissuer[k] = v
	}
	for k, v := range s.creceiver {
		cp.creceiver[k] = v
	}
	for k, v := range s.sindex {
		cp.sindex[k] = v
	}
	for k, v := range s.sources {
		cp.sources[k] = v
	}
	return cp
}

// IterIindexByPubkey returns the identity events of a pubkey ordered by
// written_on. The returned slice is a copy.
func (s *Snapshot) IterIindexByPubkey(pk crypto.PublicKey) []IIndexRow {
	return append([]IIndexRow(nil), s.iindex[pk]...)
}

// IterMindexByPubkey returns the membership events of a pubkey ordered by
// written_on.
func (s *Snapshot) IterMindexByPubkey(pk crypto.PublicKey) []MIndexRow {
	return append([]MIndexRow(nil), s.mindex[pk]...)
}

// IterCindexByIssuer returns the certification events issued by a pubkey
func (s *Snapshot) IterCindexByIssuer(pk crypto.PublicKey) []CIndexRow {
	return append([]CIndexRow(nil), s.cissuer[pk]...)
}

// IterCindexByReceiver returns the certification events received by a pubkey
func (s *Snapshot) IterCindexByReceiver(pk crypto.PublicKey) []CIndexRow {
	return append([]CIndexRow(nil), s.creceiver[pk]...)
}

// IterSindexByPubkey returns the unconsumed sources owned by a pubkey
func (s *Snapshot) IterSindexByPubkey(pk crypto.PublicKey) []SIndexRow {
	var out []SIndexRow
	for _, row := range s.sindex[pk] {
		if row.Consumed {
			continue
		}
		if st, ok := s.sources[row.Key()]; ok && !st.consumed {
			out = append(out, row)
		}
	}
	return out
}

// GetBindexHead returns the current chain head, or false on an empty chain
func (s *Snapshot) GetBindexHead() (BIndexRow, bool) {
	if len(s.bindex) == 0 {
		return BIndexRow{}, false
	}
	return s.bindex[len(s.bindex)-1], true
}

// BindexTail returns up to n most recent head rows, oldest first
func (s *Snapshot) BindexTail(n int) []BIndexRow {
	if n > len(s.bindex) {
		n = len(s.bindex)
	}
	return append([]BIndexRow(nil), s.bindex[len(s.bindex)-n:]...)
}

// BindexAt returns the head row of a given block number still in the
// chain, or false when it was never written or has been rolled back.
func (s *Snapshot) BindexAt(n basics.BlockNumber) (BIndexRow, bool) {
	if len(s.bindex) == 0 {
		return BIndexRow{}, false
	}
	first := s.bindex[0].Number
	if n < first || int(n-first) >= len(s.bindex) {
		return BIndexRow{}, false
	}
	return s.bindex[n-first], true
}

// Preview applies a mutation batch to a copy of the snapshot, without any
// durability. The engine uses it to validate side-chain blocks in
// sequence; nothing is persisted until the node commits the switch.
func (s *Snapshot) Preview(muts *Mutations) *Snapshot {
	next := s.clone()
	for _, r := range muts.IRows {
		next.applyIRow(r)
	}
	for _, r := range muts.MRows {
		next.applyMRow(r)
	}
	for _, r := range muts.CRows {
		next.applyCRow(r)
	}
	for _, r := range muts.SRows {
		next.applySRow(r)
	}
	next.bindex = append(append([]BIndexRow(nil), next.bindex...), muts.Head)
	return next
}

// RewindPreview rebuilds the view as of block n, dropping every row with
// written_on beyond it. Like Preview, nothing is persisted; the validation
// engine uses it to check side chains before the node commits a rollback.
func (s *Snapshot) RewindPreview(n basics.BlockNumber) *Snapshot {
	next := emptySnapshot()
	for _, rows := range s.iindex {
		for _, r := range rows {
			if r.WrittenOn <= n {
				next.applyIRow(r)
			}
		}
	}
	for _, rows := range s.mindex {
		for _, r := range rows {
			if r.WrittenOn <= n {
				next.applyMRow(r)
			}
		}
	}
	for _, rows := range s.cissuer {
		for _, r := range rows {
			if r.WrittenOn <= n {
				next.applyCRow(r)
			}
		}
	}
	for _, rows := range s.sindex {
		for _, r := range rows {
			if r.WrittenOn <= n {
				next.applySRow(r)
			}
		}
	}
	for _, row := range s.bindex {
		if row.Number <= n {
			next.bindex = append(next.bindex, row)
		}
	}
	return next
}

// IdentityState is the folded state of one identity
type IdentityState struct {
	Pubkey    crypto.PublicKey
	UID       basics.UID
	CreatedOn basics.Blockstamp
	Sig       crypto.Signature
	Member    bool
	WasMember bool
	Kick      bool
	WrittenOn basics.BlockNumber
}

// Identity folds the IINDEX events of a pubkey, returning false for an
// unknown identity.
func (s *Snapshot) Identity(pk crypto.PublicKey) (IdentityState, bool) {
	rows := s.iindex[pk]
	if len(rows) == 0 {
		return IdentityState{}, false
	}
	st := IdentityState{Pubkey: pk, UID: rows[0].UID, CreatedOn: rows[0].CreatedOn, Sig: rows[0].Sig}
	for _, r := range rows {
		st.Member = r.Member
		st.Kick = r.Kick
		st.WrittenOn = r.WrittenOn
		if r.WasMember {
			st.WasMember = true
		}
	}
	return st, true
}

// IdentityByUID resolves a uid to its folded identity state
func (s *Snapshot) IdentityByUID(uid basics.UID) (IdentityState, bool) {
	pk, ok := s.byUID[uid]
	if !ok {
		return IdentityState{}, false
	}
	return s.Identity(pk)
}

// UIDExists reports whether any identity holds the uid
func (s *Snapshot) UIDExists(uid basics.UID) bool {
	_, ok := s.byUID[uid]
	return ok
}

// MembershipState is the folded state of one pubkey's memberships
type MembershipState struct {
	Pubkey      crypto.PublicKey
	ChainableOn uint64
	ExpiresOn   uint64
	RevokedOn   uint64
	Leaving     bool
	WrittenOn   basics.BlockNumber
}

// Membership folds the MINDEX events of a pubkey
func (s *Snapshot) Membership(pk crypto.PublicKey) (MembershipState, bool) {
	rows := s.mindex[pk]
	if len(rows) == 0 {
		return MembershipState{}, false
	}
	st := MembershipState{Pubkey: pk}
	for _, r := range rows {
		st.ChainableOn = r.ChainableOn
		st.ExpiresOn = r.ExpiresOn
		st.Leaving = r.Leaving
		st.WrittenOn = r.WrittenOn
		if r.RevokedOn != 0 {
			st.RevokedOn = r.RevokedOn
		}
	}
	return st, true
}

// LiveCertsFromIssuer counts and returns the certifications an issuer has
// live at the given median time: written, not expired.
func (s *Snapshot) LiveCertsFromIssuer(pk crypto.PublicKey, medianTime uint64) []CIndexRow {
	latest := make(map[crypto.PublicKey]CIndexRow)
	for _, r := range s.cissuer[pk] {
		latest[r.Receiver] = r
	}
	var out []CIndexRow
	for _, r := range latest {
		if r.ExpiredOn == 0 && r.ExpiresOn > medianTime {
			out = append(out, r)
		}
	}
	return out
}

// LiveCertsToReceiver returns the live certifications a receiver holds at
// the given median time, keyed by issuer.
func (s *Snapshot) LiveCertsToReceiver(pk crypto.PublicKey, medianTime uint64) []CIndexRow {
	latest := make(map[crypto.PublicKey]CIndexRow)
	for _, r := range s.creceiver[pk] {
		latest[r.Issuer] = r
	}
	var out []CIndexRow
	for _, r := range latest {
		if r.ExpiredOn == 0 && r.ExpiresOn > medianTime {
			out = append(out, r)
		}
	}
	return out
}

// CertState returns the latest certification event for an (issuer,
// receiver) pair, or false when the pair never certified.
func (s *Snapshot) CertState(issuer, receiver crypto.PublicKey) (CIndexRow, bool) {
	var last CIndexRow
	found := false
	for _, r := range s.cissuer[issuer] {
		if r.Receiver == receiver {
			last = r
			found = true
		}
	}
	return last, found
}

// Source returns the folded state of a source: its creation row and
// whether it has been consumed. Returns false for an unknown source.
func (s *Snapshot) Source(key SourceKey) (SIndexRow, bool, bool) {
	st, ok := s.sources[key]
	if !ok {
		return SIndexRow{}, false, false
	}
	return st.created, st.consumed, true
}

// Members returns every pubkey whose folded identity is currently a member
func (s *Snapshot) Members() []crypto.PublicKey {
	var out []crypto.PublicKey
	for pk := range s.iindex {
		if st, ok := s.Identity(pk); ok && st.Member {
			out = append(out, pk)
		}
	}
	return out
}
