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
	"errors"
	"fmt"

	"github.com/algorand/go-deadlock"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/util/kvstore"
)

// ErrNotMonotonic is returned when Apply is called out of order
var ErrNotMonotonic = errors.New("ledger: apply out of order")

// ErrBadMutations is returned when a mutation batch is inconsistent with
// its block number
var ErrBadMutations = errors.New("ledger: bad mutation batch")

// CorruptError reports a broken store invariant. It is thrown as a panic
// value: corruption must abort the process, never propagate as a result.
type CorruptError struct {
	Index  string
	Key    string
	Reason string
}

// Error implements the error interface
func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger: corrupted %s row %q: %s", e.Index, e.Key, e.Reason)
}

// Ledger owns the KV store and the current snapshot. There is exactly one
// writer; Apply and RollbackTo hold its lock for their full duration.
type Ledger struct {
	log logging.Logger
	kv  kvstore.KVStore

	// mu serializes writers and guards snap publication
	mu   deadlock.Mutex
	snap *Snapshot

	// seq disambiguates multiple rows of one index written by one block
	seq int
}

// Open loads (or creates) the ledger under dbdir using the named KV
// backend. Rows already on disk rebuild the last durably applied snapshot.
func Open(log logging.Logger, impl, dbdir string, inMem bool) (*Ledger, error) {
	kv, err := kvstore.NewKVStore(impl, dbdir, inMem)
	if err != nil {
		return nil, err
	}
	l := &Ledger{log: log, kv: kv}
	if err := l.load(); err != nil {
		kv.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the KV store
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kv.Close()
}

// Snapshot returns the current published snapshot. The caller may hold it
// for any duration; concurrent writes publish fresh snapshots without
// touching it.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// load rebuilds the in-memory snapshot from the KV store
func (l *Ledger) load() error {
	snap := emptySnapshot()

	defer func() {
		l.snap = snap
	}()

	scan := func(prefix string, decode func(val []byte) error) error {
		start := []byte(prefix)
		it := l.kv.NewIterator(start, prefixEnd(start))
		defer it.Close()
		for ; it.Valid(); it.Next() {
			val, err := it.Value()
			if err != nil {
				return err
			}
			if err := decode(val); err != nil {
				panic(&CorruptError{Index: prefix, Key: string(it.Key()), Reason: err.Error()})
			}
		}
		return nil
	}

	if err := scan(prefixIindex, func(val []byte) error {
		var row IIndexRow
		if err := decodeRow(val, &row); err != nil {
			return err
		}
		snap.applyIRow(row)
		return nil
	}); err != nil {
		return err
	}
	if err := scan(prefixMindex, func(val []byte) error {
		var row MIndexRow
		if err := decodeRow(val, &row); err != nil {
			return err
		}
		snap.applyMRow(row)
		return nil
	}); err != nil {
		return err
	}
	if err := scan(prefixCindexIssuer, func(val []byte) error {
		var row CIndexRow
		if err := decodeRow(val, &row); err != nil {
			return err
		}
		snap.applyCRow(row)
		return nil
	}); err != nil {
		return err
	}
	if err := scan(prefixSindex, func(val []byte) error {
		var row SIndexRow
		if err := decodeRow(val, &row); err != nil {
			return err
		}
		snap.applySRow(row)
		return nil
	}); err != nil {
		return err
	}
	if err := scan(prefixBindex, func(val []byte) error {
		var row BIndexRow
		if err := decodeRow(val, &row); err != nil {
			return err
		}
		snap.bindex = append(snap.bindex, row)
		return nil
	}); err != nil {
		return err
	}
	return nil
}

// applyIRow appends an identity event to a mutable snapshot
func (s *Snapshot) applyIRow(row IIndexRow) {
	s.iindex[row.Pubkey] = append(append([]IIndexRow(nil), s.iindex[row.Pubkey]...), row)
	s.byUID[row.UID] = row.Pubkey
}

func (s *Snapshot) applyMRow(row MIndexRow) {
	s.mindex[row.Pubkey] = append(append([]MIndexRow(nil), s.mindex[row.Pubkey]...), row)
}

func (s *Snapshot) applyCRow(row CIndexRow) {
	s.cissuer[row.Issuer] = append(append([]CIndexRow(nil), s.cissuer[row.Issuer]...), row)
	s.creceiver[row.Receiver] = append(append([]CIndexRow(nil), s.creceiver[row.Receiver]...), row)
}

func (s *Snapshot) applySRow(row SIndexRow) {
	s.sindex[row.Owner] = append(append([]SIndexRow(nil), s.sindex[row.Owner]...), row)
	key := row.Key()
	st := s.sources[key]
	if row.Consumed {
		if !st.consumed && st.created.WrittenOn <= row.WrittenOn {
			st.consumed = true
		}
	} else {
		st.created = row
	}
	s.sources[key] = st
}

// checkBatch verifies a mutation batch is internally consistent and does
// not break the store invariants against the base snapshot.
func (l *Ledger) checkBatch(base *Snapshot, blockNr basics.BlockNumber, muts *Mutations) error {
	if muts.Head.Number != blockNr {
		return fmt.Errorf("%w: head number %d != block %d", ErrBadMutations, muts.Head.Number, blockNr)
	}
	for _, r := range muts.IRows {
		if r.WrittenOn != blockNr {
			return fmt.Errorf("%w: iindex written_on %d", ErrBadMutations, r.WrittenOn)
		}
	}
	for _, r := range muts.MRows {
		if r.WrittenOn != blockNr {
			return fmt.Errorf("%w: mindex written_on %d", ErrBadMutations, r.WrittenOn)
		}
	}
	for _, r := range muts.CRows {
		if r.WrittenOn != blockNr {
			return fmt.Errorf("%w: cindex written_on %d", ErrBadMutations, r.WrittenOn)
		}
	}
	for _, r := range muts.SRows {
		if r.WrittenOn != blockNr {
			return fmt.Errorf("%w: sindex written_on %d", ErrBadMutations, r.WrittenOn)
		}
		if r.Consumed {
			if r.ConsumedOn != blockNr {
				return fmt.Errorf("%w: sindex consumed_on %d", ErrBadMutations, r.ConsumedOn)
			}
			created, consumed, known := base.Source(r.Key())
			inBatch := false
			if !known {
				for _, c := range muts.SRows {
					if !c.Consumed && c.Key() == r.Key() {
						inBatch = true
						break
					}
				}
			}
			if !known && !inBatch {
				panic(&CorruptError{Index: "sindex", Key: string(r.Key()), Reason: "consume of unknown source"})
			}
			if known && consumed {
				panic(&CorruptError{Index: "sindex", Key: string(r.Key()), Reason: "double consume"})
			}
			_ = created
		}
	}
	return nil
}

// Apply atomically writes one block's mutation batch and publishes the new
// snapshot. blockNr must be exactly head+1 (or 0 on an empty chain).
func (l *Ledger) Apply(blockNr basics.BlockNumber, muts *Mutations) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if head, ok := l.snap.GetBindexHead(); ok {
		if blockNr != head.Number+1 {
			return nil, fmt.Errorf("%w: head %d, got %d", ErrNotMonotonic, head.Number, blockNr)
		}
	} else if blockNr != 0 {
		return nil, fmt.Errorf("%w: empty chain, got %d", ErrNotMonotonic, blockNr)
	}
	if err := l.checkBatch(l.snap, blockNr, muts); err != nil {
		return nil, err
	}

	// durability first: the batch reaches stable storage before the new
	// snapshot becomes visible
	batch := l.kv.NewBatch()
	ok := false
	defer func() {
		if !ok {
			batch.Cancel()
		}
	}()
	for _, r := range muts.IRows {
		if err := batch.Set(rowKey(prefixIindex, r.Pubkey, blockNr, l.nextSeq()), encodeRow(r)); err != nil {
			return nil, err
		}
	}
	for _, r := range muts.MRows {
		if err := batch.Set(rowKey(prefixMindex, r.Pubkey, blockNr, l.nextSeq()), encodeRow(r)); err != nil {
			return nil, err
		}
	}
	for _, r := range muts.CRows {
		enc := encodeRow(r)
		if err := batch.Set(rowKey(prefixCindexIssuer, r.Issuer, blockNr, l.nextSeq()), enc); err != nil {
			return nil, err
		}
		if err := batch.Set(rowKey(prefixCindexReceiver, r.Receiver, blockNr, l.nextSeq()), enc); err != nil {
			return nil, err
		}
	}
	for _, r := range muts.SRows {
		if err := batch.Set(rowKey(prefixSindex, r.Owner, blockNr, l.nextSeq()), encodeRow(r)); err != nil {
			return nil, err
		}
	}
	if err := batch.Set(bindexKey(blockNr), encodeRow(muts.Head)); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	ok = true

	next := l.snap.clone()
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

	l.checkMemberUniqueness(next, muts)

	l.snap = next
	l.log.With("block", blockNr).Debugf("applied %d+%d+%d+%d rows",
		len(muts.IRows), len(muts.MRows), len(muts.CRows), len(muts.SRows))
	return next, nil
}

// checkMemberUniqueness panics when a uid maps to two concurrent members
func (l *Ledger) checkMemberUniqueness(snap *Snapshot, muts *Mutations) {
	seenPk := make(map[crypto.PublicKey]bool)
	seenUID := make(map[basics.UID]bool)
	for _, r := range muts.IRows {
		if seenPk[r.Pubkey] {
			continue
		}
		seenPk[r.Pubkey] = true
		st, ok := snap.Identity(r.Pubkey)
		if !ok || !st.Member {
			continue
		}
		if seenUID[st.UID] {
			panic(&CorruptError{Index: "iindex", Key: string(st.UID), Reason: "duplicate concurrent member"})
		}
		seenUID[st.UID] = true
		if owner, ok := snap.byUID[st.UID]; ok && owner != r.Pubkey {
			panic(&CorruptError{Index: "iindex", Key: string(st.UID), Reason: "uid held by two pubkeys"})
		}
	}
}

// RollbackTo drops every row with written_on > n and republishes the
// snapshot as of block n. It returns the dropped rows, newest block first,
// so the caller can rewind the trust graph.
func (l *Ledger) RollbackTo(n basics.BlockNumber) ([]Mutations, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, ok := l.snap.GetBindexHead()
	if !ok || head.Number <= n {
		return nil, nil
	}

	removed := make([]Mutations, head.Number-n)
	slot := func(w basics.BlockNumber) *Mutations {
		return &removed[head.Number-w]
	}

	batch := l.kv.NewBatch()
	committed := false
	defer func() {
		if !committed {
			batch.Cancel()
		}
	}()

	drop := func(prefix string, decode func(key, val []byte) basics.BlockNumber) error {
		start := []byte(prefix)
		it := l.kv.NewIterator(start, prefixEnd(start))
		defer it.Close()
		for ; it.Valid(); it.Next() {
			val, err := it.Value()
			if err != nil {
				return err
			}
			key := it.Key()
			if decode(key, val) <= n {
				continue
			}
			if err := batch.Delete(key); err != nil {
				return err
			}
		}
		return nil
	}

	if err := drop(prefixIindex, func(key, val []byte) basics.BlockNumber {
		var row IIndexRow
		if err := decodeRow(val, &row); err != nil {
			panic(&CorruptError{Index: "iindex", Key: string(key), Reason: err.Error()})
		}
		if row.WrittenOn > n {
			slot(row.WrittenOn).IRows = append(slot(row.WrittenOn).IRows, row)
		}
		return row.WrittenOn
	}); err != nil {
		return nil, err
	}
	if err := drop(prefixMindex, func(key, val []byte) basics.BlockNumber {
		var row MIndexRow
		if err := decodeRow(val, &row); err != nil {
			panic(&CorruptError{Index: "mindex", Key: string(key), Reason: err.Error()})
		}
		if row.WrittenOn > n {
			slot(row.WrittenOn).MRows = append(slot(row.WrittenOn).MRows, row)
		}
		return row.WrittenOn
	}); err != nil {
		return nil, err
	}
	if err := drop(prefixCindexIssuer, func(key, val []byte) basics.BlockNumber {
		var row CIndexRow
		if err := decodeRow(val, &row); err != nil {
			panic(&CorruptError{Index: "cindex", Key: string(key), Reason: err.Error()})
		}
		if row.WrittenOn > n {
			slot(row.WrittenOn).CRows = append(slot(row.WrittenOn).CRows, row)
		}
		return row.WrittenOn
	}); err != nil {
		return nil, err
	}
	if err := drop(prefixCindexReceiver, func(key, val []byte) basics.BlockNumber {
		var row CIndexRow
		if err := decodeRow(val, &row); err != nil {
			panic(&CorruptError{Index: "cindex", Key: string(key), Reason: err.Error()})
		}
		// receiver rows mirror issuer rows, which were already collected
		return row.WrittenOn
	}); err != nil {
		return nil, err
	}
	if err := drop(prefixSindex, func(key, val []byte) basics.BlockNumber {
		var row SIndexRow
		if err := decodeRow(val, &row); err != nil {
			panic(&CorruptError{Index: "sindex", Key: string(key), Reason: err.Error()})
		}
		if row.WrittenOn > n {
			slot(row.WrittenOn).SRows = append(slot(row.WrittenOn).SRows, row)
		}
		return row.WrittenOn
	}); err != nil {
		return nil, err
	}
	if err := drop(prefixBindex, func(key, val []byte) basics.BlockNumber {
		var row BIndexRow
		if err := decodeRow(val, &row); err != nil {
			panic(&CorruptError{Index: "bindex", Key: string(key), Reason: err.Error()})
		}
		if row.Number > n {
			slot(row.Number).Head = row
		}
		return row.Number
	}); err != nil {
		return nil, err
	}

	if err := batch.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if err := l.load(); err != nil {
		return nil, err
	}
	l.log.With("fork_point", n).Infof("rolled back %d blocks", len(removed))
	return removed, nil
}

func (l *Ledger) nextSeq() int {
	l.seq++
	return l.seq
}
