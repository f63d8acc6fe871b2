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

// Package node assembles a full Dunitrust node: the ledger, the trust
// graph, the validation engine and the module runtime.
package node

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/algorand/go-deadlock"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/ledger/eval"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/dunitrust/dunitrust/wot"
)

// Node is a full node hosting one currency
type Node struct {
	log  logging.Logger
	conf config.Local
	meta modules.NodeMeta
	keys config.KeyPairs

	params config.CurrencyParams
	ledger *ledger.Ledger
	engine *eval.Engine

	// mu guards the trust graph and the sync state; the block processor
	// is the only writer
	mu         deadlock.Mutex
	graph      *wot.WebOfTrust
	wotIDs     map[crypto.PublicKey]wot.NodeID
	syncTarget basics.BlockNumber
	syncing    bool
}

// Software identification gossiped in HEAD messages
const (
	SoftwareName = "dunitrust"
	SoftVersion  = "0.3.0"
)

// MakeNode opens the ledger and rebuilds the in-memory state
func MakeNode(log logging.Logger, profileDir string, conf config.Local, keys config.KeyPairs) (*Node, error) {
	params, ok := config.DefaultCurrencyParams(conf.Currency)
	if !ok {
		return nil, fmt.Errorf("node: unknown currency %q and no genesis parameters", conf.Currency)
	}
	currencyDir, err := config.CurrencyDir(profileDir, conf.Currency)
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(log, conf.KVImpl, filepath.Join(currencyDir, "indexes"), false)
	if err != nil {
		return nil, err
	}

	n := &Node{
		log:  log,
		conf: conf,
		meta: modules.NodeMeta{
			ProfileDir:  profileDir,
			Currency:    conf.Currency,
			NodeID:      conf.NodeID,
			Software:    SoftwareName,
			SoftVersion: SoftVersion,
		},
		keys:   keys,
		params: params,
		ledger: l,
		engine: eval.MakeEngine(log),
	}
	n.rebuildWot(l.Snapshot())
	return n, nil
}

// Close releases the node's resources
func (n *Node) Close() {
	n.ledger.Close()
}

// Ledger exposes the read side of the index store
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Meta returns the node's identity
func (n *Node) Meta() modules.NodeMeta {
	return n.meta
}

// Params returns the currency parameters
func (n *Node) Params() config.CurrencyParams {
	return n.params
}

// rebuildWot reconstructs the trust graph from the IINDEX and CINDEX of a
// snapshot, in deterministic pubkey order.
func (n *Node) rebuildWot(snap *ledger.Snapshot) {
	graph := wot.Make()
	ids := make(map[crypto.PublicKey]wot.NodeID)

	members := snap.Members()
	sort.Slice(members, func(i, j int) bool { return members[i].String() < members[j].String() })
	for _, pk := range members {
		ids[pk] = graph.AddNode()
	}
	head, hasHead := snap.GetBindexHead()
	medianTime := uint64(0)
	if hasHead {
		medianTime = head.MedianTime
	}
	for _, pk := range members {
		for _, cert := range snap.LiveCertsToReceiver(pk, medianTime) {
			from, okF := ids[cert.Issuer]
			to, okT := ids[cert.Receiver]
			if okF && okT {
				graph.AddLink(from, to)
			}
		}
	}

	n.mu.Lock()
	n.graph = graph
	n.wotIDs = ids
	n.mu.Unlock()
}

// evalContext captures the state a validation runs against
func (n *Node) evalContext() *eval.Context {
	n.mu.Lock()
	graph := n.graph.Snapshot()
	ids := make(map[crypto.PublicKey]wot.NodeID, len(n.wotIDs))
	for pk, id := range n.wotIDs {
		ids[pk] = id
	}
	n.mu.Unlock()

	return &eval.Context{
		Params: n.params,
		Snap:   n.ledger.Snapshot(),
		Wot:    graph,
		WotID: func(pk crypto.PublicKey) (wot.NodeID, bool) {
			id, ok := ids[pk]
			return id, ok
		},
	}
}

// StartSync puts the head state machine into Syncing(to): blocks are
// applied without gossip until the target is reached.
func (n *Node) StartSync(to basics.BlockNumber) {
	n.mu.Lock()
	n.syncing = true
	n.syncTarget = to
	n.mu.Unlock()
}

// Gossiping reports whether accepted blocks should be announced
func (n *Node) Gossiping() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.syncing
}

// ProcessBlock runs one block through the engine and commits the outcome.
// Returns the outcome and whether the head changed.
func (n *Node) ProcessBlock(block *documents.Block) (eval.Outcome, bool) {
	out := n.engine.Process(n.evalContext(), block)
	switch o := out.(type) {
	case eval.Accepted:
		if _, err := n.ledger.Apply(block.Number, o.Mutations); err != nil {
			n.log.With("block", block.Number).Errorf("apply failed: %v", err)
			return eval.Rejected{Reason: err.Error()}, false
		}
		n.applyGraph(o.Mutations)
		n.advanceSyncState(block.Number)
		return out, true
	case eval.Forked:
		if _, err := n.ledger.RollbackTo(o.ForkPoint); err != nil {
			n.log.Errorf("rollback failed: %v", err)
			return eval.Rejected{Reason: err.Error()}, false
		}
		for _, muts := range o.Blocks {
			if _, err := n.ledger.Apply(muts.Head.Number, muts); err != nil {
				n.log.With("block", muts.Head.Number).Errorf("side apply failed: %v", err)
				return eval.Rejected{Reason: err.Error()}, false
			}
		}
		// a rewind can drop members and links; rebuild from the indices
		n.rebuildWot(n.ledger.Snapshot())
		return out, true
	default:
		return out, false
	}
}

// applyGraph mutates the trust graph incrementally for an accepted block
func (n *Node) applyGraph(muts *ledger.Mutations) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range muts.IRows {
		id, ok := n.wotIDs[r.Pubkey]
		if !ok {
			id = n.graph.AddNode()
			n.wotIDs[r.Pubkey] = id
		}
		n.graph.SetEnabled(id, r.Member)
	}
	for _, r := range muts.CRows {
		from, okF := n.wotIDs[r.Issuer]
		to, okT := n.wotIDs[r.Receiver]
		if !okF || !okT {
			continue
		}
		if r.ExpiredOn != 0 {
			n.graph.RemoveLink(from, to)
		} else {
			n.graph.AddLink(from, to)
		}
	}
}

// advanceSyncState flips Syncing(to) to AtHead once the target is reached
func (n *Node) advanceSyncState(applied basics.BlockNumber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.syncing && applied >= n.syncTarget {
		n.syncing = false
		n.log.With("block", applied).Infof("sync target reached, gossip enabled")
	}
}

// Status summarizes the node for the TUI and the query API
type Status struct {
	Currency   string             `json:"currency"`
	HeadNumber basics.BlockNumber `json:"head_number"`
	HeadHash   string             `json:"head_hash"`
	MedianTime uint64             `json:"median_time"`
	Members    uint64             `json:"members_count"`
	Syncing    bool               `json:"syncing"`
}

// HeadBlockstamp returns the blockstamp of the reported head; false
// before any block is applied. The network module reads it to build HEAD
// messages.
func (s Status) HeadBlockstamp() (basics.Blockstamp, bool) {
	if s.HeadHash == "" {
		return basics.Blockstamp{}, false
	}
	hash, err := crypto.DigestFromString(s.HeadHash)
	if err != nil {
		return basics.Blockstamp{}, false
	}
	return basics.Blockstamp{Number: s.HeadNumber, Hash: hash}, true
}

// HeadLine renders the status as a one-line terminal summary
func (s Status) HeadLine() string {
	hash := s.HeadHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s head %d-%s members=%d median_time=%d", s.Currency, s.HeadNumber, hash, s.Members, s.MedianTime)
}

// Status reports the node's current view of the chain
func (n *Node) Status() Status {
	st := Status{Currency: n.conf.Currency, Syncing: !n.Gossiping()}
	if head, ok := n.ledger.Snapshot().GetBindexHead(); ok {
		st.HeadNumber = head.Number
		st.HeadHash = head.Hash.String()
		st.MedianTime = head.MedianTime
		st.Members = head.MembersCount
	}
	return st
}
