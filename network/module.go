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

package network

import (
	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/modules"
)

// ModuleName is the router name of the peer table module
const ModuleName = "network"

// SubmitPeerRequest carries a raw peer card received from a peer
type SubmitPeerRequest struct {
	Raw []byte
}

// SubmitHeadRequest carries a raw HEAD message received from a peer
type SubmitHeadRequest struct {
	Raw []byte
}

// PeerListRequest asks for every live peer card
type PeerListRequest struct{}

// PeerListReply is the answer to PeerListRequest
type PeerListReply struct {
	Peers []*PeerCard
}

// HeadsReply is the answer to HeadsRequest
type HeadsReply struct {
	Heads []*Head
}

// HeadsRequest asks for the best HEAD per known node
type HeadsRequest struct{}

// Module maintains the peer table: peer cards and HEAD messages from
// other nodes, plus this node's own card and HEAD. It speaks only
// document-level DUNP; the wire transport lives outside the core.
type Module struct {
	peers map[crypto.PublicKey]*PeerCard
	heads map[crypto.PublicKey]*Head
	own   *PeerCard
}

// MakeModule creates the peer table module
func MakeModule() *Module {
	return &Module{
		peers: make(map[crypto.PublicKey]*PeerCard),
		heads: make(map[crypto.PublicKey]*Head),
	}
}

// Name implements modules.Module
func (m *Module) Name() string { return ModuleName }

// Priority implements modules.Module
func (m *Module) Priority() modules.Priority { return modules.PriorityOptionalOn }

// RequiredKeys implements modules.Module
func (m *Module) RequiredKeys() modules.KeyReq { return modules.KeysNetwork }

// HasSubcommand implements modules.Module
func (m *Module) HasSubcommand() bool { return false }

// ExecSubcommand implements modules.Module
func (m *Module) ExecSubcommand(modules.NodeMeta, config.KeyPairs, config.Local, []string) (modules.SubcommandResult, error) {
	return modules.SubcommandResult{}, nil
}

// Endpoints implements modules.Module: the peer table itself serves no
// peer-facing endpoint; it aggregates the ones other modules register.
func (m *Module) Endpoints(config.Local) []Endpoint { return nil }

// Start implements modules.Module
func (m *Module) Start(ctx modules.StartContext) error {
	inbox, err := ctx.Client.Register([]modules.EventKind{modules.EventNewHead}, nil)
	if err != nil {
		return err
	}
	var endpoints []Endpoint
	for msg := range inbox {
		switch {
		case msg.Shutdown:
			return nil
		case msg.Endpoints != nil:
			endpoints = msg.Endpoints
			m.refreshOwnCard(ctx, endpoints)
		case msg.Event != nil && msg.Event.Kind == modules.EventNewHead:
			m.refreshOwnHead(ctx, msg.Event.Payload)
		case msg.Request != nil:
			m.handleRequest(ctx, msg.Request)
		}
	}
	return nil
}

// refreshOwnCard re-signs this node's peer card with the current
// endpoints and head.
func (m *Module) refreshOwnCard(ctx modules.StartContext, endpoints []Endpoint) {
	if ctx.Keys.Network == nil {
		return
	}
	card := &PeerCard{
		Currency:  basics.CurrencyName(ctx.Meta.Currency),
		NodeID:    ctx.Meta.NodeID,
		Endpoints: endpoints,
	}
	if m.own != nil {
		card.Blockstamp = m.own.Blockstamp
	}
	card.Sign(ctx.Keys.Network)
	m.own = card
	ctx.Log.Debugf("own peer card refreshed with %d endpoints", len(endpoints))
}

// headPayload is the subset of the node status the module reads from
// EventNewHead payloads.
type headPayload interface {
	HeadBlockstamp() (basics.Blockstamp, bool)
}

// refreshOwnHead updates the node's own HEAD on a new chain head
func (m *Module) refreshOwnHead(ctx modules.StartContext, payload interface{}) {
	if ctx.Keys.Network == nil {
		return
	}
	hp, ok := payload.(headPayload)
	if !ok {
		return
	}
	stamp, ok := hp.HeadBlockstamp()
	if !ok {
		return
	}
	head := &Head{
		Currency:        basics.CurrencyName(ctx.Meta.Currency),
		APIOutgoing:     1,
		APIIncoming:     1,
		FreeMemberRooms: 5,
		FreeMirrorRooms: 5,
		NodeID:          ctx.Meta.NodeID,
		Blockstamp:      stamp,
		Software:        ctx.Meta.Software,
		SoftVersion:     ctx.Meta.SoftVersion,
	}
	head.Sign(ctx.Keys.Network)
	m.heads[head.Pubkey] = head
	if m.own != nil {
		m.own.Blockstamp = stamp
		m.own.Sign(ctx.Keys.Network)
	}
}

func (m *Module) handleRequest(ctx modules.StartContext, req *modules.Request) {
	switch payload := req.Payload.(type) {
	case SubmitPeerRequest:
		card, err := ParsePeerCard(payload.Raw)
		if err == nil {
			err = card.Verify()
		}
		if err != nil {
			req.Respond(modules.Reply{Err: err.Error()})
			return
		}
		if prev, ok := m.peers[card.Pubkey]; ok && prev.Blockstamp.Number > card.Blockstamp.Number {
			// stale card; keep the fresher one
			req.Respond(modules.Reply{Payload: false})
			return
		}
		m.peers[card.Pubkey] = card
		ctx.Client.Publish(modules.EventPeerCard, card)
		req.Respond(modules.Reply{Payload: true})

	case SubmitHeadRequest:
		head, err := ParseHead(payload.Raw)
		if err == nil {
			err = head.Verify()
		}
		if err != nil {
			req.Respond(modules.Reply{Err: err.Error()})
			return
		}
		if prev, ok := m.heads[head.Pubkey]; ok && prev.Blockstamp.Number >= head.Blockstamp.Number {
			req.Respond(modules.Reply{Payload: false})
			return
		}
		m.heads[head.Pubkey] = head
		ctx.Client.Publish(modules.EventHeadReceived, head)
		req.Respond(modules.Reply{Payload: true})

	case PeerListRequest:
		reply := PeerListReply{}
		if m.own != nil {
			reply.Peers = append(reply.Peers, m.own)
		}
		for _, card := range m.peers {
			reply.Peers = append(reply.Peers, card)
		}
		req.Respond(modules.Reply{Payload: reply})

	case HeadsRequest:
		reply := HeadsReply{}
		for _, head := range m.heads {
			reply.Heads = append(reply.Heads, head)
		}
		req.Respond(modules.Reply{Payload: reply})

	default:
		req.Respond(modules.Reply{Err: "unsupported request"})
	}
}
