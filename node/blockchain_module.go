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

package node

import (
	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/data/documents"
	"github.com/dunitrust/dunitrust/ledger/eval"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/dunitrust/dunitrust/network"
)

// BlockchainModuleName is the router name of the block processor
const BlockchainModuleName = "blockchain"

// SubmitBlockRequest asks the block processor to ingest one block, either
// already parsed or as raw document bytes.
type SubmitBlockRequest struct {
	Block *documents.Block
	Raw   []byte
}

// SubmitBlockReply reports the engine outcome for a submitted block
type SubmitBlockReply struct {
	Accepted bool
	Forked   bool
	Rejected string
}

// blockchainModule is the required worker that owns block ingestion
type blockchainModule struct {
	node *Node
}

// Name implements modules.Module
func (m *blockchainModule) Name() string { return BlockchainModuleName }

// Priority implements modules.Module
func (m *blockchainModule) Priority() modules.Priority { return modules.PriorityRequired }

// RequiredKeys implements modules.Module
func (m *blockchainModule) RequiredKeys() modules.KeyReq { return modules.KeysNone }

// HasSubcommand implements modules.Module
func (m *blockchainModule) HasSubcommand() bool { return false }

// ExecSubcommand implements modules.Module
func (m *blockchainModule) ExecSubcommand(modules.NodeMeta, config.KeyPairs, config.Local, []string) (modules.SubcommandResult, error) {
	return modules.SubcommandResult{}, nil
}

// Endpoints implements modules.Module
func (m *blockchainModule) Endpoints(config.Local) []network.Endpoint { return nil }

// Start implements modules.Module: the block processor loop
func (m *blockchainModule) Start(ctx modules.StartContext) error {
	inbox, err := ctx.Client.Register(nil, nil)
	if err != nil {
		return err
	}
	for msg := range inbox {
		switch {
		case msg.Shutdown:
			return nil
		case msg.Request != nil:
			m.handleRequest(ctx, msg.Request)
		}
	}
	return nil
}

func (m *blockchainModule) handleRequest(ctx modules.StartContext, req *modules.Request) {
	submit, ok := req.Payload.(SubmitBlockRequest)
	if !ok {
		req.Respond(modules.Reply{Err: "unsupported request"})
		return
	}
	block := submit.Block
	if block == nil {
		parsed, perr := documents.ParseBlock(submit.Raw)
		if perr != nil {
			req.Respond(modules.Reply{Err: perr.Error()})
			return
		}
		block = parsed
	}

	out, headChanged := m.node.ProcessBlock(block)
	reply := SubmitBlockReply{}
	switch o := out.(type) {
	case eval.Accepted:
		reply.Accepted = true
	case eval.Forked:
		reply.Forked = true
	case eval.Rejected:
		reply.Rejected = o.Reason
	}
	req.Respond(modules.Reply{Payload: reply})

	if headChanged && m.node.Gossiping() {
		ctx.Client.Publish(modules.EventNewHead, m.node.Status())
	}
}
