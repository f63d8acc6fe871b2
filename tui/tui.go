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

// Package tui is the terminal status module: one colored line per chain
// head movement. The full-screen rendering layer lives outside the core.
package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/dunitrust/dunitrust/network"
)

// ModuleName is the router name of the terminal status module
const ModuleName = "tui"

// Module prints chain head movements to the terminal
type Module struct {
	// Out defaults to stdout; tests redirect it
	Out io.Writer
}

// MakeModule creates the terminal status module
func MakeModule() *Module {
	return &Module{Out: os.Stdout}
}

// Name implements modules.Module
func (m *Module) Name() string { return ModuleName }

// Priority implements modules.Module
func (m *Module) Priority() modules.Priority { return modules.PriorityOptionalOff }

// RequiredKeys implements modules.Module
func (m *Module) RequiredKeys() modules.KeyReq { return modules.KeysNone }

// HasSubcommand implements modules.Module
func (m *Module) HasSubcommand() bool { return false }

// ExecSubcommand implements modules.Module
func (m *Module) ExecSubcommand(modules.NodeMeta, config.KeyPairs, config.Local, []string) (modules.SubcommandResult, error) {
	return modules.SubcommandResult{}, nil
}

// Endpoints implements modules.Module
func (m *Module) Endpoints(config.Local) []network.Endpoint { return nil }

// headLine is the subset of the head event payload the TUI renders
type headLine interface {
	HeadLine() string
}

// Start implements modules.Module
func (m *Module) Start(ctx modules.StartContext) error {
	inbox, err := ctx.Client.Register([]modules.EventKind{modules.EventNewHead, modules.EventPeerCard}, nil)
	if err != nil {
		return err
	}
	headColor := color.New(color.FgGreen)
	peerColor := color.New(color.FgCyan)
	for msg := range inbox {
		switch {
		case msg.Shutdown:
			return nil
		case msg.Event == nil:
		case msg.Event.Kind == modules.EventNewHead:
			if hl, ok := msg.Event.Payload.(headLine); ok {
				headColor.Fprintln(m.Out, hl.HeadLine())
			}
		case msg.Event.Kind == modules.EventPeerCard:
			if card, ok := msg.Event.Payload.(*network.PeerCard); ok {
				peerColor.Fprintln(m.Out, fmt.Sprintf("peer %s at %s", card.NodeID, card.Blockstamp))
			}
		}
	}
	return nil
}
