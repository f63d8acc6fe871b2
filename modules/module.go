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

// Package modules is the modular runtime: one router thread plus one
// thread per feature module, communicating exclusively through typed
// messages. Modules never share mutable state; configuration crosses the
// boundary by value.
package modules

import (
	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/network"
)

// Priority classifies how essential a module is to the node
type Priority int

// Module priorities
const (
	// PriorityRequired modules must register within the deadline or the
	// node aborts
	PriorityRequired Priority = iota
	// PriorityOptionalOn modules start unless disabled by configuration
	PriorityOptionalOn
	// PriorityOptionalOff modules start only when enabled by configuration
	PriorityOptionalOff
)

// KeyReq names which keypairs the runtime must inject at start
type KeyReq int

// Key requirements
const (
	KeysNone KeyReq = iota
	KeysMember
	KeysNetwork
	KeysAll
)

// NodeMeta is the immutable node identity shared with every module
type NodeMeta struct {
	ProfileDir  string
	Currency    string
	NodeID      string
	Software    string
	SoftVersion string
}

// StartContext is everything a module receives at start. It is passed by
// value; modules must not retain references into the runtime.
type StartContext struct {
	Meta NodeMeta
	Keys config.KeyPairs
	Conf config.Local

	// ModuleConf is this module's raw configuration blob from conf.json
	ModuleConf map[string]interface{}

	Log logging.Logger

	// Client is the module's only channel to the rest of the node
	Client *Client
}

// SubcommandResult optionally updates the persisted user configuration
type SubcommandResult struct {
	UpdatedConf *config.Local
}

// Module is one feature of the node, run on its own thread. Lifecycle:
// ExecSubcommand (optionally, before the router starts), then Start in the
// module's own goroutine. Start must register with the router within the
// registration deadline.
type Module interface {
	// Name returns the module's static name
	Name() string

	// Priority classifies the module
	Priority() Priority

	// RequiredKeys names the keypairs to inject
	RequiredKeys() KeyReq

	// HasSubcommand reports whether the module adds a CLI subcommand
	HasSubcommand() bool

	// ExecSubcommand runs the module's subcommand instead of the node.
	// Returning a non-nil UpdatedConf persists the new configuration.
	ExecSubcommand(meta NodeMeta, keys config.KeyPairs, conf config.Local, args []string) (SubcommandResult, error)

	// Start runs the module until shutdown. It is called in the module's
	// own goroutine and must register with the router within the
	// registration deadline.
	Start(ctx StartContext) error

	// Endpoints lists the peer-facing endpoints the module serves, to be
	// gossiped in the node's peer card. Most modules serve none.
	Endpoints(conf config.Local) []network.Endpoint
}
