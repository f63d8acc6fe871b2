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
	"fmt"
	"os"

	"github.com/dunitrust/dunitrust/apiserver"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/dunitrust/dunitrust/network"
	"github.com/dunitrust/dunitrust/tui"
)

// statusAdapter exposes the node status to the query API without leaking
// the node type into the apiserver package.
type statusAdapter struct{ node *Node }

func (a statusAdapter) Status() interface{} { return a.node.Status() }

// Modules lists the node's feature modules in start order
func (n *Node) Modules() []modules.Module {
	return []modules.Module{
		&blockchainModule{node: n},
		network.MakeModule(),
		apiserver.MakeModule(n.ledger, statusAdapter{node: n}),
		tui.MakeModule(),
	}
}

// Run hosts the module runtime until shutdown and maps failures to the
// process exit contract: 0 ok, 1 configuration or invariant error, 2
// module registration timeout, 3 corrupted index.
func (n *Node) Run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			if corrupt, ok := r.(*ledger.CorruptError); ok {
				fmt.Fprintf(os.Stderr, "ledger: corrupted index: %v\n", corrupt)
				code = modules.ExitCorruptIndex
				return
			}
			fmt.Fprintf(os.Stderr, "node: invariant violation: %v\n", r)
			code = modules.ExitConfError
		}
	}()

	host := modules.MakeHost(n.log, n.meta, n.conf, n.keys, n.Modules())
	return host.Run()
}
