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

package modules

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/logging"
)

// ShutdownJoinDeadline bounds how long the host waits for module threads
// after a shutdown broadcast; threads still alive are abandoned.
const ShutdownJoinDeadline = 5 * time.Second

// Exit codes of the node process
const (
	ExitOK int = iota
	// ExitConfError covers configuration and invariant errors
	ExitConfError
	// ExitRegistrationTimeout fires when a required module missed the
	// registration deadline
	ExitRegistrationTimeout
	// ExitCorruptIndex fires when the index store is corrupted or a write
	// failed
	ExitCorruptIndex
)

// Host runs the router plus one goroutine per enabled module
type Host struct {
	log  logging.Logger
	meta NodeMeta
	conf config.Local
	keys config.KeyPairs

	modules []Module
	router  *Router
}

// MakeHost assembles a host from the enabled subset of the given modules
func MakeHost(log logging.Logger, meta NodeMeta, conf config.Local, keys config.KeyPairs, available []Module) *Host {
	var enabled []Module
	var required []string
	for _, m := range available {
		switch m.Priority() {
		case PriorityRequired:
			required = append(required, m.Name())
			enabled = append(enabled, m)
		case PriorityOptionalOn:
			if conf.ModuleEnabled(m.Name(), true) {
				enabled = append(enabled, m)
			}
		case PriorityOptionalOff:
			if conf.ModuleEnabled(m.Name(), false) {
				enabled = append(enabled, m)
			}
		}
	}
	return &Host{
		log:     log,
		meta:    meta,
		conf:    conf,
		keys:    keys,
		modules: enabled,
		router:  MakeRouter(log, required),
	}
}

// Router exposes the host's router, mainly so the node core can obtain
// clients before Run.
func (h *Host) Router() *Router {
	return h.router
}

// keysFor narrows the injected keypairs to a module's requirement
func (h *Host) keysFor(m Module) config.KeyPairs {
	switch m.RequiredKeys() {
	case KeysNone:
		return config.KeyPairs{}
	case KeysMember:
		return config.KeyPairs{Member: h.keys.Member}
	case KeysNetwork:
		return config.KeyPairs{Network: h.keys.Network}
	default:
		return h.keys
	}
}

// Run starts every module thread and the router loop, then shepherds
// shutdown. The returned exit code follows the node's process contract.
func (h *Host) Run() int {
	routerDone := make(chan error, 1)
	go func() {
		routerDone <- h.router.Run()
	}()

	var wg sync.WaitGroup
	for _, m := range h.modules {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := StartContext{
				Meta:       h.meta,
				Keys:       h.keysFor(m),
				Conf:       h.conf,
				ModuleConf: h.conf.ModuleConf[m.Name()],
				Log:        h.log.With("module", m.Name()),
				Client:     h.router.Client(m.Name()),
			}
			if err := m.Start(ctx); err != nil {
				h.log.With("module", m.Name()).Errorf("module stopped: %v", err)
			}
		}()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	var routerErr error
	select {
	case routerErr = <-routerDone:
	case <-sigc:
		h.log.Infof("interrupt received, shutting down")
		h.router.Shutdown()
		routerErr = <-routerDone
	}

	// join module threads, abandoning laggards
	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(ShutdownJoinDeadline):
		h.log.Warnf("abandoning module threads after %v", ShutdownJoinDeadline)
	}

	if routerErr == ErrRegistrationTimeout {
		return ExitRegistrationTimeout
	}
	if routerErr != nil {
		return ExitConfError
	}
	return ExitOK
}
