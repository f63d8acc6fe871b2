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
	"testing"
	"time"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/network"
	"github.com/stretchr/testify/require"
)

// stubModule is a configurable test module
type stubModule struct {
	name     string
	priority Priority
	register bool
	started  chan struct{}
}

func (m *stubModule) Name() string         { return m.name }
func (m *stubModule) Priority() Priority   { return m.priority }
func (m *stubModule) RequiredKeys() KeyReq { return KeysNone }
func (m *stubModule) HasSubcommand() bool  { return false }
func (m *stubModule) ExecSubcommand(NodeMeta, config.KeyPairs, config.Local, []string) (SubcommandResult, error) {
	return SubcommandResult{}, nil
}
func (m *stubModule) Endpoints(config.Local) []network.Endpoint { return nil }

func (m *stubModule) Start(ctx StartContext) error {
	if m.started != nil {
		close(m.started)
	}
	if !m.register {
		// stall without registering; the router must abort
		time.Sleep(time.Hour)
		return nil
	}
	inbox, err := ctx.Client.Register(nil, nil)
	if err != nil {
		return err
	}
	for msg := range inbox {
		if msg.Shutdown {
			return nil
		}
	}
	return nil
}

func makeTestHost(t *testing.T, modules ...Module) *Host {
	t.Helper()
	return MakeHost(logging.TestingLog(t), NodeMeta{Currency: "g1-test"},
		config.GetDefaultLocal(), config.KeyPairs{}, modules)
}

func TestHostCleanShutdown(t *testing.T) {
	m := &stubModule{name: "worker", priority: PriorityRequired, register: true, started: make(chan struct{})}
	h := makeTestHost(t, m)

	exit := make(chan int, 1)
	go func() { exit <- h.Run() }()

	<-m.started
	time.Sleep(50 * time.Millisecond)
	h.Router().Shutdown()

	select {
	case code := <-exit:
		require.Equal(t, ExitOK, code)
	case <-time.After(10 * time.Second):
		t.Fatal("host did not exit")
	}
}

func TestHostRegistrationTimeout(t *testing.T) {
	// one required module that never registers: exit code 2, no panics
	m := &stubModule{name: "stuck", priority: PriorityRequired, register: false}
	h := makeTestHost(t, m)
	h.Router().registrationDeadline = 200 * time.Millisecond

	exit := make(chan int, 1)
	go func() { exit <- h.Run() }()

	select {
	case code := <-exit:
		require.Equal(t, ExitRegistrationTimeout, code)
	case <-time.After(10 * time.Second):
		t.Fatal("host did not exit")
	}
}

func TestHostRegistrationWithinDeadline(t *testing.T) {
	// bounded time to Running: a registering required module must not
	// trip the deadline
	m := &stubModule{name: "ok", priority: PriorityRequired, register: true}
	h := makeTestHost(t, m)
	h.Router().registrationDeadline = 500 * time.Millisecond

	exit := make(chan int, 1)
	go func() { exit <- h.Run() }()

	// wait past the deadline, then ask for a clean stop
	time.Sleep(700 * time.Millisecond)
	h.Router().Shutdown()
	require.Equal(t, ExitOK, <-exit)
}

func TestOptionalModuleSelection(t *testing.T) {
	conf := config.GetDefaultLocal()
	conf.DisabledModules = []string{"opt-on"}
	conf.EnabledModules = []string{"opt-off"}

	on := &stubModule{name: "opt-on", priority: PriorityOptionalOn, register: true}
	off := &stubModule{name: "opt-off", priority: PriorityOptionalOff, register: true}
	req := &stubModule{name: "req", priority: PriorityRequired, register: true}

	h := MakeHost(logging.TestingLog(t), NodeMeta{}, conf, config.KeyPairs{}, []Module{on, off, req})
	require.Len(t, h.modules, 2)
	names := []string{h.modules[0].Name(), h.modules[1].Name()}
	require.Contains(t, names, "opt-off")
	require.Contains(t, names, "req")
	require.NotContains(t, names, "opt-on")
}
