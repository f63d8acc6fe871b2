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
	"testing"
	"time"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/stretchr/testify/require"
)

func startPeerModule(t *testing.T) (*modules.Router, *modules.Client) {
	t.Helper()
	router := modules.MakeRouter(logging.TestingLog(t), nil)
	done := make(chan error, 1)
	go func() { done <- router.Run() }()
	t.Cleanup(func() { router.Shutdown() })

	netSecrets, err := crypto.SecretsFromPassphrase("salt", "network module test")
	require.NoError(t, err)

	m := MakeModule()
	go m.Start(modules.StartContext{
		Meta:   modules.NodeMeta{Currency: "g1-test", NodeID: "ab", Software: "dunitrust", SoftVersion: "0.3.0"},
		Keys:   config.KeyPairs{Network: netSecrets},
		Conf:   config.GetDefaultLocal(),
		Log:    logging.TestingLog(t),
		Client: router.Client(ModuleName),
	})

	client := router.Client("test-driver")
	_, err = client.Register(nil, nil)
	require.NoError(t, err)
	// the peer module registers asynchronously; requests retry until it
	// becomes routable
	return router, client
}

func TestSubmitAndListPeer(t *testing.T) {
	_, client := startPeerModule(t)

	peerSecrets, err := crypto.SecretsFromPassphrase("salt", "remote peer")
	require.NoError(t, err)
	card := &PeerCard{
		Currency:   "g1-test",
		NodeID:     "cafe",
		Blockstamp: testStamp(),
		Endpoints:  []Endpoint{{API: "WS2P", Host: "peer.example.org", Port: 20901}},
	}
	card.Sign(peerSecrets)

	var reply modules.Reply
	require.Eventually(t, func() bool {
		r, err := client.Request(ModuleName, SubmitPeerRequest{Raw: card.CanonicalBytes()}, time.Second)
		if err != nil {
			return false
		}
		reply = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	require.Empty(t, reply.Err)
	require.Equal(t, true, reply.Payload)

	r, err := client.Request(ModuleName, PeerListRequest{}, time.Second)
	require.NoError(t, err)
	list, ok := r.Payload.(PeerListReply)
	require.True(t, ok)
	require.Len(t, list.Peers, 1)
	require.Equal(t, "cafe", list.Peers[0].NodeID)
}

func TestSubmitHeadTracksBest(t *testing.T) {
	_, client := startPeerModule(t)

	peerSecrets, err := crypto.SecretsFromPassphrase("salt", "head peer")
	require.NoError(t, err)

	makeHead := func(n uint32) []byte {
		h := &Head{
			Currency:    "g1-test",
			NodeID:      "beef",
			Blockstamp:  testStamp(),
			Software:    "duniter",
			SoftVersion: "1.8.0",
		}
		h.Blockstamp.Number = basics.BlockNumber(n)
		h.Sign(peerSecrets)
		return h.CanonicalBytes()
	}

	submit := func(raw []byte) modules.Reply {
		var reply modules.Reply
		require.Eventually(t, func() bool {
			r, err := client.Request(ModuleName, SubmitHeadRequest{Raw: raw}, time.Second)
			if err != nil {
				return false
			}
			reply = r
			return true
		}, 5*time.Second, 20*time.Millisecond)
		return reply
	}

	first := submit(makeHead(60))
	require.Empty(t, first.Err)
	require.Equal(t, true, first.Payload)

	// an older HEAD from the same node is ignored
	stale := submit(makeHead(55))
	require.Empty(t, stale.Err)
	require.Equal(t, false, stale.Payload)

	// a malformed HEAD is an error
	bad := submit([]byte("3:bad"))
	require.NotEmpty(t, bad.Err)

	r, err := client.Request(ModuleName, HeadsRequest{}, time.Second)
	require.NoError(t, err)
	heads, ok := r.Payload.(HeadsReply)
	require.True(t, ok)
	require.Len(t, heads.Heads, 1)
	require.Equal(t, basics.BlockNumber(60), heads.Heads[0].Blockstamp.Number)
}
