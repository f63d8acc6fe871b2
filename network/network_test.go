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
	"net"
	"testing"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/stretchr/testify/require"
)

func netSecrets(t testing.TB, tag byte) *crypto.SignatureSecrets {
	t.Helper()
	var seed crypto.Seed
	seed[0] = tag
	copy(seed[1:], []byte("network test seed material......"))
	return crypto.GenerateSignatureSecrets(seed)
}

func testStamp() basics.Blockstamp {
	return basics.Blockstamp{Number: 50, Hash: crypto.Hash([]byte("block 50"))}
}

func TestEndpointRoundtrip(t *testing.T) {
	cases := []string{
		"WS2P V2 S mydomain.example.org 443 ws2p",
		"WS2P 192.168.1.1 20900",
		"BASIC_MERKLED_API HTTP WS gorgone.duniter.org 10901",
		"GVA S TOR example.onion 443 gva",
		"WS2P [2001:db8::1] 20901",
		"WS2P V2 HTTP 10.0.0.4 [2001:db8::2] 20902 path",
	}
	for _, src := range cases {
		ep, err := ParseEndpoint(src)
		require.NoError(t, err, "endpoint %q", src)
		require.Equal(t, src, ep.String(), "endpoint %q", src)
	}
}

func TestEndpointFields(t *testing.T) {
	ep, err := ParseEndpoint("WS2P V2 HTTP WS S TOR example.org 443 ws2p")
	require.NoError(t, err)
	require.Equal(t, "WS2P", ep.API)
	require.Equal(t, uint32(2), ep.APIVersion)
	require.NotZero(t, ep.Features&FeatureHTTP)
	require.NotZero(t, ep.Features&FeatureWS)
	require.NotZero(t, ep.Network&FeatureTLS)
	require.NotZero(t, ep.Network&FeatureTOR)
	require.Equal(t, "example.org", ep.Host)
	require.Equal(t, uint16(443), ep.Port)
	require.Equal(t, "ws2p", ep.Path)
}

func TestEndpointRejects(t *testing.T) {
	for _, bad := range []string{
		"",
		"WS2P",
		"WS2P 99999 host",
		"WS2P 20900",
		"WS2P bad_host! 20900",
		"WS2P host 20900 path extra",
	} {
		_, err := ParseEndpoint(bad)
		require.Error(t, err, "endpoint %q", bad)
	}
}

func TestPeerCardRoundtrip(t *testing.T) {
	s := netSecrets(t, 1)
	card := &PeerCard{
		Currency:   "g1",
		NodeID:     "a1b2c3",
		Blockstamp: testStamp(),
		Endpoints: []Endpoint{
			{API: "WS2P", APIVersion: 2, Network: FeatureTLS, Host: "node.example.org", Port: 443, Path: "ws2p"},
			{API: "GVA", Features: FeatureHTTP, IPv4: net.IPv4(192, 168, 1, 2).To4(), Port: 10901},
		},
	}
	card.Sign(s)
	require.NoError(t, card.Verify())

	parsed, err := ParsePeerCard(card.CanonicalBytes())
	require.NoError(t, err)
	require.Equal(t, card, parsed)
	require.Equal(t, card.CanonicalBytes(), parsed.CanonicalBytes())
	require.NoError(t, parsed.Verify())
}

func TestPeerCardRejects(t *testing.T) {
	s := netSecrets(t, 2)
	card := &PeerCard{Currency: "g1", NodeID: "ff", Blockstamp: testStamp()}
	card.Sign(s)

	// tampered header no longer verifies
	parsed, err := ParsePeerCard(card.CanonicalBytes())
	require.NoError(t, err)
	parsed.NodeID = "00"
	require.Error(t, parsed.Verify())

	for _, bad := range []string{
		"",
		"10:g1:ff:pk:0-X\nsig",
		"11:g1:TOOLONGID:pk:0-X\nsig",
	} {
		_, err := ParsePeerCard([]byte(bad))
		require.Error(t, err, "input %q", bad)
	}
}

func TestHeadRoundtrip(t *testing.T) {
	s := netSecrets(t, 3)
	h := &Head{
		Currency:        "g1",
		APIOutgoing:     1,
		APIIncoming:     3,
		FreeMemberRooms: 5,
		FreeMirrorRooms: 10,
		NodeID:          "deadbeef",
		Blockstamp:      testStamp(),
		Software:        "dunitrust",
		SoftVersion:     "0.3.0",
	}
	h.Sign(s)
	require.NoError(t, h.Verify())

	parsed, err := ParseHead(h.CanonicalBytes())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
	require.Nil(t, parsed.Step)
	require.NoError(t, parsed.Verify())
}

func TestHeadForwarding(t *testing.T) {
	s := netSecrets(t, 4)
	h := &Head{
		Currency:    "g1",
		NodeID:      "01",
		Blockstamp:  testStamp(),
		Software:    "dunitrust",
		SoftVersion: "0.3.0",
	}
	h.Sign(s)

	fwd := h.Forwarded()
	require.NotNil(t, fwd.Step)
	require.Equal(t, uint32(0), *fwd.Step)
	// forwarding does not re-sign; the signature still verifies
	require.NoError(t, fwd.Verify())

	parsed, err := ParseHead(fwd.CanonicalBytes())
	require.NoError(t, err)
	require.NotNil(t, parsed.Step)
	require.Equal(t, uint32(0), *parsed.Step)

	fwd2 := parsed.Forwarded()
	require.Equal(t, uint32(1), *fwd2.Step)
}

func TestHeadRejects(t *testing.T) {
	for _, bad := range []string{
		"",
		"2:g1:1:1:1:1:aa:pk:0-X:soft:ver\nsig",
		"3:g1:1:1:1:1:aa:pk\nsig",
	} {
		_, err := ParseHead([]byte(bad))
		require.Error(t, err, "input %q", bad)
	}
}
