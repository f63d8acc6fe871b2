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
	"fmt"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// PeerCard is a v11 peer document: how to reach one node, signed by its
// network key.
type PeerCard struct {
	Currency   basics.CurrencyName
	NodeID     string
	Pubkey     crypto.PublicKey
	Blockstamp basics.Blockstamp
	Endpoints  []Endpoint
	Signature  crypto.Signature
}

// ErrBadPeerCard is returned for a malformed peer document
type ErrBadPeerCard struct {
	Reason string
}

// Error implements the error interface
func (e *ErrBadPeerCard) Error() string {
	return "network: bad peer card: " + e.Reason
}

// SignableBytes returns the header and endpoint lines covered by the
// signature.
func (p *PeerCard) SignableBytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "11:%s:%s:%s:%s\n", p.Currency, p.NodeID, p.Pubkey, p.Blockstamp)
	for _, ep := range p.Endpoints {
		b.WriteString(ep.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// CanonicalBytes returns the full document including the signature line
func (p *PeerCard) CanonicalBytes() []byte {
	return append(p.SignableBytes(), []byte(p.Signature.String()+"\n")...)
}

// Verify checks the signature against the card's own pubkey
func (p *PeerCard) Verify() error {
	if !p.Pubkey.Verify(p.SignableBytes(), p.Signature) {
		return &ErrBadPeerCard{Reason: "invalid signature"}
	}
	return nil
}

// Sign sets the signature from the node's network secrets
func (p *PeerCard) Sign(secrets *crypto.SignatureSecrets) {
	p.Pubkey = secrets.SignatureVerifier
	p.Signature = secrets.Sign(p.SignableBytes())
}

func validPeerNodeID(s string) bool {
	if len(s) < 1 || len(s) > 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// ParsePeerCard parses a v11 peer document
func ParsePeerCard(buf []byte) (*PeerCard, error) {
	lines := strings.Split(strings.TrimSuffix(string(buf), "\n"), "\n")
	if len(lines) < 2 {
		return nil, &ErrBadPeerCard{Reason: "too few lines"}
	}
	head := strings.Split(lines[0], ":")
	// the blockstamp itself contains one ':'-free dash-separated token, so
	// the header has exactly 5 fields
	if len(head) != 5 || head[0] != "11" {
		return nil, &ErrBadPeerCard{Reason: "bad header"}
	}
	var p PeerCard
	p.Currency = basics.CurrencyName(head[1])
	if !validPeerNodeID(head[2]) {
		return nil, &ErrBadPeerCard{Reason: "bad node id"}
	}
	p.NodeID = head[2]
	pk, err := crypto.PublicKeyFromBase58(head[3])
	if err != nil {
		return nil, &ErrBadPeerCard{Reason: "bad pubkey"}
	}
	p.Pubkey = pk
	stamp, err := basics.ParseBlockstamp(head[4])
	if err != nil {
		return nil, &ErrBadPeerCard{Reason: "bad blockstamp"}
	}
	p.Blockstamp = stamp

	for _, line := range lines[1 : len(lines)-1] {
		ep, err := ParseEndpoint(line)
		if err != nil {
			return nil, err
		}
		p.Endpoints = append(p.Endpoints, ep)
	}
	sig, err := crypto.SignatureFromBase64(lines[len(lines)-1])
	if err != nil {
		return nil, &ErrBadPeerCard{Reason: "bad signature"}
	}
	p.Signature = sig
	return &p, nil
}
