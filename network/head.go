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

// Head is a v3 HEAD status message: the current chain head of one node,
// with its room availability, signed by its network key.
type Head struct {
	Currency        basics.CurrencyName
	APIOutgoing     uint32
	APIIncoming     uint32
	FreeMemberRooms uint32
	FreeMirrorRooms uint32
	NodeID          string
	Pubkey          crypto.PublicKey
	Blockstamp      basics.Blockstamp
	Software        string
	SoftVersion     string
	Signature       crypto.Signature

	// Step counts forwarding hops. It is absent (nil) on a HEAD emitted by
	// its own node and set on forwarded copies.
	Step *uint32
}

// ErrBadHead is returned for a malformed HEAD message
type ErrBadHead struct {
	Reason string
}

// Error implements the error interface
func (e *ErrBadHead) Error() string {
	return "network: bad head: " + e.Reason
}

// SignableBytes returns the status line covered by the signature
func (h *Head) SignableBytes() []byte {
	return []byte(fmt.Sprintf("3:%s:%d:%d:%d:%d:%s:%s:%s:%s:%s\n",
		h.Currency, h.APIOutgoing, h.APIIncoming, h.FreeMemberRooms,
		h.FreeMirrorRooms, h.NodeID, h.Pubkey, h.Blockstamp, h.Software,
		h.SoftVersion))
}

// CanonicalBytes returns the full message including the signature and the
// step trailer when present.
func (h *Head) CanonicalBytes() []byte {
	out := append(h.SignableBytes(), []byte(h.Signature.String())...)
	if h.Step != nil {
		out = append(out, []byte(fmt.Sprintf("\n%d", *h.Step))...)
	}
	return out
}

// Verify checks the signature against the head's own pubkey. The step
// trailer is not covered: forwarding increments it without re-signing.
func (h *Head) Verify() error {
	if !h.Pubkey.Verify(h.SignableBytes(), h.Signature) {
		return &ErrBadHead{Reason: "invalid signature"}
	}
	return nil
}

// Sign sets the signature from the node's network secrets
func (h *Head) Sign(secrets *crypto.SignatureSecrets) {
	h.Pubkey = secrets.SignatureVerifier
	h.Signature = secrets.Sign(h.SignableBytes())
}

// Forwarded returns a copy with the step trailer incremented, as relayed
// by an intermediate node.
func (h *Head) Forwarded() *Head {
	cp := *h
	step := uint32(0)
	if h.Step != nil {
		step = *h.Step + 1
	}
	cp.Step = &step
	return &cp
}

// ParseHead parses a v3 HEAD message
func ParseHead(buf []byte) (*Head, error) {
	lines := strings.Split(string(buf), "\n")
	if len(lines) < 2 {
		return nil, &ErrBadHead{Reason: "too few lines"}
	}
	fields := strings.Split(lines[0], ":")
	if len(fields) != 11 || fields[0] != "3" {
		return nil, &ErrBadHead{Reason: "bad status line"}
	}
	var h Head
	h.Currency = basics.CurrencyName(fields[1])

	counts := make([]uint32, 4)
	for i := 0; i < 4; i++ {
		v, err := basics.ParseUint32(fields[2+i])
		if err != nil {
			return nil, &ErrBadHead{Reason: "bad room count"}
		}
		counts[i] = v
	}
	h.APIOutgoing, h.APIIncoming = counts[0], counts[1]
	h.FreeMemberRooms, h.FreeMirrorRooms = counts[2], counts[3]

	if !validPeerNodeID(fields[6]) {
		return nil, &ErrBadHead{Reason: "bad node id"}
	}
	h.NodeID = fields[6]
	pk, err := crypto.PublicKeyFromBase58(fields[7])
	if err != nil {
		return nil, &ErrBadHead{Reason: "bad pubkey"}
	}
	h.Pubkey = pk
	stamp, err := basics.ParseBlockstamp(fields[8])
	if err != nil {
		return nil, &ErrBadHead{Reason: "bad blockstamp"}
	}
	h.Blockstamp = stamp
	h.Software = fields[9]
	h.SoftVersion = fields[10]

	sig, err := crypto.SignatureFromBase64(lines[1])
	if err != nil {
		return nil, &ErrBadHead{Reason: "bad signature"}
	}
	h.Signature = sig

	switch len(lines) {
	case 2:
	case 3:
		step, serr := basics.ParseUint32(lines[2])
		if serr != nil {
			return nil, &ErrBadHead{Reason: "bad step"}
		}
		h.Step = &step
	default:
		return nil, &ErrBadHead{Reason: "trailing lines"}
	}
	return &h, nil
}
