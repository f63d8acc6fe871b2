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

// Package ledger is the persistent index store of the blockchain: the
// normalized projection of the chain into the identity (IINDEX),
// membership (MINDEX), certification (CINDEX), source (SINDEX) and block
// head (BINDEX) indices.
//
// The store is append-oriented: every accepted block appends event rows
// tagged with the block number that wrote them; the current state of an
// entity is the fold of its rows in written_on order. A fork rewind drops
// every row with written_on beyond the fork point.
//
// Reads and writes are strictly separated: readers hold an immutable
// Snapshot, the single writer publishes a new snapshot per applied block.
package ledger

import (
	"fmt"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// IIndexRow is one identity event
type IIndexRow struct {
	Pubkey    crypto.PublicKey   `codec:"pub"`
	UID       basics.UID         `codec:"uid"`
	CreatedOn basics.Blockstamp  `codec:"created_on"`
	WrittenOn basics.BlockNumber `codec:"written_on"`

	// Member is the membership status after this event
	Member bool `codec:"member"`

	// WasMember becomes true on first join and never reverts
	WasMember bool `codec:"was_member"`

	// Kick marks the identity for exclusion at the next block
	Kick bool `codec:"kick"`

	// Sig is the identity document's own signature, kept so revocations
	// and certifications can be checked against the reconstructed
	// identity text.
	Sig crypto.Signature `codec:"sig"`
}

// MIndexRow is one membership event
type MIndexRow struct {
	Pubkey    crypto.PublicKey   `codec:"pub"`
	WrittenOn basics.BlockNumber `codec:"written_on"`

	// ChainableOn is the median time after which the next membership
	// document of this pubkey may be written
	ChainableOn uint64 `codec:"chainable_on"`

	// ExpiresOn is the median time at which the membership lapses
	ExpiresOn uint64 `codec:"expires_on"`

	// RevokedOn is the median time of revocation, 0 when not revoked
	RevokedOn uint64 `codec:"revoked_on"`

	// Leaving is true after an OUT membership
	Leaving bool `codec:"leaving"`
}

// CIndexRow is one certification event
type CIndexRow struct {
	Issuer    crypto.PublicKey   `codec:"issuer"`
	Receiver  crypto.PublicKey   `codec:"receiver"`
	CreatedOn basics.BlockNumber `codec:"created_on"`
	WrittenOn basics.BlockNumber `codec:"written_on"`

	// ExpiresOn is the median time at which the certification lapses
	ExpiresOn uint64 `codec:"expires_on"`

	// ChainableOn is the median time after which the issuer may certify
	// again
	ChainableOn uint64 `codec:"chainable_on"`

	// ExpiredOn is 0 while the certification is live; set to the expiry
	// median time once the engine writes the expiry event
	ExpiredOn uint64 `codec:"expired_on"`
}

// SourceKind discriminates SINDEX sources
type SourceKind uint8

// Source kinds
const (
	SourceUD SourceKind = iota
	SourceTx
)

// SIndexRow is one source event: a creation or a consumption
type SIndexRow struct {
	Kind SourceKind `codec:"kind"`

	// Tx sources
	TxHash      crypto.Digest `codec:"tx_hash"`
	OutputIndex uint32        `codec:"output_index"`

	// UD sources
	UDIssuer crypto.PublicKey   `codec:"ud_issuer"`
	UDBlock  basics.BlockNumber `codec:"ud_block"`

	// Owner is the pubkey the source is indexed under: the UD beneficiary
	// or the first SIG leaf of the output conditions
	Owner crypto.PublicKey `codec:"owner"`

	Amount basics.Amount `codec:"amount"`

	// Conditions is the output condition source text; empty for UD
	// sources, which are implicitly SIG(owner)
	Conditions string `codec:"conditions"`

	WrittenOn basics.BlockNumber `codec:"written_on"`

	// Consumed marks a consumption event; ConsumedOn echoes WrittenOn
	Consumed   bool               `codec:"consumed"`
	ConsumedOn basics.BlockNumber `codec:"consumed_on"`
}

// SourceKey identifies a source across its creation and consumption events
type SourceKey string

// Key returns the source identifier: T:HASH:INDEX or D:PUBKEY:BLOCK
func (r SIndexRow) Key() SourceKey {
	if r.Kind == SourceUD {
		return SourceKey(fmt.Sprintf("D:%s:%d", r.UDIssuer, r.UDBlock))
	}
	return SourceKey(fmt.Sprintf("T:%s:%d", r.TxHash, r.OutputIndex))
}

// BIndexRow is one chain head: the header digest of an applied block
type BIndexRow struct {
	Number     basics.BlockNumber `codec:"number"`
	Hash       crypto.Digest      `codec:"hash"`
	Issuer     crypto.PublicKey   `codec:"issuer"`
	Time       uint64             `codec:"time"`
	MedianTime uint64             `codec:"median_time"`
	PoWMin     uint32             `codec:"pow_min"`
	UnitBase   uint8              `codec:"unit_base"`

	MembersCount    uint64 `codec:"members_count"`
	IssuersCount    uint64 `codec:"issuers_count"`
	IssuersFrame    uint64 `codec:"issuers_frame"`
	IssuersFrameVar int64  `codec:"issuers_frame_var"`

	// Dividend is the UD issued by this block, 0 otherwise
	Dividend int64 `codec:"dividend"`

	// LastUDAmount and LastUDTime carry the most recent dividend and its
	// median time forward, so the next UD block can be checked without
	// replaying the chain.
	LastUDAmount int64  `codec:"last_ud_amount"`
	LastUDTime   uint64 `codec:"last_ud_time"`

	// MonetaryMass accumulates every issued unit, in base-0 units
	MonetaryMass uint64 `codec:"monetary_mass"`
}

// Blockstamp returns the blockstamp of this head
func (r BIndexRow) Blockstamp() basics.Blockstamp {
	return basics.Blockstamp{Number: r.Number, Hash: r.Hash}
}

// Mutations is the batch of index rows a validated block writes. Produced
// by the validation engine as a value; only Apply turns it into state.
type Mutations struct {
	IRows []IIndexRow
	MRows []MIndexRow
	CRows []CIndexRow
	SRows []SIndexRow
	Head  BIndexRow
}
