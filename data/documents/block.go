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

package documents

import (
	"fmt"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// Block is a DUBP block: header fields, the documents it writes, the
// proof-of-work nonce and the issuer signature.
//
// The inner hash covers the compact inner text (everything before the
// InnerHash line); the signature covers "InnerHash: H\nNonce: N\n"; the
// block hash covers the signed text plus the signature.
type Block struct {
	CurrencyName basics.CurrencyName
	Number       basics.BlockNumber
	PoWMin       uint32
	Time         uint64
	MedianTime   uint64

	// UniversalDividend is nil on blocks that do not issue a UD
	UniversalDividend *int64
	UnitBase          uint8

	Issuer                crypto.PublicKey
	IssuersFrame          uint64
	IssuersFrameVar       int64
	DifferentIssuersCount uint64

	// ParametersLine is set only on the genesis block
	ParametersLine string

	// PreviousHash and PreviousIssuer are unset on the genesis block
	PreviousHash   crypto.Digest
	PreviousIssuer crypto.PublicKey

	MembersCount uint64

	Identities     []*Identity
	Joiners        []*Membership
	Actives        []*Membership
	Leavers        []*Membership
	Revoked        []*CompactRevocation
	Excluded       []crypto.PublicKey
	Certifications []*CompactCertification
	Transactions   []*Transaction

	InnerHash crypto.Digest
	Nonce     uint64
	Signature crypto.Signature
}

// Type implements Document
func (b *Block) Type() Type { return TypeBlock }

// Currency implements Document
func (b *Block) Currency() basics.CurrencyName { return b.CurrencyName }

// Blockstamp returns the blockstamp identifying this block
func (b *Block) Blockstamp() basics.Blockstamp {
	return basics.Blockstamp{Number: b.Number, Hash: b.Hash()}
}

// CompactInnerText emits every line before the InnerHash line
func (b *Block) CompactInnerText() string {
	var w strings.Builder
	fmt.Fprintf(&w, "Version: 10\nType: Block\nCurrency: %s\nNumber: %d\nPoWMin: %d\nTime: %d\nMedianTime: %d\n",
		b.CurrencyName, b.Number, b.PoWMin, b.Time, b.MedianTime)
	if b.UniversalDividend != nil {
		fmt.Fprintf(&w, "UniversalDividend: %d\n", *b.UniversalDividend)
	}
	fmt.Fprintf(&w, "UnitBase: %d\nIssuer: %s\nIssuersFrame: %d\nIssuersFrameVar: %d\nDifferentIssuersCount: %d\n",
		b.UnitBase, b.Issuer, b.IssuersFrame, b.IssuersFrameVar, b.DifferentIssuersCount)
	if b.ParametersLine != "" {
		fmt.Fprintf(&w, "Parameters: %s\n", b.ParametersLine)
	}
	if !b.PreviousHash.IsZero() || b.Number > 0 {
		fmt.Fprintf(&w, "PreviousHash: %s\n", b.PreviousHash)
		fmt.Fprintf(&w, "PreviousIssuer: %s\n", b.PreviousIssuer)
	}
	fmt.Fprintf(&w, "MembersCount: %d\n", b.MembersCount)
	w.WriteString("Identities:")
	for _, idty := range b.Identities {
		w.WriteString("\n" + idty.CompactLine())
	}
	w.WriteString("\nJoiners:")
	for _, ms := range b.Joiners {
		w.WriteString("\n" + ms.CompactLine())
	}
	w.WriteString("\nActives:")
	for _, ms := range b.Actives {
		w.WriteString("\n" + ms.CompactLine())
	}
	w.WriteString("\nLeavers:")
	for _, ms := range b.Leavers {
		w.WriteString("\n" + ms.CompactLine())
	}
	w.WriteString("\nRevoked:")
	for _, rev := range b.Revoked {
		w.WriteString("\n" + fmt.Sprintf("%s:%s", rev.Issuer, rev.Signature))
	}
	w.WriteString("\nExcluded:")
	for _, pk := range b.Excluded {
		w.WriteString("\n" + pk.String())
	}
	w.WriteString("\nCertifications:")
	for _, cert := range b.Certifications {
		w.WriteString("\n" + fmt.Sprintf("%s:%s:%d:%s", cert.Issuer, cert.Receiver, cert.BlockNumber, cert.Signature))
	}
	w.WriteString("\nTransactions:")
	for _, tx := range b.Transactions {
		w.WriteString("\n" + tx.CompactText())
	}
	w.WriteString("\n")
	return w.String()
}

// ComputeInnerHash hashes the compact inner text
func (b *Block) ComputeInnerHash() crypto.Digest {
	return crypto.Hash([]byte(b.CompactInnerText()))
}

// SignableBytes implements Document: the issuer signs the inner hash and
// the nonce.
func (b *Block) SignableBytes() []byte {
	return []byte(fmt.Sprintf("InnerHash: %s\nNonce: %d\n", b.InnerHash, b.Nonce))
}

// CanonicalBytes implements Document
func (b *Block) CanonicalBytes() []byte {
	out := []byte(b.CompactInnerText())
	out = append(out, b.SignableBytes()...)
	out = append(out, []byte(b.Signature.String()+"\n")...)
	return out
}

// Hash computes the block hash: SHA-256 over the signed text plus the
// signature line.
func (b *Block) Hash() crypto.Digest {
	text := append(b.SignableBytes(), []byte(b.Signature.String()+"\n")...)
	return crypto.Hash(text)
}

// Verify implements Document: checks the inner hash matches the inner text
// and the issuer signature verifies.
func (b *Block) Verify() error {
	if b.ComputeInnerHash() != b.InnerHash {
		return &SignatureError{IssuerIndex: 0}
	}
	if !b.Issuer.Verify(b.SignableBytes(), b.Signature) {
		return &SignatureError{IssuerIndex: 0}
	}
	return nil
}

// Sign recomputes the inner hash and signs with the issuer's secrets
func (b *Block) Sign(secrets *crypto.SignatureSecrets) {
	b.InnerHash = b.ComputeInnerHash()
	b.Signature = secrets.Sign(b.SignableBytes())
}

// ParseBlock parses the canonical textual form of a block
func ParseBlock(buf []byte) (*Block, *ParseError) {
	r := newLineReader(buf)
	if err := r.exact("Version: 10"); err != nil {
		return nil, err
	}
	if err := r.exact("Type: Block"); err != nil {
		return nil, err
	}
	return parseBlockBody(r)
}

func parseBlockBody(r *lineReader) (*Block, *ParseError) {
	var b Block
	var err *ParseError

	currency, err := r.field("Currency")
	if err != nil {
		return nil, err
	}
	b.CurrencyName = basics.CurrencyName(currency)

	if b.Number, err = blockNumberField(r, "Number"); err != nil {
		return nil, err
	}
	pow, err := uintField(r, "PoWMin")
	if err != nil {
		return nil, err
	}
	b.PoWMin = uint32(pow)
	if b.Time, err = uintField(r, "Time"); err != nil {
		return nil, err
	}
	if b.MedianTime, err = uintField(r, "MedianTime"); err != nil {
		return nil, err
	}

	if line, ok := r.peekLine(); ok && strings.HasPrefix(line, "UniversalDividend: ") {
		ud, err := intField(r, "UniversalDividend")
		if err != nil {
			return nil, err
		}
		b.UniversalDividend = &ud
	}
	base, err := uintField(r, "UnitBase")
	if err != nil {
		return nil, err
	}
	if base > 255 {
		return nil, r.errExpected("unit base")
	}
	b.UnitBase = uint8(base)
	if b.Issuer, err = r.pubkeyField("Issuer"); err != nil {
		return nil, err
	}
	if b.IssuersFrame, err = uintField(r, "IssuersFrame"); err != nil {
		return nil, err
	}
	if b.IssuersFrameVar, err = intField(r, "IssuersFrameVar"); err != nil {
		return nil, err
	}
	if b.DifferentIssuersCount, err = uintField(r, "DifferentIssuersCount"); err != nil {
		return nil, err
	}

	if line, ok := r.peekLine(); ok && strings.HasPrefix(line, "Parameters: ") {
		params, err := r.field("Parameters")
		if err != nil {
			return nil, err
		}
		b.ParametersLine = params
	}
	if line, ok := r.peekLine(); ok && strings.HasPrefix(line, "PreviousHash: ") {
		pos := r.off
		prev, err := r.field("PreviousHash")
		if err != nil {
			return nil, err
		}
		h, herr := crypto.DigestFromString(prev)
		if herr != nil {
			return nil, &ParseError{Position: pos, Expected: []string{"hex digest"}}
		}
		b.PreviousHash = h
		if b.PreviousIssuer, err = r.pubkeyField("PreviousIssuer"); err != nil {
			return nil, err
		}
	}
	if b.MembersCount, err = uintField(r, "MembersCount"); err != nil {
		return nil, err
	}

	if err = r.exact("Identities:"); err != nil {
		return nil, err
	}
	for !nextIsSection(r, "Joiners:") {
		pos := r.off
		line, lerr := r.line()
		if lerr != nil {
			return nil, lerr
		}
		idty, perr := ParseCompactIdentity(b.CurrencyName, line, pos)
		if perr != nil {
			return nil, perr
		}
		b.Identities = append(b.Identities, idty)
	}
	if err = r.exact("Joiners:"); err != nil {
		return nil, err
	}
	joiners, err := parseCompactMemberships(r, b.CurrencyName, "Actives:")
	if err != nil {
		return nil, err
	}
	b.Joiners = joiners
	if err = r.exact("Actives:"); err != nil {
		return nil, err
	}
	actives, err := parseCompactMemberships(r, b.CurrencyName, "Leavers:")
	if err != nil {
		return nil, err
	}
	b.Actives = actives
	if err = r.exact("Leavers:"); err != nil {
		return nil, err
	}
	leavers, err := parseCompactMemberships(r, b.CurrencyName, "Revoked:")
	if err != nil {
		return nil, err
	}
	b.Leavers = leavers
	if err = r.exact("Revoked:"); err != nil {
		return nil, err
	}
	for !nextIsSection(r, "Excluded:") {
		pos := r.off
		line, lerr := r.line()
		if lerr != nil {
			return nil, lerr
		}
		rev, perr := ParseCompactRevocation(line, pos)
		if perr != nil {
			return nil, perr
		}
		b.Revoked = append(b.Revoked, rev)
	}
	if err = r.exact("Excluded:"); err != nil {
		return nil, err
	}
	for !nextIsSection(r, "Certifications:") {
		pos := r.off
		line, lerr := r.line()
		if lerr != nil {
			return nil, lerr
		}
		pk, perr := crypto.PublicKeyFromBase58(line)
		if perr != nil {
			return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
		}
		b.Excluded = append(b.Excluded, pk)
	}
	if err = r.exact("Certifications:"); err != nil {
		return nil, err
	}
	for !nextIsSection(r, "Transactions:") {
		pos := r.off
		line, lerr := r.line()
		if lerr != nil {
			return nil, lerr
		}
		cert, perr := ParseCompactCertification(line, pos)
		if perr != nil {
			return nil, perr
		}
		b.Certifications = append(b.Certifications, cert)
	}
	if err = r.exact("Transactions:"); err != nil {
		return nil, err
	}
	for !nextIsSection(r, "InnerHash: ") {
		tx, terr := parseCompactTransaction(b.CurrencyName, r)
		if terr != nil {
			return nil, terr
		}
		b.Transactions = append(b.Transactions, tx)
	}

	pos := r.off
	inner, err := r.field("InnerHash")
	if err != nil {
		return nil, err
	}
	h, herr := crypto.DigestFromString(inner)
	if herr != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"hex digest"}}
	}
	b.InnerHash = h
	if b.Nonce, err = uintField(r, "Nonce"); err != nil {
		return nil, err
	}
	if b.Signature, err = r.signatureLine(); err != nil {
		return nil, err
	}
	if err = r.end(); err != nil {
		return nil, err
	}
	return &b, nil
}

func parseCompactMemberships(r *lineReader, currency basics.CurrencyName, stop string) ([]*Membership, *ParseError) {
	var out []*Membership
	kind := MembershipIn
	if stop == "Revoked:" {
		kind = MembershipOut
	}
	for !nextIsSection(r, stop) {
		pos := r.off
		line, lerr := r.line()
		if lerr != nil {
			return nil, lerr
		}
		ms, perr := ParseCompactMembership(currency, kind, line, pos)
		if perr != nil {
			return nil, perr
		}
		out = append(out, ms)
	}
	return out, nil
}

func nextIsSection(r *lineReader, section string) bool {
	line, ok := r.peekLine()
	if !ok {
		return true
	}
	return line == strings.TrimSuffix(section, " ") || strings.HasPrefix(line, section)
}

func uintField(r *lineReader, key string) (uint64, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return 0, err
	}
	v, verr := basics.ParseUint64(s)
	if verr != nil {
		return 0, &ParseError{Position: pos, Expected: []string{"unsigned integer"}}
	}
	return v, nil
}

func intField(r *lineReader, key string) (int64, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return 0, err
	}
	v, verr := basics.ParseInt64(s)
	if verr != nil {
		return 0, &ParseError{Position: pos, Expected: []string{"integer"}}
	}
	return v, nil
}

func blockNumberField(r *lineReader, key string) (basics.BlockNumber, *ParseError) {
	pos := r.off
	s, err := r.field(key)
	if err != nil {
		return 0, err
	}
	v, verr := basics.ParseUint32(s)
	if verr != nil {
		return 0, &ParseError{Position: pos, Expected: []string{"block number"}}
	}
	return basics.BlockNumber(v), nil
}
