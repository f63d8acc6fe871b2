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

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
)

// MembershipKind is the direction of a membership document
type MembershipKind string

// Membership directions, as carried on the "Membership:" line
const (
	MembershipIn  MembershipKind = "IN"
	MembershipOut MembershipKind = "OUT"
)

// Membership asks to join (IN) or leave (OUT) the web of trust
type Membership struct {
	CurrencyName basics.CurrencyName
	Issuer       crypto.PublicKey
	Block        basics.Blockstamp
	Kind         MembershipKind
	UserID       basics.UID
	CertTS       basics.Blockstamp
	Signature    crypto.Signature
}

// Type implements Document
func (d *Membership) Type() Type { return TypeMembership }

// Currency implements Document
func (d *Membership) Currency() basics.CurrencyName { return d.CurrencyName }

// SignableBytes implements Document
func (d *Membership) SignableBytes() []byte {
	return []byte(fmt.Sprintf(
		"Version: 10\nType: Membership\nCurrency: %s\nIssuer: %s\nBlock: %s\nMembership: %s\nUserID: %s\nCertTS: %s\n",
		d.CurrencyName, d.Issuer, d.Block, d.Kind, d.UserID, d.CertTS))
}

// CanonicalBytes implements Document
func (d *Membership) CanonicalBytes() []byte {
	return append(d.SignableBytes(), []byte(d.Signature.String()+"\n")...)
}

// Verify implements Document
func (d *Membership) Verify() error {
	if !d.Issuer.Verify(d.SignableBytes(), d.Signature) {
		return &SignatureError{IssuerIndex: 0}
	}
	return nil
}

// Sign sets the signature from the issuer's secrets
func (d *Membership) Sign(secrets *crypto.SignatureSecrets) {
	d.Signature = secrets.Sign(d.SignableBytes())
}

// CompactLine emits the in-block form:
// PUBKEY:SIGNATURE:M_BLOCKSTAMP:I_BLOCKSTAMP:USERID
func (d *Membership) CompactLine() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", d.Issuer, d.Signature, d.Block, d.CertTS, d.UserID)
}

// ParseMembership parses the textual form of a membership document
func ParseMembership(buf []byte) (*Membership, *ParseError) {
	r := newLineReader(buf)
	if err := r.exact("Version: 10"); err != nil {
		return nil, err
	}
	if err := r.exact("Type: Membership"); err != nil {
		return nil, err
	}
	return parseMembershipBody(r)
}

func parseMembershipBody(r *lineReader) (*Membership, *ParseError) {
	var d Membership
	var err *ParseError

	currency, err := r.field("Currency")
	if err != nil {
		return nil, err
	}
	d.CurrencyName = basics.CurrencyName(currency)
	if d.Issuer, err = r.pubkeyField("Issuer"); err != nil {
		return nil, err
	}
	if d.Block, err = r.blockstampField("Block"); err != nil {
		return nil, err
	}
	pos := r.off
	kind, err := r.field("Membership")
	if err != nil {
		return nil, err
	}
	switch MembershipKind(kind) {
	case MembershipIn, MembershipOut:
		d.Kind = MembershipKind(kind)
	default:
		return nil, &ParseError{Position: pos, Expected: []string{"IN", "OUT"}}
	}
	if d.UserID, err = r.uidField("UserID"); err != nil {
		return nil, err
	}
	if d.CertTS, err = r.blockstampField("CertTS"); err != nil {
		return nil, err
	}
	if d.Signature, err = r.signatureLine(); err != nil {
		return nil, err
	}
	if err = r.end(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseCompactMembership parses the in-block joiner/active/leaver form
func ParseCompactMembership(currency basics.CurrencyName, kind MembershipKind, line string, pos int) (*Membership, *ParseError) {
	parts := splitN(line, ':', 5)
	if parts == nil {
		return nil, &ParseError{Position: pos, Expected: []string{"compact membership"}}
	}
	issuer, err := crypto.PublicKeyFromBase58(parts[0])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
	}
	sig, err := crypto.SignatureFromBase64(parts[1])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base64 signature"}}
	}
	mStamp, err := basics.ParseBlockstamp(parts[2])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"blockstamp"}}
	}
	iStamp, err := basics.ParseBlockstamp(parts[3])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"blockstamp"}}
	}
	uid := basics.UID(parts[4])
	if !uid.Valid() {
		return nil, &ParseError{Position: pos, Expected: []string{"user id"}}
	}
	return &Membership{
		CurrencyName: currency,
		Issuer:       issuer,
		Block:        mStamp,
		Kind:         kind,
		UserID:       uid,
		CertTS:       iStamp,
		Signature:    sig,
	}, nil
}
