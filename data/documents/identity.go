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

// Identity binds a user id to a pubkey at a given blockstamp
type Identity struct {
	CurrencyName basics.CurrencyName
	Issuer       crypto.PublicKey
	UniqueID     basics.UID
	Timestamp    basics.Blockstamp
	Signature    crypto.Signature
}

// Type implements Document
func (d *Identity) Type() Type { return TypeIdentity }

// Currency implements Document
func (d *Identity) Currency() basics.CurrencyName { return d.CurrencyName }

// SignableBytes implements Document
func (d *Identity) SignableBytes() []byte {
	return []byte(fmt.Sprintf(
		"Version: 10\nType: Identity\nCurrency: %s\nIssuer: %s\nUniqueID: %s\nTimestamp: %s\n",
		d.CurrencyName, d.Issuer, d.UniqueID, d.Timestamp))
}

// CanonicalBytes implements Document
func (d *Identity) CanonicalBytes() []byte {
	return append(d.SignableBytes(), []byte(d.Signature.String()+"\n")...)
}

// Verify implements Document
func (d *Identity) Verify() error {
	if !d.Issuer.Verify(d.SignableBytes(), d.Signature) {
		return &SignatureError{IssuerIndex: 0}
	}
	return nil
}

// Sign sets the signature from the issuer's secrets
func (d *Identity) Sign(secrets *crypto.SignatureSecrets) {
	d.Signature = secrets.Sign(d.SignableBytes())
}

// CompactLine emits the in-block form: PUBKEY:SIGNATURE:BLOCKSTAMP:USERID
func (d *Identity) CompactLine() string {
	return fmt.Sprintf("%s:%s:%s:%s", d.Issuer, d.Signature, d.Timestamp, d.UniqueID)
}

// ParseIdentity parses the textual form of an identity document
func ParseIdentity(buf []byte) (*Identity, *ParseError) {
	r := newLineReader(buf)
	if err := r.exact("Version: 10"); err != nil {
		return nil, err
	}
	if err := r.exact("Type: Identity"); err != nil {
		return nil, err
	}
	return parseIdentityBody(r)
}

func parseIdentityBody(r *lineReader) (*Identity, *ParseError) {
	var d Identity
	var err *ParseError

	currency, err := r.field("Currency")
	if err != nil {
		return nil, err
	}
	d.CurrencyName = basics.CurrencyName(currency)
	if d.Issuer, err = r.pubkeyField("Issuer"); err != nil {
		return nil, err
	}
	if d.UniqueID, err = r.uidField("UniqueID"); err != nil {
		return nil, err
	}
	if d.Timestamp, err = r.blockstampField("Timestamp"); err != nil {
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

// ParseCompactIdentity parses the in-block identity form
func ParseCompactIdentity(currency basics.CurrencyName, line string, pos int) (*Identity, *ParseError) {
	parts := splitN(line, ':', 4)
	if parts == nil {
		return nil, &ParseError{Position: pos, Expected: []string{"compact identity"}}
	}
	issuer, err := crypto.PublicKeyFromBase58(parts[0])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
	}
	sig, err := crypto.SignatureFromBase64(parts[1])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base64 signature"}}
	}
	stamp, err := basics.ParseBlockstamp(parts[2])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"blockstamp"}}
	}
	uid := basics.UID(parts[3])
	if !uid.Valid() {
		return nil, &ParseError{Position: pos, Expected: []string{"user id"}}
	}
	return &Identity{
		CurrencyName: currency,
		Issuer:       issuer,
		UniqueID:     uid,
		Timestamp:    stamp,
		Signature:    sig,
	}, nil
}

// splitN splits s on sep into exactly n parts, or nil
func splitN(s string, sep byte, n int) []string {
	parts := make([]string, 0, n)
	start := 0
	for i := 0; i < len(s) && len(parts) < n-1; i++ {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	if len(parts) != n {
		return nil
	}
	return parts
}
