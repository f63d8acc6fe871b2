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

// Revocation permanently cancels an identity. It embeds the revoked
// identity's own signature, proving the revoker holds the identity key.
type Revocation struct {
	CurrencyName  basics.CurrencyName
	Issuer        crypto.PublicKey
	IdtyUniqueID  basics.UID
	IdtyTimestamp basics.Blockstamp
	IdtySignature crypto.Signature
	Signature     crypto.Signature
}

// Type implements Document
func (d *Revocation) Type() Type { return TypeRevocation }

// Currency implements Document
func (d *Revocation) Currency() basics.CurrencyName { return d.CurrencyName }

// SignableBytes implements Document
func (d *Revocation) SignableBytes() []byte {
	return []byte(fmt.Sprintf(
		"Version: 10\nType: Revocation\nCurrency: %s\nIssuer: %s\nIdtyUniqueID: %s\nIdtyTimestamp: %s\nIdtySignature: %s\n",
		d.CurrencyName, d.Issuer, d.IdtyUniqueID, d.IdtyTimestamp, d.IdtySignature))
}

// CanonicalBytes implements Document
func (d *Revocation) CanonicalBytes() []byte {
	return append(d.SignableBytes(), []byte(d.Signature.String()+"\n")...)
}

// Verify implements Document
func (d *Revocation) Verify() error {
	if !d.Issuer.Verify(d.SignableBytes(), d.Signature) {
		return &SignatureError{IssuerIndex: 0}
	}
	return nil
}

// Sign sets the signature from the issuer's secrets
func (d *Revocation) Sign(secrets *crypto.SignatureSecrets) {
	d.Signature = secrets.Sign(d.SignableBytes())
}

// CompactLine emits the in-block form: PUBKEY:SIGNATURE
func (d *Revocation) CompactLine() string {
	return fmt.Sprintf("%s:%s", d.Issuer, d.Signature)
}

// ParseRevocation parses the textual form of a revocation document
func ParseRevocation(buf []byte) (*Revocation, *ParseError) {
	r := newLineReader(buf)
	if err := r.exact("Version: 10"); err != nil {
		return nil, err
	}
	if err := r.exact("Type: Revocation"); err != nil {
		return nil, err
	}
	return parseRevocationBody(r)
}

func parseRevocationBody(r *lineReader) (*Revocation, *ParseError) {
	var d Revocation
	var err *ParseError

	currency, err := r.field("Currency")
	if err != nil {
		return nil, err
	}
	d.CurrencyName = basics.CurrencyName(currency)
	if d.Issuer, err = r.pubkeyField("Issuer"); err != nil {
		return nil, err
	}
	if d.IdtyUniqueID, err = r.uidField("IdtyUniqueID"); err != nil {
		return nil, err
	}
	if d.IdtyTimestamp, err = r.blockstampField("IdtyTimestamp"); err != nil {
		return nil, err
	}
	if d.IdtySignature, err = r.signatureField("IdtySignature"); err != nil {
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

// CompactRevocation is the in-block revocation form
type CompactRevocation struct {
	Issuer    crypto.PublicKey
	Signature crypto.Signature
}

// ParseCompactRevocation parses the in-block form PUBKEY:SIGNATURE
func ParseCompactRevocation(line string, pos int) (*CompactRevocation, *ParseError) {
	parts := splitN(line, ':', 2)
	if parts == nil {
		return nil, &ParseError{Position: pos, Expected: []string{"compact revocation"}}
	}
	issuer, err := crypto.PublicKeyFromBase58(parts[0])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
	}
	sig, err := crypto.SignatureFromBase64(parts[1])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base64 signature"}}
	}
	return &CompactRevocation{Issuer: issuer, Signature: sig}, nil
}
