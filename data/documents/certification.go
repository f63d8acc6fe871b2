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

// Certification is a statement of trust from a certifier towards a
// certified identity. The certified identity's own signature is embedded so
// the certification is self-contained.
type Certification struct {
	CurrencyName  basics.CurrencyName
	Issuer        crypto.PublicKey
	IdtyIssuer    crypto.PublicKey
	IdtyUniqueID  basics.UID
	IdtyTimestamp basics.Blockstamp
	IdtySignature crypto.Signature
	CertTimestamp basics.Blockstamp
	Signature     crypto.Signature
}

// Type implements Document
func (d *Certification) Type() Type { return TypeCertification }

// Currency implements Document
func (d *Certification) Currency() basics.CurrencyName { return d.CurrencyName }

// SignableBytes implements Document
func (d *Certification) SignableBytes() []byte {
	return []byte(fmt.Sprintf(
		"Version: 10\nType: Certification\nCurrency: %s\nIssuer: %s\nIdtyIssuer: %s\nIdtyUniqueID: %s\nIdtyTimestamp: %s\nIdtySignature: %s\nCertTimestamp: %s\n",
		d.CurrencyName, d.Issuer, d.IdtyIssuer, d.IdtyUniqueID, d.IdtyTimestamp, d.IdtySignature, d.CertTimestamp))
}

// CanonicalBytes implements Document
func (d *Certification) CanonicalBytes() []byte {
	return append(d.SignableBytes(), []byte(d.Signature.String()+"\n")...)
}

// Verify implements Document
func (d *Certification) Verify() error {
	if !d.Issuer.Verify(d.SignableBytes(), d.Signature) {
		return &SignatureError{IssuerIndex: 0}
	}
	return nil
}

// Sign sets the signature from the certifier's secrets
func (d *Certification) Sign(secrets *crypto.SignatureSecrets) {
	d.Signature = secrets.Sign(d.SignableBytes())
}

// CertifiedIdentity reconstructs the identity document this certification
// refers to, so its embedded signature can be verified independently.
func (d *Certification) CertifiedIdentity() *Identity {
	return &Identity{
		CurrencyName: d.CurrencyName,
		Issuer:       d.IdtyIssuer,
		UniqueID:     d.IdtyUniqueID,
		Timestamp:    d.IdtyTimestamp,
		Signature:    d.IdtySignature,
	}
}

// CompactLine emits the in-block form: FROM:TO:BLOCK_NUMBER:SIGNATURE
func (d *Certification) CompactLine() string {
	return fmt.Sprintf("%s:%s:%d:%s", d.Issuer, d.IdtyIssuer, d.CertTimestamp.Number, d.Signature)
}

// ParseCertification parses the textual form of a certification document
func ParseCertification(buf []byte) (*Certification, *ParseError) {
	r := newLineReader(buf)
	if err := r.exact("Version: 10"); err != nil {
		return nil, err
	}
	if err := r.exact("Type: Certification"); err != nil {
		return nil, err
	}
	return parseCertificationBody(r)
}

func parseCertificationBody(r *lineReader) (*Certification, *ParseError) {
	var d Certification
	var err *ParseError

	currency, err := r.field("Currency")
	if err != nil {
		return nil, err
	}
	d.CurrencyName = basics.CurrencyName(currency)
	if d.Issuer, err = r.pubkeyField("Issuer"); err != nil {
		return nil, err
	}
	if d.IdtyIssuer, err = r.pubkeyField("IdtyIssuer"); err != nil {
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
	if d.CertTimestamp, err = r.blockstampField("CertTimestamp"); err != nil {
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

// CompactCertification is the in-block certification form. It carries only
// the certified block number; the engine resolves the full identity from
// the indices.
type CompactCertification struct {
	Issuer      crypto.PublicKey
	Receiver    crypto.PublicKey
	BlockNumber basics.BlockNumber
	Signature   crypto.Signature
}

// ParseCompactCertification parses the in-block form FROM:TO:BLOCK:SIG
func ParseCompactCertification(line string, pos int) (*CompactCertification, *ParseError) {
	parts := splitN(line, ':', 4)
	if parts == nil {
		return nil, &ParseError{Position: pos, Expected: []string{"compact certification"}}
	}
	issuer, err := crypto.PublicKeyFromBase58(parts[0])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
	}
	receiver, err := crypto.PublicKeyFromBase58(parts[1])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base58 public key"}}
	}
	num, nerr := basics.ParseUint32(parts[2])
	if nerr != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"block number"}}
	}
	sig, err := crypto.SignatureFromBase64(parts[3])
	if err != nil {
		return nil, &ParseError{Position: pos, Expected: []string{"base64 signature"}}
	}
	return &CompactCertification{
		Issuer:      issuer,
		Receiver:    receiver,
		BlockNumber: basics.BlockNumber(num),
		Signature:   sig,
	}, nil
}
