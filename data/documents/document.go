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

// Package documents implements the DUBP user document codec: the textual
// grammars of identities, memberships, certifications, revocations,
// transactions and blocks, their canonical byte emission, and their
// signature model.
//
// Signatures bind the exact byte sequence of a document. The codec never
// normalizes whitespace or reorders lines: parsing then re-emitting a valid
// document reproduces the input bytes.
package documents

import (
	"fmt"

	"github.com/dunitrust/dunitrust/data/basics"
)

// DocumentVersion is the only DUBP user document version this node accepts
const DocumentVersion = 10

// Type discriminates document variants, as carried on the "Type:" line
type Type string

// Document types, in the spelling of the "Type:" line
const (
	TypeIdentity      Type = "Identity"
	TypeMembership    Type = "Membership"
	TypeCertification Type = "Certification"
	TypeRevocation    Type = "Revocation"
	TypeTransaction   Type = "Transaction"
	TypeBlock         Type = "Block"
)

// Document is a parsed DUBP user document. Implementations hold only the
// parsed fields and do not retain the bytes they were parsed from;
// CanonicalBytes re-emits the document from those fields.
type Document interface {
	// Type returns the document variant
	Type() Type

	// Currency returns the currency the document belongs to
	Currency() basics.CurrencyName

	// CanonicalBytes returns the full textual form including trailing
	// signature lines, exactly as signed and transmitted.
	CanonicalBytes() []byte

	// SignableBytes returns the byte sequence covered by the signatures:
	// the document with the trailing signature line(s) stripped.
	SignableBytes() []byte

	// Verify checks every declared signature against its issuer over
	// SignableBytes. It returns nil or a *SignatureError naming the first
	// failing issuer index.
	Verify() error
}

// A ParseError reports where parsing stopped and which tokens could have
// continued the document.
type ParseError struct {
	// Position is the byte offset of the failure
	Position int

	// Expected lists the token(s) that would have been accepted
	Expected []string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("documents: parse error at byte %d: expected %v", e.Position, e.Expected)
}

// A SignatureError names the issuer whose signature failed to verify
type SignatureError struct {
	// IssuerIndex is the zero-based index of the failing issuer
	IssuerIndex int
}

// Error implements the error interface
func (e *SignatureError) Error() string {
	return fmt.Sprintf("documents: invalid signature for issuer %d", e.IssuerIndex)
}
