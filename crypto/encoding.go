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

package crypto

import (
	"encoding/base64"
	"errors"

	"github.com/mr-tron/base58"
)

var (
	// ErrBadPublicKey is returned for a malformed Base58 public key
	ErrBadPublicKey = errors.New("crypto: bad base58 public key")
	// ErrBadSignature is returned for a malformed Base64 signature
	ErrBadSignature = errors.New("crypto: bad base64 signature")
)

// Base58Encode encodes bytes with the bitcoin Base58 alphabet
// (no '0', 'O', 'I' or 'l')
func Base58Encode(data []byte) string {
	return base58.Encode(data)
}

// Base58Decode decodes a strict Base58 string
func Base58Decode(s string) ([]byte, error) {
	return base58.Decode(s)
}

// Base64Encode encodes bytes with standard padded Base64
func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64Decode decodes a standard padded Base64 string
func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// PublicKeyFromBase58 parses a Base58 public key of 43 or 44 characters.
// Shorter encodings exist for keys with leading zero bytes; the protocol
// restricts document pubkeys to the 43-44 character range.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	if len(s) < 43 || len(s) > 44 {
		return pk, ErrBadPublicKey
	}
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != len(pk) {
		return pk, ErrBadPublicKey
	}
	copy(pk[:], raw)
	return pk, nil
}

// SignatureFromBase64 parses a padded Base64 signature of 88 characters
func SignatureFromBase64(s string) (Signature, error) {
	var sig Signature
	if len(s) != 88 {
		return sig, ErrBadSignature
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != len(sig) {
		return sig, ErrBadSignature
	}
	copy(sig[:], raw)
	return sig, nil
}
