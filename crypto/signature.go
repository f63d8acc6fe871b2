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

// Package crypto provides the signature and hashing primitives consumed by
// the DUBP document codec and the blockchain engine: Ed25519 keys signing
// raw document bytes, SHA-256 digests, and the strict Base58/Base64
// encodings used on the wire.
package crypto

import (
	"crypto/ed25519"
	"errors"

	"github.com/hdevalence/ed25519consensus"
)

// A PublicKey identifies an issuer. It is an Ed25519 public key,
// serialized as Base58 in documents.
type PublicKey [32]byte

// A Seed is the 32-byte secret from which an Ed25519 keypair is derived.
type Seed [32]byte

// A Signature is a raw Ed25519 signature over the signable bytes of a
// document, serialized as padded Base64.
type Signature [64]byte

// SignatureSecrets are used by an entity to produce unforgeable signatures over
// a message
type SignatureSecrets struct {
	SignatureVerifier PublicKey

	sk ed25519.PrivateKey
}

// ErrBadSeed is returned when key material has the wrong length
var ErrBadSeed = errors.New("crypto: bad seed length")

// GenerateSignatureSecrets creates SignatureSecrets from a given seed
func GenerateSignatureSecrets(seed Seed) *SignatureSecrets {
	sk := ed25519.NewKeyFromSeed(seed[:])
	var pk PublicKey
	copy(pk[:], sk.Public().(ed25519.PublicKey))
	return &SignatureSecrets{
		SignatureVerifier: pk,
		sk:                sk,
	}
}

// Sign produces a cryptographic Signature of a message using the private key
func (s *SignatureSecrets) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(s.sk, message))
	return sig
}

// Verify checks that sig is a valid signature of message under the public key.
// Verification runs in constant time with respect to the secret material and
// rejects non-canonical signatures.
func (v PublicKey) Verify(message []byte, sig Signature) bool {
	return ed25519consensus.Verify(v[:], message, sig[:])
}

// IsZero returns true for the all-zero public key
func (v PublicKey) IsZero() bool {
	return v == PublicKey{}
}

// String returns the Base58 form of the public key
func (v PublicKey) String() string {
	return Base58Encode(v[:])
}

// String returns the padded Base64 form of the signature
func (s Signature) String() string {
	return Base64Encode(s[:])
}
