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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	var seed Seed
	copy(seed[:], []byte("this is a test seed for signing."))
	s := GenerateSignatureSecrets(seed)

	msg := []byte("Version: 10\nType: Identity\n")
	sig := s.Sign(msg)
	require.True(t, s.SignatureVerifier.Verify(msg, sig))

	// Tampered message must not verify
	bad := append([]byte(nil), msg...)
	bad[0] ^= 1
	require.False(t, s.SignatureVerifier.Verify(bad, sig))

	// Tampered signature must not verify
	sig[0] ^= 1
	require.False(t, s.SignatureVerifier.Verify(msg, sig))
}

func TestDigestHexRoundtrip(t *testing.T) {
	d := Hash([]byte{})
	// sha256 of the empty string
	require.Equal(t, "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", d.String())

	parsed, err := DigestFromString(d.String())
	require.NoError(t, err)
	require.Equal(t, d, parsed)

	_, err = DigestFromString("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	require.ErrorIs(t, err, ErrBadDigest)
	_, err = DigestFromString("E3B0")
	require.ErrorIs(t, err, ErrBadDigest)
}

func TestLeadingZeros(t *testing.T) {
	var d Digest
	require.Equal(t, 64, d.LeadingZeros())

	d[0] = 0x0F
	require.Equal(t, 1, d.LeadingZeros())

	d[0] = 0xF0
	require.Equal(t, 0, d.LeadingZeros())
}

func TestPublicKeyBase58Bounds(t *testing.T) {
	var seed Seed
	for i := range seed {
		seed[i] = byte(i)
	}
	s := GenerateSignatureSecrets(seed)
	enc := s.SignatureVerifier.String()
	require.GreaterOrEqual(t, len(enc), 43)
	require.LessOrEqual(t, len(enc), 44)

	pk, err := PublicKeyFromBase58(enc)
	require.NoError(t, err)
	require.Equal(t, s.SignatureVerifier, pk)

	// forbidden alphabet characters
	_, err = PublicKeyFromBase58("O" + enc[1:])
	require.ErrorIs(t, err, ErrBadPublicKey)
	// too short
	_, err = PublicKeyFromBase58("abc")
	require.ErrorIs(t, err, ErrBadPublicKey)
}

func TestSignatureBase64Padding(t *testing.T) {
	var sig Signature
	for i := range sig {
		sig[i] = byte(i * 3)
	}
	enc := sig.String()
	require.Len(t, enc, 88)

	parsed, err := SignatureFromBase64(enc)
	require.NoError(t, err)
	require.Equal(t, sig, parsed)

	_, err = SignatureFromBase64(enc[:87])
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestSecretsFromPassphrase(t *testing.T) {
	a, err := SecretsFromPassphrase("salt", "password")
	require.NoError(t, err)
	b, err := SecretsFromPassphrase("salt", "password")
	require.NoError(t, err)
	// derivation is deterministic
	require.Equal(t, a.SignatureVerifier, b.SignatureVerifier)

	c, err := SecretsFromPassphrase("salt2", "password")
	require.NoError(t, err)
	require.NotEqual(t, a.SignatureVerifier, c.SignatureVerifier)

	msg := []byte("head message")
	require.True(t, a.SignatureVerifier.Verify(msg, b.Sign(msg)))
}
