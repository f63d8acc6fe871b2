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
	"strings"
	"testing"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testSecrets(t testing.TB, tag byte) *crypto.SignatureSecrets {
	t.Helper()
	var seed crypto.Seed
	seed[0] = tag
	copy(seed[1:], []byte("documents test seed material..."))
	return crypto.GenerateSignatureSecrets(seed)
}

func zeroStamp() basics.Blockstamp {
	return basics.Blockstamp{Number: 0, Hash: crypto.Hash(nil)}
}

func TestIdentityRoundtrip(t *testing.T) {
	s := testSecrets(t, 1)
	d := &Identity{
		CurrencyName: "g1",
		Issuer:       s.SignatureVerifier,
		UniqueID:     "alice",
		Timestamp:    zeroStamp(),
	}
	d.Sign(s)
	require.NoError(t, d.Verify())

	raw := d.CanonicalBytes()
	parsed, perr := ParseIdentity(raw)
	require.Nil(t, perr)
	require.Equal(t, d, parsed)
	require.Equal(t, raw, parsed.CanonicalBytes())
	require.NoError(t, parsed.Verify())

	// the signable bytes are the document minus the trailing signature line
	require.Equal(t, string(raw[:len(raw)-89]), string(parsed.SignableBytes()))
}

func TestIdentityLiteralLayout(t *testing.T) {
	s := testSecrets(t, 2)
	d := &Identity{
		CurrencyName: "g1",
		Issuer:       s.SignatureVerifier,
		UniqueID:     "alice",
		Timestamp:    zeroStamp(),
	}
	d.Sign(s)

	text := string(d.CanonicalBytes())
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	require.Len(t, lines, 7)
	require.Equal(t, "Version: 10", lines[0])
	require.Equal(t, "Type: Identity", lines[1])
	require.Equal(t, "Currency: g1", lines[2])
	require.True(t, strings.HasPrefix(lines[3], "Issuer: "))
	require.Equal(t, "UniqueID: alice", lines[4])
	require.Equal(t, "Timestamp: 0-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", lines[5])
	require.Len(t, lines[6], 88)
}

func TestParseDocumentDispatch(t *testing.T) {
	s := testSecrets(t, 3)
	idty := &Identity{CurrencyName: "g1", Issuer: s.SignatureVerifier, UniqueID: "bob", Timestamp: zeroStamp()}
	idty.Sign(s)

	doc, perr := ParseDocument(idty.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, TypeIdentity, doc.Type())

	ms := &Membership{
		CurrencyName: "g1",
		Issuer:       s.SignatureVerifier,
		Block:        zeroStamp(),
		Kind:         MembershipIn,
		UserID:       "bob",
		CertTS:       zeroStamp(),
	}
	ms.Sign(s)
	doc, perr = ParseDocument(ms.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, TypeMembership, doc.Type())

	_, perr = ParseDocument([]byte("Version: 10\nType: Nonsense\nCurrency: g1\n"))
	require.NotNil(t, perr)
	require.Contains(t, perr.Expected, "document type")

	_, perr = ParseDocument([]byte("Version: 11\nType: Identity\n"))
	require.NotNil(t, perr)
	require.Zero(t, perr.Position)
}

func TestMembershipRoundtrip(t *testing.T) {
	s := testSecrets(t, 4)
	for _, kind := range []MembershipKind{MembershipIn, MembershipOut} {
		d := &Membership{
			CurrencyName: "g1-test",
			Issuer:       s.SignatureVerifier,
			Block:        zeroStamp(),
			Kind:         kind,
			UserID:       "carol",
			CertTS:       zeroStamp(),
		}
		d.Sign(s)
		require.NoError(t, d.Verify())

		parsed, perr := ParseMembership(d.CanonicalBytes())
		require.Nil(t, perr)
		require.Equal(t, d, parsed)
	}
}

func TestCertificationRoundtrip(t *testing.T) {
	idtySecrets := testSecrets(t, 5)
	idty := &Identity{
		CurrencyName: "g1",
		Issuer:       idtySecrets.SignatureVerifier,
		UniqueID:     "dave",
		Timestamp:    zeroStamp(),
	}
	idty.Sign(idtySecrets)

	certSecrets := testSecrets(t, 6)
	cert := &Certification{
		CurrencyName:  "g1",
		Issuer:        certSecrets.SignatureVerifier,
		IdtyIssuer:    idty.Issuer,
		IdtyUniqueID:  idty.UniqueID,
		IdtyTimestamp: idty.Timestamp,
		IdtySignature: idty.Signature,
		CertTimestamp: zeroStamp(),
	}
	cert.Sign(certSecrets)
	require.NoError(t, cert.Verify())

	parsed, perr := ParseCertification(cert.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, cert, parsed)

	// the embedded identity signature verifies on its own
	require.NoError(t, parsed.CertifiedIdentity().Verify())
}

func TestRevocationRoundtrip(t *testing.T) {
	s := testSecrets(t, 7)
	idty := &Identity{CurrencyName: "g1", Issuer: s.SignatureVerifier, UniqueID: "eve", Timestamp: zeroStamp()}
	idty.Sign(s)

	rev := &Revocation{
		CurrencyName:  "g1",
		Issuer:        s.SignatureVerifier,
		IdtyUniqueID:  idty.UniqueID,
		IdtyTimestamp: idty.Timestamp,
		IdtySignature: idty.Signature,
	}
	rev.Sign(s)
	require.NoError(t, rev.Verify())

	parsed, perr := ParseRevocation(rev.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, rev, parsed)
}

func TestVerifyRejectsTamperedDocument(t *testing.T) {
	s := testSecrets(t, 8)
	d := &Identity{CurrencyName: "g1", Issuer: s.SignatureVerifier, UniqueID: "mallory", Timestamp: zeroStamp()}
	d.Sign(s)

	d.UniqueID = "mallory2"
	err := d.Verify()
	var sigErr *SignatureError
	require.ErrorAs(t, err, &sigErr)
	require.Zero(t, sigErr.IssuerIndex)
}

func sampleTransaction(t testing.TB, issuers int) (*Transaction, []*crypto.SignatureSecrets) {
	t.Helper()
	secrets := make([]*crypto.SignatureSecrets, issuers)
	tx := &Transaction{
		CurrencyName: "g1",
		Blockstamp:   zeroStamp(),
		Locktime:     0,
		Comment:      "test payment",
	}
	for i := range secrets {
		secrets[i] = testSecrets(t, byte(20+i))
		tx.Issuers = append(tx.Issuers, secrets[i].SignatureVerifier)
		tx.Inputs = append(tx.Inputs, Input{
			Amount:   basics.Amount{Value: 10, Base: 0},
			Kind:     InputUD,
			UDIssuer: secrets[i].SignatureVerifier,
			UDBlock:  42,
		})
		tx.Unlocks = append(tx.Unlocks, Unlock{
			InputIndex: uint32(i),
			Proofs:     []UnlockProof{{SigIndex: i}},
		})
	}
	dest := testSecrets(t, 99).SignatureVerifier
	tx.Outputs = append(tx.Outputs, Output{
		Amount:     basics.Amount{Value: int64(10 * issuers), Base: 0},
		Conditions: &Condition{Sig: &dest},
	})
	msg := tx.SignableBytes()
	for _, s := range secrets {
		tx.Signatures = append(tx.Signatures, s.Sign(msg))
	}
	return tx, secrets
}

func TestTransactionRoundtrip(t *testing.T) {
	tx, _ := sampleTransaction(t, 1)
	require.NoError(t, tx.Verify())

	parsed, perr := ParseTransaction(tx.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, tx, parsed)
	require.Equal(t, tx.CanonicalBytes(), parsed.CanonicalBytes())
	require.Equal(t, tx.Hash(), parsed.Hash())
}

func TestTransactionManyIssuers(t *testing.T) {
	tx, _ := sampleTransaction(t, 40)
	require.NoError(t, tx.Verify())

	parsed, perr := ParseTransaction(tx.CanonicalBytes())
	require.Nil(t, perr)
	require.Len(t, parsed.Issuers, 40)
	require.Len(t, parsed.Signatures, 40)
	require.NoError(t, parsed.Verify())
}

func TestTransactionBadIssuerSignature(t *testing.T) {
	tx, _ := sampleTransaction(t, 3)
	tx.Signatures[1][0] ^= 1

	err := tx.Verify()
	var sigErr *SignatureError
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, 1, sigErr.IssuerIndex)
}

func TestTransactionCommentBounds(t *testing.T) {
	tx, secrets := sampleTransaction(t, 1)

	// 255-char comment is accepted
	tx.Comment = strings.Repeat("a", 255)
	tx.Signatures = nil
	tx.Signatures = append(tx.Signatures, secrets[0].Sign(tx.SignableBytes()))
	parsed, perr := ParseTransaction(tx.CanonicalBytes())
	require.Nil(t, perr)
	require.Len(t, parsed.Comment, 255)

	// empty comment is accepted
	tx.Comment = ""
	tx.Signatures = nil
	tx.Signatures = append(tx.Signatures, secrets[0].Sign(tx.SignableBytes()))
	parsed, perr = ParseTransaction(tx.CanonicalBytes())
	require.Nil(t, perr)
	require.Empty(t, parsed.Comment)

	// 256-char comment is rejected
	require.False(t, ValidComment(strings.Repeat("a", 256)))
	// newline smuggling is rejected
	require.False(t, ValidComment("a\nb"))
}

func TestTransactionCompactRoundtrip(t *testing.T) {
	tx, _ := sampleTransaction(t, 2)

	compact := tx.CompactText() + "\n"
	r := newLineReader([]byte(compact))
	parsed, perr := parseCompactTransaction("g1", r)
	require.Nil(t, perr)
	require.Equal(t, tx, parsed)
	require.Equal(t, tx.CompactText(), parsed.CompactText())
}

func TestInputParseRejects(t *testing.T) {
	for _, bad := range []string{
		"",
		"10:0:X:abc:0",
		"10:0:T:abc:0",
		"010:0:D:DNann1Lh55eZMEDXeYt59bzHbA3NJR46DeQYCS2qQdLV:46",
		"10:0:D:DNann1Lh55eZMEDXeYt59bzHbA3NJR46DeQYCS2qQdLV:01",
	} {
		_, err := ParseInput(bad, 0)
		require.NotNil(t, err, "input %q", bad)
	}
}

func TestDocumentRapidRoundtrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := testSecrets(t, rapid.Byte().Draw(rt, "seed"))
		uid := basics.UID(rapid.StringMatching(`[A-Za-z][A-Za-z0-9_-]{0,30}`).Draw(rt, "uid"))
		var hash crypto.Digest
		for i := range hash {
			hash[i] = rapid.Byte().Draw(rt, "hash")
		}
		d := &Identity{
			CurrencyName: "g1",
			Issuer:       s.SignatureVerifier,
			UniqueID:     uid,
			Timestamp: basics.Blockstamp{
				Number: basics.BlockNumber(rapid.Uint32().Draw(rt, "num")),
				Hash:   hash,
			},
		}
		d.Sign(s)

		parsed, perr := ParseIdentity(d.CanonicalBytes())
		require.Nil(t, perr)
		require.Equal(t, d, parsed)
		require.Equal(t, d.CanonicalBytes(), parsed.CanonicalBytes())
	})
}
