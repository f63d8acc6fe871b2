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
)

func sampleBlock(t testing.TB) (*Block, *crypto.SignatureSecrets) {
	t.Helper()
	issuer := testSecrets(t, 60)

	idtySecrets := testSecrets(t, 61)
	idty := &Identity{
		CurrencyName: "g1",
		Issuer:       idtySecrets.SignatureVerifier,
		UniqueID:     "newcomer",
		Timestamp:    zeroStamp(),
	}
	idty.Sign(idtySecrets)

	join := &Membership{
		CurrencyName: "g1",
		Issuer:       idtySecrets.SignatureVerifier,
		Block:        zeroStamp(),
		Kind:         MembershipIn,
		UserID:       "newcomer",
		CertTS:       zeroStamp(),
	}
	join.Sign(idtySecrets)

	tx, _ := sampleTransaction(t, 1)

	b := &Block{
		CurrencyName:          "g1",
		Number:                12,
		PoWMin:                70,
		Time:                  1700000500,
		MedianTime:            1700000000,
		UnitBase:              0,
		Issuer:                issuer.SignatureVerifier,
		IssuersFrame:          40,
		IssuersFrameVar:       0,
		DifferentIssuersCount: 8,
		PreviousHash:          crypto.Hash([]byte("previous")),
		PreviousIssuer:        testSecrets(t, 62).SignatureVerifier,
		MembersCount:          100,
		Identities:            []*Identity{idty},
		Joiners:               []*Membership{join},
		Transactions:          []*Transaction{tx},
	}
	b.Sign(issuer)
	return b, issuer
}

func TestBlockInnerTextLayout(t *testing.T) {
	b, _ := sampleBlock(t)
	text := b.CompactInnerText()

	require.True(t, strings.HasPrefix(text, "Version: 10\nType: Block\nCurrency: g1\nNumber: 12\nPoWMin: 70\n"))
	// field order is fixed: MedianTime then UnitBase (no dividend here)
	require.Contains(t, text, "MedianTime: 1700000000\nUnitBase: 0\n")
	require.Contains(t, text, "\nPreviousHash: ")
	require.Contains(t, text, "\nMembersCount: 100\n")
	require.Contains(t, text, "\nIdentities:\n")
	require.Contains(t, text, "\nTransactions:\nTX:10:1:1:1:1:1:0\n")
	require.True(t, strings.HasSuffix(text, "\n"))
	require.NotContains(t, text, "InnerHash:")
}

func TestBlockDividendPlacement(t *testing.T) {
	b, issuer := sampleBlock(t)
	ud := int64(1002)
	b.UniversalDividend = &ud
	b.Sign(issuer)

	text := b.CompactInnerText()
	require.Contains(t, text, "MedianTime: 1700000000\nUniversalDividend: 1002\nUnitBase: 0\n")

	parsed, perr := ParseBlock(b.CanonicalBytes())
	require.Nil(t, perr)
	require.NotNil(t, parsed.UniversalDividend)
	require.Equal(t, int64(1002), *parsed.UniversalDividend)
}

func TestBlockSignAndVerify(t *testing.T) {
	b, _ := sampleBlock(t)
	require.NoError(t, b.Verify())
	require.Equal(t, b.ComputeInnerHash(), b.InnerHash)

	// tampering with inner content invalidates the inner hash
	b.MembersCount++
	require.Error(t, b.Verify())
}

func TestBlockRoundtrip(t *testing.T) {
	b, _ := sampleBlock(t)
	raw := b.CanonicalBytes()

	parsed, perr := ParseBlock(raw)
	require.Nil(t, perr)
	require.Equal(t, b, parsed)
	require.Equal(t, raw, parsed.CanonicalBytes())
	require.NoError(t, parsed.Verify())
	require.Equal(t, b.Hash(), parsed.Hash())
}

func TestBlockHashCoversSignature(t *testing.T) {
	b, issuer := sampleBlock(t)
	h1 := b.Hash()

	// re-signing with a different nonce changes the hash
	b.Nonce = 10100000012345
	b.Sign(issuer)
	require.NotEqual(t, h1, b.Hash())
}

func TestGenesisBlockOmitsPrevious(t *testing.T) {
	issuer := testSecrets(t, 63)
	b := &Block{
		CurrencyName:          "g1",
		Number:                0,
		PoWMin:                60,
		Time:                  1488970800,
		MedianTime:            1488970800,
		Issuer:                issuer.SignatureVerifier,
		IssuersFrame:          1,
		IssuersFrameVar:       0,
		DifferentIssuersCount: 0,
		ParametersLine:        "0.0488:86400:1000:432000:100:5259600:63115200:5:5259600:5259600:0.8:31557600:5:24:300:12:0.67:1488970800:1490094000:15778800",
		MembersCount:          59,
	}
	b.Sign(issuer)

	text := b.CompactInnerText()
	require.NotContains(t, text, "PreviousHash:")
	require.NotContains(t, text, "PreviousIssuer:")
	require.Contains(t, text, "\nParameters: 0.0488:")

	parsed, perr := ParseBlock(b.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, b, parsed)
	require.NoError(t, parsed.Verify())
}

func TestParseBlockViaDispatch(t *testing.T) {
	b, _ := sampleBlock(t)
	doc, perr := ParseDocument(b.CanonicalBytes())
	require.Nil(t, perr)
	require.Equal(t, TypeBlock, doc.Type())

	parsed := doc.(*Block)
	require.Equal(t, basics.BlockNumber(12), parsed.Number)
}
