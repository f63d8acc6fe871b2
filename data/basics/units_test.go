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

package basics

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseUintRejectsLeadingZeros(t *testing.T) {
	for _, s := range []string{"01", "007", "00", ""} {
		_, err := ParseUint64(s)
		require.ErrorIs(t, err, ErrBadUint, "input %q", s)
	}
	v, err := ParseUint64("0")
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestParseUint32Bounds(t *testing.T) {
	v, err := ParseUint32("0")
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)

	v, err = ParseUint32("4294967295")
	require.NoError(t, err)
	require.Equal(t, uint32(4294967295), v)

	_, err = ParseUint32("4294967296")
	require.ErrorIs(t, err, ErrBadUint)
}

func TestBlockstampRoundtrip(t *testing.T) {
	b, err := ParseBlockstamp("0-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855")
	require.NoError(t, err)
	require.Equal(t, BlockNumber(0), b.Number)
	require.Equal(t, "0-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", b.String())

	// boundary block numbers parse
	b, err = ParseBlockstamp("4294967295-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855")
	require.NoError(t, err)
	require.Equal(t, BlockNumber(4294967295), b.Number)

	for _, s := range []string{
		"",
		"42",
		"-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855",
		"01-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855",
		"1-e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"1-E3B0",
	} {
		_, err := ParseBlockstamp(s)
		require.Error(t, err, "input %q", s)
	}
}

func TestBlockstampRapidRoundtrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var b Blockstamp
		b.Number = BlockNumber(rapid.Uint32().Draw(t, "num"))
		for i := range b.Hash {
			b.Hash[i] = rapid.Byte().Draw(t, "hash")
		}
		parsed, err := ParseBlockstamp(b.String())
		require.NoError(t, err)
		require.Equal(t, b, parsed)
	})
}

func TestAmountSumAndEqual(t *testing.T) {
	sum, err := SumAmounts([]Amount{
		{Value: 10, Base: 0},
		{Value: 5, Base: 0},
	})
	require.NoError(t, err)
	require.True(t, sum.Equal(Amount{Value: 15, Base: 0}))

	// mixed bases normalize to the smallest
	sum, err = SumAmounts([]Amount{
		{Value: 1, Base: 2},
		{Value: 5, Base: 0},
	})
	require.NoError(t, err)
	require.True(t, sum.Equal(Amount{Value: 105, Base: 0}))

	// overflow in sum checks is an error, not a wrap
	_, err = SumAmounts([]Amount{
		{Value: 1 << 62, Base: 1},
		{Value: 1, Base: 0},
	})
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestUIDValid(t *testing.T) {
	for _, ok := range []string{"alice", "a", "Bob_42", "x-y-z", "Z9"} {
		require.True(t, UID(ok).Valid(), "uid %q", ok)
	}
	for _, bad := range []string{"", "9abc", "_abc", "-abc", "al ice", "alicé"} {
		require.False(t, UID(bad).Valid(), "uid %q", bad)
	}
}
