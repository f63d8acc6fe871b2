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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConditionRoundtrip(t *testing.T) {
	pk := testSecrets(t, 40).SignatureVerifier
	pk2 := testSecrets(t, 41).SignatureVerifier
	hash := "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"

	cases := []string{
		fmt.Sprintf("SIG(%s)", pk),
		fmt.Sprintf("XHX(%s)", hash),
		"CSV(604800)",
		"CLTV(1654300800)",
		fmt.Sprintf("SIG(%s) && SIG(%s)", pk, pk2),
		fmt.Sprintf("SIG(%s) || (SIG(%s) && CSV(604800))", pk, pk2),
		fmt.Sprintf("(SIG(%s) || XHX(%s)) && CLTV(1654300800)", pk, hash),
		fmt.Sprintf("SIG(%s) && SIG(%s) || CSV(0)", pk, pk2),
	}
	for _, src := range cases {
		cond, err := ParseCondition(src, 0)
		require.Nil(t, err, "source %q", src)
		// the tree re-emits the exact byte sequence it was read from
		require.Equal(t, src, cond.String(), "source %q", src)
	}
}

func TestConditionPreservesShape(t *testing.T) {
	pk := testSecrets(t, 42).SignatureVerifier
	// same logical condition, different byte sequences: both must survive
	flat := fmt.Sprintf("SIG(%s) && CSV(10)", pk)
	wrapped := fmt.Sprintf("(SIG(%s)) && (CSV(10))", pk)

	c1, err := ParseCondition(flat, 0)
	require.Nil(t, err)
	c2, err := ParseCondition(wrapped, 0)
	require.Nil(t, err)

	require.Equal(t, flat, c1.String())
	require.Equal(t, wrapped, c2.String())
	require.NotEqual(t, c1.String(), c2.String())
}

func TestConditionLeftAssociative(t *testing.T) {
	pk := testSecrets(t, 43).SignatureVerifier
	src := fmt.Sprintf("SIG(%s) && CSV(1) && CSV(2)", pk)
	cond, err := ParseCondition(src, 0)
	require.Nil(t, err)

	// ((SIG && CSV(1)) && CSV(2))
	require.Equal(t, CondAnd, cond.Op)
	require.NotNil(t, cond.Right.Csv)
	require.Equal(t, uint64(2), *cond.Right.Csv)
	require.Equal(t, CondAnd, cond.Left.Op)
}

func TestConditionParseErrors(t *testing.T) {
	pk := testSecrets(t, 44).SignatureVerifier
	for _, bad := range []string{
		"",
		"SIG()",
		"SIG(abc)",
		"CSV(01)",
		"CSV(1",
		fmt.Sprintf("SIG(%s) &&", pk),
		fmt.Sprintf("SIG(%s) AND CSV(1)", pk),
		fmt.Sprintf("(SIG(%s)", pk),
		fmt.Sprintf("SIG(%s) garbage", pk),
	} {
		_, err := ParseCondition(bad, 0)
		require.NotNil(t, err, "source %q", bad)
	}
}

func TestUnlockRoundtrip(t *testing.T) {
	for _, src := range []string{
		"0:SIG(0)",
		"1:XHX(7665798292)",
		"3:SIG(0) SIG(2)",
		"2:SIG(1) XHX(secret)",
	} {
		u, err := ParseUnlock(src, 0)
		require.Nil(t, err, "source %q", src)
		require.Equal(t, src, u.String())
	}

	for _, bad := range []string{"", "0:", "x:SIG(0)", "0:SIG()", "0:NOPE(1)", "01:SIG(0)"} {
		_, err := ParseUnlock(bad, 0)
		require.NotNil(t, err, "source %q", bad)
	}
}
