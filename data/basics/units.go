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

// Package basics defines the primitive value types shared by documents,
// blocks and indices.
package basics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
)

// BlockNumber is the height of a block in the chain
type BlockNumber uint32

// A Blockstamp identifies one specific block: its number and its hash
type Blockstamp struct {
	Number BlockNumber   `codec:"num"`
	Hash   crypto.Digest `codec:"hash"`
}

// CurrencyName is the ASCII identifier of a currency, unique per network
type CurrencyName string

// ErrBadBlockstamp is returned for a malformed textual blockstamp
var ErrBadBlockstamp = errors.New("basics: bad blockstamp")

// ErrBadUint is returned for integers with leading zeros or out of range
var ErrBadUint = errors.New("basics: bad unsigned integer")

// String returns the "NUMBER-HASH" textual form
func (b Blockstamp) String() string {
	return fmt.Sprintf("%d-%s", b.Number, b.Hash)
}

// ParseBlockstamp parses the "NUMBER-HASH" textual form
func ParseBlockstamp(s string) (Blockstamp, error) {
	var b Blockstamp
	dash := strings.IndexByte(s, '-')
	if dash < 1 {
		return b, ErrBadBlockstamp
	}
	num, err := ParseUint32(s[:dash])
	if err != nil {
		return b, ErrBadBlockstamp
	}
	hash, err := crypto.DigestFromString(s[dash+1:])
	if err != nil {
		return b, ErrBadBlockstamp
	}
	b.Number = BlockNumber(num)
	b.Hash = hash
	return b, nil
}

// ParseUint64 parses a base-10 digit run. Leading zeros are rejected:
// "0" is the only integer allowed to begin with '0'.
func ParseUint64(s string) (uint64, error) {
	if len(s) == 0 {
		return 0, ErrBadUint
	}
	if s[0] == '0' && len(s) > 1 {
		return 0, ErrBadUint
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, ErrBadUint
		}
		d := uint64(c - '0')
		if v > (math.MaxUint64-d)/10 {
			return 0, ErrBadUint
		}
		v = v*10 + d
	}
	return v, nil
}

// ParseUint32 parses a base-10 digit run into 32 bits, rejecting leading zeros
func ParseUint32(s string) (uint32, error) {
	v, err := ParseUint64(s)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, ErrBadUint
	}
	return uint32(v), nil
}

// ParseInt64 parses a base-10 integer with optional leading '-',
// rejecting leading zeros
func ParseInt64(s string) (int64, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	v, err := ParseUint64(s)
	if err != nil {
		return 0, err
	}
	if neg {
		if v > uint64(math.MaxInt64)+1 {
			return 0, ErrBadUint
		}
		return -int64(v), nil
	}
	if v > math.MaxInt64 {
		return 0, ErrBadUint
	}
	return int64(v), nil
}
