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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// DigestSize is the number of bytes in a SHA-256 digest
const DigestSize = sha256.Size

// Digest is a SHA-256 content hash, serialized as uppercase hex in documents
type Digest [DigestSize]byte

// Hash computes the SHA-256 digest of the given data
func Hash(data []byte) Digest {
	return sha256.Sum256(data)
}

// String returns the uppercase hex form used in documents
func (d Digest) String() string {
	return strings.ToUpper(hex.EncodeToString(d[:]))
}

// IsZero returns true for the all-zero digest
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// LeadingZeros counts the leading zero characters of the uppercase hex form.
// The proof-of-work condition of a block is expressed over that count.
func (d Digest) LeadingZeros() int {
	n := 0
	for _, c := range d.String() {
		if c != '0' {
			break
		}
		n++
	}
	return n
}

// ErrBadDigest is returned when a hex digest is malformed
var ErrBadDigest = errors.New("crypto: bad hex digest")

// DigestFromString parses an uppercase hex digest of exactly 64 characters
func DigestFromString(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*DigestSize {
		return d, ErrBadDigest
	}
	for _, c := range s {
		// lowercase hex is not accepted in documents
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return d, ErrBadDigest
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, ErrBadDigest
	}
	copy(d[:], raw)
	return d, nil
}
