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
	"crypto/rand"
)

// RandBytes fills the provided structure with a set of random bytes
func RandBytes(dst []byte) error {
	_, err := rand.Read(dst)
	return err
}

// RandomSeed fills seed with cryptographically random material
func RandomSeed(seed *Seed) error {
	return RandBytes(seed[:])
}
