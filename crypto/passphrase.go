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
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters fixed by the protocol; changing them changes every
// derived keypair.
const (
	scryptN      = 4096
	scryptR      = 16
	scryptP      = 1
	scryptKeyLen = 32
)

// SecretsFromPassphrase derives an Ed25519 keypair from a salt and password,
// using the scrypt parameters fixed by the protocol (N=4096, r=16, p=1).
func SecretsFromPassphrase(salt, password string) (*SignatureSecrets, error) {
	raw, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, err
	}
	var seed Seed
	copy(seed[:], raw)
	return GenerateSignatureSecrets(seed), nil
}
