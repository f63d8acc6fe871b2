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

package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/util/codecs"
)

// KeyPairsFilename is the name of the keypairs file inside the profile
// directory.
const KeyPairsFilename = "keypairs.json"

// StoredKeyPair is the JSON form of one keypair: Base58 public key and seed
type StoredKeyPair struct {
	Pub string `json:"pub"`
	Sec string `json:"sec"`
}

// KeyPairsFile is the JSON layout of keypairs.json. The network keypair is
// mandatory; the member keypair is present only on member nodes.
type KeyPairsFile struct {
	Member  *StoredKeyPair `json:"member,omitempty"`
	Network StoredKeyPair  `json:"network"`
}

// KeyPairs holds the usable secrets loaded from keypairs.json
type KeyPairs struct {
	Member  *crypto.SignatureSecrets
	Network *crypto.SignatureSecrets
}

// ErrBadKeyPairsFile is returned when keypairs.json is malformed
var ErrBadKeyPairsFile = errors.New("config: bad keypairs file")

func decodeStored(s StoredKeyPair) (*crypto.SignatureSecrets, error) {
	raw, err := crypto.Base58Decode(s.Sec)
	if err != nil || len(raw) != 32 {
		return nil, ErrBadKeyPairsFile
	}
	var seed crypto.Seed
	copy(seed[:], raw)
	secrets := crypto.GenerateSignatureSecrets(seed)
	if secrets.SignatureVerifier.String() != s.Pub {
		return nil, ErrBadKeyPairsFile
	}
	return secrets, nil
}

func encodeStored(s *crypto.SignatureSecrets, seed crypto.Seed) StoredKeyPair {
	return StoredKeyPair{
		Pub: s.SignatureVerifier.String(),
		Sec: crypto.Base58Encode(seed[:]),
	}
}

// LoadKeyPairs reads and decodes keypairs.json from the profile directory
func LoadKeyPairs(profileDir string) (KeyPairs, error) {
	var file KeyPairsFile
	err := codecs.LoadObjectFromFile(filepath.Join(profileDir, KeyPairsFilename), &file)
	if err != nil {
		return KeyPairs{}, err
	}
	var out KeyPairs
	out.Network, err = decodeStored(file.Network)
	if err != nil {
		return KeyPairs{}, err
	}
	if file.Member != nil {
		out.Member, err = decodeStored(*file.Member)
		if err != nil {
			return KeyPairs{}, err
		}
	}
	return out, nil
}

// GenerateKeyPairsFile creates keypairs.json with a fresh random network
// keypair. It refuses to overwrite an existing file.
func GenerateKeyPairsFile(profileDir string) error {
	path := filepath.Join(profileDir, KeyPairsFilename)
	if _, err := os.Stat(path); err == nil {
		return errors.New("config: keypairs file already exists")
	}
	var seed crypto.Seed
	if err := crypto.RandomSeed(&seed); err != nil {
		return err
	}
	secrets := crypto.GenerateSignatureSecrets(seed)
	file := KeyPairsFile{Network: encodeStored(secrets, seed)}
	if err := codecs.SaveObjectToFile(path, file, true); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}
