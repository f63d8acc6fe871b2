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
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DefaultProfile is the profile used when the user does not select one
const DefaultProfile = "default"

// lockFilename guards a profile directory against concurrent node processes
const lockFilename = "dunitrust.lock"

// DataRoot returns the root of all profiles, honoring the usual
// per-platform conventions.
func DataRoot() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dunitrust"), nil
}

// ProfileDir resolves (and creates) the directory of the named profile
func ProfileDir(profile string) (string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	root, err := DataRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, profile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// CurrencyDir resolves (and creates) the per-currency data directory
// inside a profile, which hosts the serialized indices and block archive.
func CurrencyDir(profileDir, currency string) (string, error) {
	dir := filepath.Join(profileDir, currency)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// LockProfile takes an exclusive lock on the profile directory. The
// returned unlock function must be called on every exit path.
func LockProfile(profileDir string) (unlock func(), err error) {
	fl := flock.New(filepath.Join(profileDir, lockFilename))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("config: profile %s is locked by another process", profileDir)
	}
	return func() { fl.Unlock() }, nil
}
