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

// Package config holds node-local configuration, the per-currency protocol
// parameters, and the on-disk profile layout.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/dunitrust/dunitrust/util/codecs"
)

// ConfigFilename is the name of the node configuration file inside the
// profile directory. The file is opaque to the blockchain engine; only this
// package reads it.
const ConfigFilename = "conf.json"

// Local holds the per-node (not per-currency) configuration
type Local struct {
	// Version tracks the current version of the config file schema,
	// allowing defaults to evolve without clobbering user settings.
	Version uint32

	// Currency is the currency this node hosts.
	Currency string

	// NodeID is the 1-8 lowercase hex char identifier gossiped in peer
	// cards. Generated at first start if empty.
	NodeID string

	// KVImpl selects the key-value store backend for the indices.
	KVImpl string

	// APIListenAddress is where the read-only query API binds,
	// e.g. "127.0.0.1:10901". Empty disables the API module.
	APIListenAddress string

	// EnableTUI starts the terminal status module.
	EnableTUI bool

	// DisabledModules lists optional modules the user turned off.
	DisabledModules []string

	// EnabledModules lists default-off optional modules the user turned on.
	EnabledModules []string

	// ModuleConf carries raw per-module configuration blobs, keyed by
	// module name. Parsed by each module, opaque here.
	ModuleConf map[string]map[string]interface{}

	// BaseLoggerDebugLevel is the level of the base logger.
	BaseLoggerDebugLevel uint32
}

var defaultLocal = Local{
	Version:              1,
	Currency:             "g1",
	KVImpl:               "pebble",
	APIListenAddress:     "127.0.0.1:10901",
	EnableTUI:            false,
	BaseLoggerDebugLevel: 4, // logging.Info
}

// GetDefaultLocal returns a copy of the default Local configuration
func GetDefaultLocal() Local {
	return defaultLocal
}

// LoadConfigFromDisk loads conf.json from the profile directory, applying
// defaults for a missing file.
func LoadConfigFromDisk(profileDir string) (Local, error) {
	c := defaultLocal
	err := codecs.LoadObjectFromFile(filepath.Join(profileDir, ConfigFilename), &c)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	return c, nil
}

// SaveConfigToDisk persists the configuration as conf.json in the profile
// directory.
func (c Local) SaveConfigToDisk(profileDir string) error {
	return codecs.SaveObjectToFile(filepath.Join(profileDir, ConfigFilename), c, true)
}

// ErrBadNodeID is returned when the configured node id is not 1-8
// lowercase hex chars
var ErrBadNodeID = errors.New("config: bad node id")

// ValidNodeID reports whether s is a valid DUNP node identifier
func ValidNodeID(s string) bool {
	if len(s) < 1 || len(s) > 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// ModuleEnabled resolves whether a module should start, given its default
func (c Local) ModuleEnabled(name string, defaultOn bool) bool {
	for _, m := range c.DisabledModules {
		if m == name {
			return false
		}
	}
	for _, m := range c.EnabledModules {
		if m == name {
			return true
		}
	}
	return defaultOn
}
