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

// dunitrust is the node binary: it loads the profile, then either runs a
// maintenance subcommand or starts the module runtime.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dunitrust/dunitrust/config"
	"github.com/dunitrust/dunitrust/data/basics"
	"github.com/dunitrust/dunitrust/ledger"
	"github.com/dunitrust/dunitrust/logging"
	"github.com/dunitrust/dunitrust/modules"
	"github.com/dunitrust/dunitrust/node"
)

var profileName string

func main() {
	// a corrupted index detected at startup aborts with its own exit code
	defer func() {
		if r := recover(); r != nil {
			if corrupt, ok := r.(*ledger.CorruptError); ok {
				fmt.Fprintf(os.Stderr, "dunitrust: %v\n", corrupt)
				os.Exit(modules.ExitCorruptIndex)
			}
			panic(r)
		}
	}()

	root := &cobra.Command{
		Use:           "dunitrust",
		Short:         "Dunitrust is a Duniter blockchain node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profileName, "profile", config.DefaultProfile, "profile directory name")

	root.AddCommand(startCmd(), syncCmd(), dbexCmd(), keygenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dunitrust: %v\n", err)
		os.Exit(modules.ExitConfError)
	}
}

// openProfile resolves the profile directory, locks it, and loads the
// configuration and keypairs.
func openProfile() (dir string, conf config.Local, keys config.KeyPairs, unlock func(), err error) {
	dir, err = config.ProfileDir(profileName)
	if err != nil {
		return
	}
	unlock, err = config.LockProfile(dir)
	if err != nil {
		return
	}
	conf, err = config.LoadConfigFromDisk(dir)
	if err != nil {
		unlock()
		return
	}
	keys, err = config.LoadKeyPairs(dir)
	if err != nil {
		unlock()
		return
	}
	return
}

func makeNode(log logging.Logger) (*node.Node, func(), error) {
	dir, conf, keys, unlock, err := openProfile()
	if err != nil {
		return nil, nil, err
	}
	n, err := node.MakeNode(log, dir, conf, keys)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	cleanup := func() {
		n.Close()
		unlock()
	}
	return n, cleanup, nil
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Base()
			log.SetLevel(logging.Info)
			n, cleanup, err := makeNode(log)
			if err != nil {
				return err
			}
			defer cleanup()
			os.Exit(n.Run())
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <target-block>",
		Short: "Run the node in sync mode up to a target block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("bad target block %q", args[0])
			}
			log := logging.Base()
			log.SetLevel(logging.Info)
			n, cleanup, err := makeNode(log)
			if err != nil {
				return err
			}
			defer cleanup()
			n.StartSync(basics.BlockNumber(target))
			os.Exit(n.Run())
			return nil
		},
	}
}

func dbexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dbex <head|idty|sources|certs> [key]",
		Short: "Explore the serialized indices",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, cleanup, err := makeNode(logging.Base())
			if err != nil {
				return err
			}
			defer cleanup()
			key := ""
			if len(args) > 1 {
				key = args[1]
			}
			return n.Dbex(os.Stdout, args[0], key)
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate the network keypair for a fresh profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ProfileDir(profileName)
			if err != nil {
				return err
			}
			if err := config.GenerateKeyPairsFile(dir); err != nil {
				return err
			}
			fmt.Printf("keypairs written to %s\n", dir)
			return nil
		},
	}
}
