// go-fiscal
// Copyright (c) 2025 The go-fiscal Authors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fiscal.
//
// go-fiscal is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fiscal is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fiscal; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Fiscalctl is a command line tool for Venezuelan fiscal printers.
//
// It talks the HKA and PNP serial protocols and can list candidate
// ports, query printer status, print fiscal documents from YAML files
// and run X/Z reports.
//
// Usage:
//
//	fiscalctl [command] [flags]
//
// See 'fiscalctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eyngroup/go-fiscal/internal/logging"
)

const version = "0.3.0"

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fiscalctl",
	Short: "Fiscal printer control utility",
	Long: `A command line tool for HKA and PNP fiscal printers.

Lists serial ports, queries printer status, prints fiscal documents
described in YAML and runs X/Z reports over RS-232.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
