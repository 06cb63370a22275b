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

package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	fiscal "github.com/eyngroup/go-fiscal"
	"github.com/eyngroup/go-fiscal/detection"
	"github.com/eyngroup/go-fiscal/internal/logging"
	"github.com/eyngroup/go-fiscal/transport/serialport"
)

var (
	configPath  string
	printerName string
	portName    string
	logLevel    string
	probePorts  bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Printer configuration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&printerName, "printer", "p", "hka", "Printer protocol (hka, pnp)")
	rootCmd.PersistentFlags().StringVar(&portName, "port", "", "Serial port (overrides configuration)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log verbosity (debug, info, warn, error)")

	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(reportCmd)
}

// newManager builds a session manager from the config file, or from the
// --printer/--port flags when no file is given.
func newManager() (*fiscal.SessionManager, fiscal.Kind, error) {
	kind := fiscal.Kind(strings.ToLower(printerName))
	manager := fiscal.NewSessionManager(serialport.Factory, logging.GetLogger())

	if configPath != "" {
		configs, err := fiscal.LoadConfig(configPath)
		if err != nil {
			return nil, "", err
		}
		for _, cfg := range configs {
			if portName != "" && cfg.Printer == kind {
				cfg.Port = portName
			}
			if err := manager.Register(cfg); err != nil {
				return nil, "", err
			}
		}
		return manager, kind, nil
	}

	if portName == "" {
		return nil, "", fmt.Errorf("no --config given, --port is required")
	}
	cfg := fiscal.Config{Printer: kind, Port: portName, Enabled: true}
	if err := manager.Register(cfg); err != nil {
		return nil, "", err
	}
	return manager, kind, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List candidate serial ports",
	Long: `List serial ports that may have a fiscal printer attached.

With --probe, each port is opened and polled with the protocol status
command; only ports that answer are reported.`,
	RunE: runPorts,
}

func init() {
	portsCmd.Flags().BoolVar(&probePorts, "probe", false, "Poll each port and report only live printers")
}

func runPorts(cmd *cobra.Command, _ []string) error {
	if !probePorts {
		candidates, err := detection.Ports()
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("No serial ports found.")
			return nil
		}
		for _, candidate := range candidates {
			fmt.Println(candidate.Port)
		}
		return nil
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	results, err := detection.Scan(ctx, nil, logging.GetLogger())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No fiscal printers answered.")
		return nil
	}
	for _, result := range results {
		fmt.Printf("%s  protocol=%s model=%s serial=%s\n",
			result.Port, result.Kind, result.Info.Model, result.Info.Serial)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query printer status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	manager, kind, err := newManager()
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	session, err := manager.Get(ctx, kind)
	if err != nil {
		return err
	}

	st, err := session.Status(ctx)
	if err != nil {
		return err
	}

	info := session.Info()
	fmt.Printf("Model:    %s\n", info.Model)
	fmt.Printf("Serial:   %s\n", info.Serial)
	if info.RIF != "" {
		fmt.Printf("RIF:      %s\n", info.RIF)
	}
	fmt.Printf("Status:   %s (%s)\n", st.StatusCode, st.StatusDescription)
	fmt.Printf("Error:    %s (%s)\n", st.ErrorCode, st.ErrorDescription)
	return nil
}

var printCmd = &cobra.Command{
	Use:   "print <document.yaml>",
	Short: "Print a fiscal document from a YAML file",
	Example: `  # Print an invoice on the configured HKA printer
  fiscalctl print invoice.yaml --config printers.yaml

  # One-off print without a configuration file
  fiscalctl print invoice.yaml --printer pnp --port /dev/ttyUSB0`,
	Args: cobra.ExactArgs(1),
	RunE: runPrint,
}

func runPrint(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := fiscal.LoadDocument(args[0])
	if err != nil {
		return err
	}

	manager, kind, err := newManager()
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	result, err := manager.Print(ctx, kind, doc)
	if err != nil {
		return fmt.Errorf("print failed: %w", err)
	}

	fmt.Printf("Document: %s\n", result.DocumentNumber)
	fmt.Printf("Date:     %s\n", result.DocumentDate)
	fmt.Printf("Serial:   %s\n", result.MachineSerial)
	fmt.Printf("Report:   %s\n", result.MachineReport)
	return nil
}

var reportCmd = &cobra.Command{
	Use:   "report <x|z>",
	Short: "Run an X or Z report",
	Long: `Run a fiscal report.

An X report prints the running totals without closing the day; a Z
report closes the fiscal day and resets the counters.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	var kind fiscal.ReportKind
	switch strings.ToLower(args[0]) {
	case "x":
		kind = fiscal.ReportX
	case "z":
		kind = fiscal.ReportZ
	default:
		return fmt.Errorf("unknown report type %q, expected x or z", args[0])
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	manager, protoKind, err := newManager()
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	session, err := manager.Get(ctx, protoKind)
	if err != nil {
		return err
	}

	result, err := session.Report(ctx, kind)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	fmt.Printf("%s report done.\n", kind)
	if result.LastInvoice != "" {
		fmt.Printf("Last invoice: %s\n", result.LastInvoice)
	}
	if result.Date != "" {
		fmt.Printf("Printer date: %s %s\n", result.Date, result.Time)
	}
	return nil
}
