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

// Package detection enumerates serial ports that may have a fiscal
// printer attached and probes candidates with the protocol status poll.
package detection

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.uber.org/zap"

	fiscal "github.com/eyngroup/go-fiscal"
	"github.com/eyngroup/go-fiscal/transport/serialport"
)

// Candidate is a serial port that passed the name filter and may hold
// a fiscal printer.
type Candidate struct {
	Port string
}

// Result describes a successful probe of a candidate port.
type Result struct {
	Port string
	Kind fiscal.Kind
	Info *fiscal.MachineInfo
}

// DefaultBlocklist returns substrings of port names that are known not
// to be fiscal printers and should never be probed.
func DefaultBlocklist() []string {
	return []string{
		"bluetooth", // macOS virtual Bluetooth ports hang on open
		"debug",
		"irda",
	}
}

// IsBlocked reports whether a port name matches the blocklist.
func IsBlocked(port string, blocklist []string) bool {
	lower := strings.ToLower(port)
	for _, blocked := range blocklist {
		if blocked == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(blocked)) {
			return true
		}
	}
	return false
}

// Ports lists candidate serial ports, filtered by the default blocklist.
func Ports() ([]Candidate, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	blocklist := DefaultBlocklist()
	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		if IsBlocked(name, blocklist) {
			continue
		}
		candidates = append(candidates, Candidate{Port: name})
	}
	return candidates, nil
}

func profileFor(kind fiscal.Kind) (fiscal.PortProfile, error) {
	switch kind {
	case fiscal.KindHKA:
		return fiscal.NewHKAProtocol().Profile(), nil
	case fiscal.KindPNP:
		return fiscal.NewPNPProtocol().Profile(), nil
	default:
		return fiscal.PortProfile{}, fmt.Errorf("unknown protocol %q", kind)
	}
}

// Probe opens a port with the protocol's line settings and runs the
// connection handshake. A successful handshake identifies the device.
func Probe(ctx context.Context, port string, kind fiscal.Kind, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg := &fiscal.Config{Printer: kind, Port: port, Enabled: true}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := profileFor(kind)
	if err != nil {
		return nil, err
	}
	transport, err := serialport.Factory(cfg, profile)
	if err != nil {
		return nil, err
	}

	session, err := fiscal.Connect(ctx, transport, kind, fiscal.WithLogger(log))
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("probe %s on %s: %w", kind, port, err)
	}
	defer func() { _ = session.Close() }()

	return &Result{Port: port, Kind: kind, Info: session.Info()}, nil
}

// Scan probes every candidate port for each requested protocol and
// returns the devices that answered. Ports that stay silent are skipped.
func Scan(ctx context.Context, kinds []fiscal.Kind, log *zap.Logger) ([]Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(kinds) == 0 {
		kinds = []fiscal.Kind{fiscal.KindHKA, fiscal.KindPNP}
	}

	candidates, err := Ports()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		for _, kind := range kinds {
			result, err := Probe(ctx, candidate.Port, kind, log)
			if err != nil {
				log.Debug("port probe failed",
					zap.String("port", candidate.Port),
					zap.String("protocol", string(kind)),
					zap.Error(err))
				continue
			}
			results = append(results, *result)
			break
		}
	}
	return results, nil
}
