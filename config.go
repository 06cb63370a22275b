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

package fiscal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one fiscal printer attachment.
type Config struct {
	// Printer selects the protocol family: "hka" or "pnp".
	Printer Kind `yaml:"printer"`
	// Port is the serial device path or name (COM3, /dev/ttyUSB0).
	Port string `yaml:"port"`
	// BaudRate overrides the protocol's default line speed when nonzero.
	BaudRate int `yaml:"baud_rate,omitempty"`
	// Enabled gates whether the manager will open this printer.
	Enabled bool `yaml:"enabled"`
	// Retry tunes the command exchange loop; zero fields use defaults.
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// Validate checks the fields a connection attempt will rely on.
func (c *Config) Validate() error {
	switch c.Printer {
	case KindHKA, KindPNP:
	default:
		return &ValidationError{Field: "printer", Reason: fmt.Sprintf("unknown protocol %q", c.Printer)}
	}
	if c.Port == "" {
		return &ValidationError{Field: "port", Reason: "is required"}
	}
	return nil
}

// LoadConfig reads a YAML printer configuration with one entry per
// attachment.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var file struct {
		Printers []Config `yaml:"printers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	for i := range file.Printers {
		if err := file.Printers[i].Validate(); err != nil {
			return nil, fmt.Errorf("config entry %d: %w", i, err)
		}
	}
	return file.Printers, nil
}

// LoadDocument reads a YAML document file into the structured print request.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", path, err)
	}
	return &doc, nil
}
