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

// Package logging configures the process-wide zap logger for the CLI.
// Libraries in this module take a *zap.Logger explicitly; this package
// only exists so commands share one configuration.
package logging

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar controls verbosity when no level flag is given.
// When unset or empty, logging is silent.
// Valid values: "debug", "info", "warn", "error".
const LogLevelEnvVar = "FISCAL_LOG_LEVEL"

var logger *zap.Logger

// Initialize builds the global logger at the given level. An empty level
// falls back to FISCAL_LOG_LEVEL; if that is also empty the logger is a
// nop, keeping command output clean by default.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// InitializeFromEnv initializes from FISCAL_LOG_LEVEL only.
func InitializeFromEnv() error {
	return Initialize("")
}

// GetLogger returns the global logger; silent when never initialized.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// LogFrame records a raw protocol frame at debug level. Direction is
// "tx" or "rx".
func LogFrame(direction string, data []byte) {
	GetLogger().Debug("serial frame",
		zap.String("dir", direction),
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// Sync flushes any buffered entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func hexDump(data []byte) string {
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) > 256 {
		data = data[:256]
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 0x20 && b <= 0x7E {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
