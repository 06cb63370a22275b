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
	"context"
	"time"
)

// RetryConfig tunes the command exchange loop. The defaults match the
// timings fiscal firmware tolerates at 9600 baud; shorter values provoke
// NAK storms on slower models.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first attempt.
	MaxAttempts int `yaml:"max_attempts"`
	// AckPolls is how many times to re-read for a reply byte before the
	// attempt is declared a timeout.
	AckPolls int `yaml:"ack_polls"`
	// PollInterval separates consecutive reply polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Backoff separates retry attempts.
	Backoff time.Duration `yaml:"backoff"`
	// ResponseTimeout bounds a single framed-response read.
	ResponseTimeout time.Duration `yaml:"response_timeout"`
}

// DefaultRetryConfig returns the timings used when none are supplied.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		AckPolls:        5,
		PollInterval:    200 * time.Millisecond,
		Backoff:         300 * time.Millisecond,
		ResponseTimeout: defaultReadTimeout,
	}
}

// normalize fills zero fields with defaults so a partially populated config
// never yields a zero-poll loop.
func (c RetryConfig) normalize() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.AckPolls <= 0 {
		c.AckPolls = def.AckPolls
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Backoff <= 0 {
		c.Backoff = def.Backoff
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = def.ResponseTimeout
	}
	return c
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
