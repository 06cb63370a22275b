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

import "go.uber.org/zap"

type sessionOptions struct {
	log   *zap.Logger
	retry RetryConfig
}

// Option customizes a Session or SessionManager.
type Option func(*sessionOptions)

func defaultOptions() sessionOptions {
	return sessionOptions{
		log:   zap.NewNop(),
		retry: DefaultRetryConfig(),
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *sessionOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithRetryConfig overrides the exchange timings.
func WithRetryConfig(retry RetryConfig) Option {
	return func(o *sessionOptions) {
		o.retry = retry.normalize()
	}
}
