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
	"errors"

	"go.uber.org/zap"

	"github.com/eyngroup/go-fiscal/internal/frame"
)

// ExchangeResult classifies the outcome of one command exchange attempt.
type ExchangeResult int

const (
	// ExchangeAccepted means the device acknowledged or answered the
	// command.
	ExchangeAccepted ExchangeResult = iota
	// ExchangeRejected means the device answered NAK.
	ExchangeRejected
	// ExchangeMalformed means the reply failed framing or checksum
	// validation.
	ExchangeMalformed
	// ExchangeTimeout means no reply arrived within the poll window.
	ExchangeTimeout
)

// String implements fmt.Stringer.
func (r ExchangeResult) String() string {
	switch r {
	case ExchangeAccepted:
		return "accepted"
	case ExchangeRejected:
		return "rejected"
	case ExchangeMalformed:
		return "malformed"
	case ExchangeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// asExchangeError unwraps err into target when it is an ExchangeError.
func asExchangeError(err error, target **ExchangeError) bool {
	return errors.As(err, target)
}

// Exchanger runs the request/reply discipline over one transport: frame,
// write, classify the answer and retry transient failures. It owns the RTS
// line when the port profile asks for hardware flow signalling.
type Exchanger struct {
	transport Transport
	codec     FrameCodec
	profile   PortProfile
	retry     RetryConfig
	log       *zap.Logger
}

// NewExchanger wires a transport to a protocol codec.
func NewExchanger(t Transport, codec FrameCodec, profile PortProfile, retry RetryConfig, log *zap.Logger) *Exchanger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exchanger{
		transport: t,
		codec:     codec,
		profile:   profile,
		retry:     retry.normalize(),
		log:       log,
	}
}

// Do sends one request and returns the classified reply. Rejected and
// timed-out exchanges are retried up to the configured attempt budget;
// malformed replies fail immediately since resending a command the device
// already garbled risks double execution.
func (e *Exchanger) Do(ctx context.Context, req Request) (*Reply, error) {
	wire := req.Payload
	if !req.Bare {
		wire = e.codec.Encode(req.Payload)
	}

	attempts := 0
	var last *ExchangeError
	for attempt := 0; attempt <= e.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, e.retry.Backoff); err != nil {
				return nil, err
			}
		}
		attempts++

		reply, result, err := e.attempt(ctx, req, wire)
		if err == nil {
			if attempt > 0 {
				e.log.Debug("command recovered after retry",
					zap.String("command", req.Label),
					zap.Int("attempt", attempts))
			}
			return reply, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		last = &ExchangeError{Err: err, Command: req.Label, Result: result, Attempts: attempts}
		if result == ExchangeMalformed {
			break
		}
		e.log.Warn("command attempt failed",
			zap.String("command", req.Label),
			zap.Stringer("result", result),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}
	return nil, last
}

// attempt performs a single write/read cycle.
func (e *Exchanger) attempt(ctx context.Context, req Request, wire []byte) (*Reply, ExchangeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ExchangeTimeout, err
	}
	if err := e.transport.Flush(); err != nil {
		return nil, ExchangeTimeout, err
	}

	if e.profile.Flow == FlowRTS {
		if err := e.transport.SetReady(true); err != nil {
			return nil, ExchangeTimeout, err
		}
	}
	writeErr := e.transport.Write(wire)
	if e.profile.Flow == FlowRTS {
		// Release the line even when the write failed so the device can
		// transmit unsolicited state.
		if err := e.transport.SetReady(false); err != nil && writeErr == nil {
			writeErr = err
		}
	}
	if writeErr != nil {
		return nil, ExchangeTimeout, writeErr
	}

	switch req.Mode {
	case ModeAck:
		return e.readAck(ctx, req)
	case ModeRawStatus:
		return e.readFixed(ctx, req)
	default:
		return e.readFrame(ctx, req)
	}
}

// readAck polls for the single-byte verdict.
func (e *Exchanger) readAck(ctx context.Context, req Request) (*Reply, ExchangeResult, error) {
	for poll := 0; poll < e.retry.AckPolls; poll++ {
		if poll > 0 {
			if err := sleepCtx(ctx, e.retry.PollInterval); err != nil {
				return nil, ExchangeTimeout, err
			}
		}
		b, err := e.transport.ReadByte(e.retry.PollInterval)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return nil, ExchangeTimeout, err
		}
		switch b {
		case frame.ACK:
			return &Reply{Raw: []byte{b}, Ack: true}, ExchangeAccepted, nil
		case frame.NAK:
			return nil, ExchangeRejected, ErrCommandRejected
		default:
			return nil, ExchangeMalformed, ErrMalformedFrame
		}
	}
	return nil, ExchangeTimeout, ErrNoResponse
}

// readFixed reads an unframed fixed-length burst.
func (e *Exchanger) readFixed(ctx context.Context, req Request) (*Reply, ExchangeResult, error) {
	buf := make([]byte, 0, req.FixedLen)
	for len(buf) < req.FixedLen {
		if err := ctx.Err(); err != nil {
			return nil, ExchangeTimeout, err
		}
		b, err := e.transport.ReadByte(e.retry.ResponseTimeout)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) && len(buf) == 0 {
				return nil, ExchangeTimeout, ErrNoResponse
			}
			if errors.Is(err, ErrReadTimeout) {
				return nil, ExchangeMalformed, ErrIncompleteFrame
			}
			return nil, ExchangeTimeout, err
		}
		buf = append(buf, b)
	}
	reply, err := e.codec.Decode(buf)
	if err != nil {
		return nil, ExchangeMalformed, err
	}
	return reply, ExchangeAccepted, nil
}

// readFrame reads a complete framed response. MultiFrame commands keep
// draining until the device goes quiet and the last well-formed frame wins.
func (e *Exchanger) readFrame(ctx context.Context, req Request) (*Reply, ExchangeResult, error) {
	raw, err := e.transport.ReadUntil(frame.ETX, e.codec.Trailer(), e.retry.ResponseTimeout)
	if err != nil {
		if errors.Is(err, ErrReadTimeout) {
			return nil, ExchangeTimeout, ErrNoResponse
		}
		return nil, ExchangeTimeout, err
	}
	reply, err := e.codec.Decode(raw)
	if err != nil {
		return nil, ExchangeMalformed, err
	}
	if !req.MultiFrame {
		return reply, ExchangeAccepted, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, ExchangeTimeout, err
		}
		raw, err := e.transport.ReadUntil(frame.ETX, e.codec.Trailer(), e.retry.ResponseTimeout)
		if err != nil {
			// Quiet line means the previous frame was the final one.
			if errors.Is(err, ErrReadTimeout) {
				return reply, ExchangeAccepted, nil
			}
			return nil, ExchangeTimeout, err
		}
		next, err := e.codec.Decode(raw)
		if err != nil {
			return nil, ExchangeMalformed, err
		}
		reply = next
	}
}
