// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// session is one broker connection together with the consumer bound to it.
// The Consumer creates a new session on every (re)connect and closes it
// when the connection fails; nothing else holds a reference.
type session struct {
	nc   *natsgo.Conn
	js   jetstream.JetStream
	cons jetstream.Consumer
}

// openSession connects without client-side reconnects, then provisions
// both streams and the durable consumer. Every failure wraps ErrConnectionLost.
func openSession(ctx context.Context, cfg *ConsumerConfig) (*session, error) {
	conn := cfg.Connection
	nc, err := natsgo.Connect(conn.URL,
		natsgo.Name(conn.Name),
		natsgo.Timeout(conn.ConnectTimeout),
		natsgo.PingInterval(conn.PingInterval),
		natsgo.MaxPingsOutstanding(conn.MaxPingsOutstanding),
		natsgo.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrConnectionLost, conn.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: jetstream: %w", ErrConnectionLost, err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, cfg.SetupTimeout)
	defer cancel()

	if _, err := EnsureStream(setupCtx, js, &cfg.Events); err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	if _, err := EnsureStream(setupCtx, js, &cfg.Alerts); err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	cons, err := EnsureConsumer(setupCtx, js, cfg)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}

	return &session{nc: nc, js: js, cons: cons}, nil
}

// next fetches at most one message, waiting up to wait. It returns
// (nil, nil) when nothing arrived in time.
func (s *session) next(wait time.Duration) (jetstream.Msg, error) {
	if s == nil || s.cons == nil {
		return nil, ErrNotConsuming
	}
	msg, err := s.cons.Next(jetstream.FetchMaxWait(wait))
	if err == nil {
		return msg, nil
	}
	if errors.Is(err, natsgo.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		if !s.connected() {
			return nil, fmt.Errorf("%w: connection %s", ErrConnectionLost, s.nc.Status())
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: fetch: %w", ErrConnectionLost, err)
}

func (s *session) connected() bool {
	return s.nc != nil && s.nc.IsConnected()
}

// serverURL returns the URL the session is connected to.
func (s *session) serverURL() string {
	if s.nc == nil {
		return ""
	}
	return s.nc.ConnectedUrl()
}

func (s *session) close() {
	if s == nil || s.nc == nil {
		return
	}
	s.nc.Close()
}
