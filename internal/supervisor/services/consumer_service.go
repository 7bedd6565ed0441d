// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package services

import (
	"context"
	"errors"
	"fmt"
)

// ConsumerRunner is satisfied by *eventprocessor.Consumer.
type ConsumerRunner interface {
	Run(ctx context.Context) error
}

// ConsumerService runs the event consumer loop under supervision. The loop
// handles broker reconnects itself; the supervisor only sees it return when
// ctx is canceled or something outside the loop broke.
type ConsumerService struct {
	runner ConsumerRunner
	name   string
}

// NewConsumerService wraps runner.
func NewConsumerService(runner ConsumerRunner) *ConsumerService {
	return &ConsumerService{
		runner: runner,
		name:   "event-consumer",
	}
}

// Serve implements suture.Service.
func (s *ConsumerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("consumer loop failed: %w", err)
	}
	return errors.New("consumer loop exited without shutdown")
}

// String names the service in supervisor logs.
func (s *ConsumerService) String() string {
	return s.name
}
