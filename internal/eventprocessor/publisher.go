// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/metrics"
	"github.com/tomtom215/auditsentinel/internal/models"
	"github.com/tomtom215/auditsentinel/internal/resilience"
)

// ContentTypeJSON is set on every published alert.
const ContentTypeJSON = "application/json"

// AlertPublisher sends alerts to the alert stream and waits for the
// JetStream PubAck before returning.
type AlertPublisher struct {
	publisher message.Publisher
	subject   string
	breaker   *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewAlertPublisher connects a Watermill JetStream publisher. It keeps its
// own connection, which reconnects on its own; the consumer loop's
// connection is separate.
//
//nolint:gocritic // config structs are passed by value throughout
func NewAlertPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*AlertPublisher, error) {
	if logger == nil {
		logger = logging.NewWatermillAdapter("alert-publisher")
	}

	natsOpts := []natsgo.Option{
		natsgo.Name(cfg.Connection.Name + "-publisher"),
		natsgo.Timeout(cfg.Connection.ConnectTimeout),
		natsgo.PingInterval(cfg.Connection.PingInterval),
		natsgo.MaxPingsOutstanding(cfg.Connection.MaxPingsOutstanding),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Alert publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Alert publisher reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.Connection.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // the alert stream is provisioned by the consumer session
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.AckWait(cfg.PublishTimeout),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return newAlertPublisher(pub, cfg), nil
}

//nolint:gocritic // config structs are passed by value throughout
func newAlertPublisher(pub message.Publisher, cfg PublisherConfig) *AlertPublisher {
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultAlertsSubject
	}
	return &AlertPublisher{
		publisher: pub,
		subject:   subject,
		breaker:   resilience.NewCircuitBreaker[struct{}](cfg.Breaker),
	}
}

// Publish sends one alert. The message ID is the alert's dedup key, so a
// redelivered event republishing the same rule result is stored once by the
// stream.
func (p *AlertPublisher) Publish(ctx context.Context, alert *models.Alert) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.AlertID, err)
	}

	payload, err := alert.Marshal()
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", alert.AlertID, err)
	}

	msgID := alert.DedupKey()
	msg := message.NewMessage(msgID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, msgID)
	msg.Metadata.Set("Content-Type", ContentTypeJSON)
	msg.Metadata.Set("alert_id", alert.AlertID)
	msg.Metadata.Set("correlation_id", alert.CorrelationID)
	msg.Metadata.Set("rule_id", alert.AnalysisRule.RuleID)
	msg.Metadata.Set("severity", alert.Severity)

	start := time.Now()
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(p.subject, msg)
	})
	metrics.RecordAlertPublish(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.AlertID, err)
	}

	logging.Ctx(ctx).Debug().
		Str("alert_id", alert.AlertID).
		Str("msg_id", msgID).
		Str("subject", p.subject).
		Msg("Alert published")
	return nil
}

// Close shuts the publisher down. Safe to call more than once.
func (p *AlertPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
