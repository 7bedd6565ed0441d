// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/auditsentinel/internal/health"
	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/metrics"
	"github.com/tomtom215/auditsentinel/internal/models"
	"github.com/tomtom215/auditsentinel/internal/resilience"
)

// State is the consumer loop state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConsuming
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConsuming:
		return "consuming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is the final decision taken for one message.
type Outcome string

const (
	// OutcomeAcked: processed and acknowledged.
	OutcomeAcked Outcome = metrics.OutcomeAcked
	// OutcomeRequeued: transient failure, negatively acknowledged for redelivery.
	OutcomeRequeued Outcome = metrics.OutcomeRequeued
	// OutcomeRejected: malformed, terminated without redelivery.
	OutcomeRejected Outcome = metrics.OutcomeMalformed
	// OutcomeAckFailed: processed, but the acknowledgement was not confirmed.
	OutcomeAckFailed Outcome = metrics.OutcomeAckFailed
)

// rejectReasonMalformed labels messages terminated for bad content.
const rejectReasonMalformed = "malformed"

// Analyzer evaluates one event; detection.Engine implements it.
type Analyzer interface {
	Evaluate(ctx context.Context, event *models.AuditEvent) ([]*models.Alert, error)
}

// AlertSink publishes one alert; AlertPublisher implements it.
type AlertSink interface {
	Publish(ctx context.Context, alert *models.Alert) error
}

// StorePinger checks window store reachability before each connect.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ConsumerDeps are the collaborators of a Consumer. Broker and Liveness may be nil.
type ConsumerDeps struct {
	Engine    Analyzer
	Publisher AlertSink
	Store     StorePinger
	Broker    health.BrokerStatus
	Liveness  health.ConsumerLiveness
}

// ConsumerStats is a point-in-time copy of the consumer counters.
type ConsumerStats struct {
	Acked       int64
	Requeued    int64
	Rejected    int64
	AckFailures int64
	Reconnects  int64
}

// Consumer pulls audit events one at a time, runs them through the
// analyzer, publishes the alerts and then acks, naks or terminates the
// message. It owns the broker connection and its health flag.
type Consumer struct {
	cfg       ConsumerConfig
	engine    Analyzer
	publisher AlertSink
	store     StorePinger
	broker    health.BrokerStatus
	liveness  health.ConsumerLiveness

	state   atomic.Int32
	running atomic.Bool

	malformedLog *rate.Limiter

	acked       atomic.Int64
	requeued    atomic.Int64
	rejected    atomic.Int64
	ackFailures atomic.Int64
	reconnects  atomic.Int64
}

// NewConsumer validates cfg and returns a stopped-but-runnable consumer.
//
//nolint:gocritic // config structs are passed by value throughout
func NewConsumer(cfg ConsumerConfig, deps ConsumerDeps) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("consumer config: %w", err)
	}
	if deps.Engine == nil || deps.Publisher == nil || deps.Store == nil {
		return nil, errors.New("consumer requires an engine, a publisher and a window store")
	}
	burst := cfg.MalformedLogBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Consumer{
		cfg:          cfg,
		engine:       deps.Engine,
		publisher:    deps.Publisher,
		store:        deps.Store,
		broker:       deps.Broker,
		liveness:     deps.Liveness,
		malformedLog: rate.NewLimiter(rate.Limit(burst), burst),
	}
	c.setState(StateDisconnected)
	return c, nil
}

// State returns the current loop state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Stats returns the consumer counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Acked:       c.acked.Load(),
		Requeued:    c.requeued.Load(),
		Rejected:    c.rejected.Load(),
		AckFailures: c.ackFailures.Load(),
		Reconnects:  c.reconnects.Load(),
	}
}

// Run consumes until ctx is canceled. Connection failures never end the
// loop; they lead to Reconnecting and a backoff. On cancellation the message
// being processed is finished first. Run returns nil after a clean stop.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("consumer already running")
	}
	defer c.running.Store(false)

	c.setAlive(true)
	defer c.setAlive(false)
	defer c.setState(StateStopped)

	log := logging.WithComponent("consumer")
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.setState(StateConnecting)
		sess, err := c.connect(ctx)
		if err == nil {
			attempt = 0
			if err = c.serve(ctx, sess); err == nil {
				return nil
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		c.setState(StateReconnecting)
		delay := c.cfg.Backoff.Duration(attempt)
		attempt++
		c.reconnects.Add(1)
		metrics.RecordReconnect()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Broker connection unavailable, reconnecting")

		if resilience.Wait(ctx, delay) != nil {
			return nil
		}
	}
}

// serve consumes on one session. The session is released however consume
// ends, including a panic unwinding to the supervisor.
func (c *Consumer) serve(ctx context.Context, sess *session) error {
	defer func() {
		sess.close()
		c.setBroker(false)
	}()

	c.setBroker(true)
	c.setState(StateConsuming)
	logging.WithComponent("consumer").Info().
		Str("url", sess.serverURL()).
		Str("stream", c.cfg.Events.Name).
		Str("durable", c.cfg.Durable).
		Msg("Consuming audit events")

	return c.consume(ctx, sess)
}

// connect verifies the window store first, then opens a broker session.
func (c *Consumer) connect(ctx context.Context) (*session, error) {
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.SetupTimeout)
	err := c.store.Ping(pingCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("window store check: %w", err)
	}
	return openSession(ctx, &c.cfg)
}

// consume processes messages until ctx is canceled (nil) or the connection
// fails (an ErrConnectionLost error).
func (c *Consumer) consume(ctx context.Context, sess *session) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := sess.next(c.cfg.FetchWait)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}
		// Finish the in-flight message even if shutdown starts now; each
		// network call below carries its own timeout.
		c.HandleMessage(context.WithoutCancel(ctx), msg)
	}
}

// HandleMessage runs one message through parse, evaluate, publish and the
// final ack decision, and returns that decision.
func (c *Consumer) HandleMessage(ctx context.Context, msg jetstream.Msg) Outcome {
	start := time.Now()
	d := deliveryInfo(msg)

	event, err := models.ParseAuditEvent(msg.Data())
	if err != nil {
		c.reject(ctx, msg, d, err)
		metrics.RecordEventProcessed("", string(OutcomeRejected), time.Since(start))
		return OutcomeRejected
	}

	ctx = logging.ContextWithEventID(ctx, event.EventID)
	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}
	checkContentType(ctx, msg)

	alerts, err := c.engine.Evaluate(ctx, event)
	if err == nil {
		for _, alert := range alerts {
			if err = c.publisher.Publish(ctx, alert); err != nil {
				break
			}
		}
	}
	if err != nil {
		c.requeue(ctx, msg, event, d, err)
		metrics.RecordEventProcessed(event.EventType, string(OutcomeRequeued), time.Since(start))
		return OutcomeRequeued
	}

	ackCtx, cancel := context.WithTimeout(ctx, c.cfg.AckTimeout)
	defer cancel()
	if err := msg.DoubleAck(ackCtx); err != nil {
		c.ackFailures.Add(1)
		metrics.RecordAckFailure()
		metrics.RecordEventProcessed(event.EventType, string(OutcomeAckFailed), time.Since(start))
		eventLog(logging.Ctx(ctx).Error().Err(err), event, d).
			Msg("Acknowledgement not confirmed, message will be redelivered")
		return OutcomeAckFailed
	}

	c.acked.Add(1)
	metrics.RecordEventProcessed(event.EventType, string(OutcomeAcked), time.Since(start))
	eventLog(logging.Ctx(ctx).Info(), event, d).
		Int("alerts", len(alerts)).
		Dur("duration", time.Since(start)).
		Msg("Event processed")
	return OutcomeAcked
}

// reject terminates a malformed message so it is never redelivered.
func (c *Consumer) reject(ctx context.Context, msg jetstream.Msg, d delivery, cause error) {
	c.rejected.Add(1)
	metrics.RecordRejected(rejectReasonMalformed)

	if err := msg.Term(); err != nil {
		c.ackFailures.Add(1)
		metrics.RecordAckFailure()
		logging.Ctx(ctx).Error().Err(err).Uint64("stream_seq", d.streamSeq).Msg("Failed to terminate malformed message")
	}

	var ev *zerolog.Event
	if c.malformedLog.Allow() {
		ev = logging.Ctx(ctx).Warn()
	} else {
		ev = logging.Ctx(ctx).Debug()
	}
	ev = ev.Err(cause).
		Str("subject", msg.Subject()).
		Uint64("stream_seq", d.streamSeq).
		Uint64("deliveries", d.numDelivered)
	if logging.IsDebugEnabled() {
		ev = ev.Bytes("payload", msg.Data())
	}
	ev.Msg("Rejected malformed message without requeue")
}

// requeue negatively acknowledges msg so the broker redelivers it.
func (c *Consumer) requeue(ctx context.Context, msg jetstream.Msg, event *models.AuditEvent, d delivery, cause error) {
	c.requeued.Add(1)
	metrics.RecordRequeued()

	delay := c.redeliveryDelay(d)
	var err error
	if delay > 0 {
		err = msg.NakWithDelay(delay)
	} else {
		err = msg.Nak()
	}
	if err != nil {
		c.ackFailures.Add(1)
		metrics.RecordAckFailure()
		logging.Ctx(ctx).Error().Err(err).Uint64("stream_seq", d.streamSeq).Msg("Failed to requeue message, relying on ack wait")
	}

	eventLog(logging.Ctx(ctx).Warn().Err(cause), event, d).
		Dur("redeliver_in", delay).
		Msg("Transient failure, message requeued")
}

// redeliveryDelay grows with the number of times the message was delivered.
func (c *Consumer) redeliveryDelay(d delivery) time.Duration {
	if c.cfg.Redelivery.Initial <= 0 {
		return 0
	}
	attempt := 0
	if d.numDelivered > 1 {
		attempt = int(d.numDelivered - 1)
	}
	return c.cfg.Redelivery.Duration(attempt)
}

type delivery struct {
	streamSeq    uint64
	numDelivered uint64
}

func deliveryInfo(msg jetstream.Msg) delivery {
	meta, err := msg.Metadata()
	if err != nil || meta == nil {
		return delivery{}
	}
	return delivery{streamSeq: meta.Sequence.Stream, numDelivered: meta.NumDelivered}
}

func eventLog(ev *zerolog.Event, event *models.AuditEvent, d delivery) *zerolog.Event {
	return ev.
		Str("event_type", event.EventType).
		Str("actor", event.Actor()).
		Str("server_hostname", event.ServerHostname).
		Uint64("stream_seq", d.streamSeq).
		Uint64("deliveries", d.numDelivered)
}

// checkContentType counts a message that does not declare JSON and notes it
// at debug level; the body is parsed regardless.
func checkContentType(ctx context.Context, msg jetstream.Msg) {
	ct := msg.Headers().Get("Content-Type")
	if strings.HasPrefix(ct, ContentTypeJSON) {
		return
	}
	metrics.RecordMissingJSONContentType()
	logging.Ctx(ctx).Debug().Str("content_type", ct).Msg("Message does not declare a JSON content type")
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	metrics.SetConsumerState(s.String())
}

func (c *Consumer) setBroker(connected bool) {
	if c.broker != nil {
		c.broker.SetBrokerConnected(connected)
	}
}

func (c *Consumer) setAlive(alive bool) {
	if c.liveness != nil {
		c.liveness.SetConsumerAlive(alive)
	}
}
