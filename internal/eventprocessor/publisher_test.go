// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/models"
	"github.com/tomtom215/auditsentinel/internal/resilience"
)

func testAlert(t *testing.T) *models.Alert {
	t.Helper()
	ev, err := models.ParseAuditEvent([]byte(shadowBody))
	if err != nil {
		t.Fatal(err)
	}
	return models.NewAlert("audit-analysis", ev, models.AlertSpec{
		Name:     "Sensitive File Modification Detected",
		Severity: models.SeverityCritical,
		Rule:     models.AnalysisRule{RuleID: "sensitive-file-modification", RuleName: "Sensitive File Modification"},
	}, time.Now())
}

type failingPublisher struct {
	calls int
}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.calls++
	return errors.New("no responders")
}

func (f *failingPublisher) Close() error { return nil }

func TestAlertPublisher_Publish(t *testing.T) {
	t.Parallel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, logging.NewWatermillAdapter("test"))
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, DefaultAlertsSubject)
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultPublisherConfig()
	cfg.Breaker.Name = "publisher-test"
	p := newAlertPublisher(pubSub, cfg)
	alert := testAlert(t)

	if err := p.Publish(ctx, alert); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != "evt-2:sensitive-file-modification" {
			t.Errorf("message UUID = %q", msg.UUID)
		}
		if got := msg.Metadata.Get(natsgo.MsgIdHdr); got != alert.DedupKey() {
			t.Errorf("Nats-Msg-Id = %q, want %q", got, alert.DedupKey())
		}
		if got := msg.Metadata.Get("Content-Type"); got != ContentTypeJSON {
			t.Errorf("Content-Type = %q", got)
		}
		var wire map[string]interface{}
		if err := json.Unmarshal(msg.Payload, &wire); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if wire["alert_id"] != alert.AlertID || wire["severity"] != models.SeverityCritical {
			t.Errorf("unexpected payload %v", wire)
		}
	case <-ctx.Done():
		t.Fatal("alert was not delivered")
	}
}

func TestAlertPublisher_Close(t *testing.T) {
	t.Parallel()

	cfg := DefaultPublisherConfig()
	cfg.Breaker.Name = "publisher-close-test"
	p := newAlertPublisher(gochannel.NewGoChannel(gochannel.Config{}, logging.NewWatermillAdapter("test")), cfg)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := p.Publish(context.Background(), testAlert(t)); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish after Close = %v, want ErrPublisherClosed", err)
	}
}

func TestAlertPublisher_BreakerFailsFast(t *testing.T) {
	t.Parallel()

	cfg := DefaultPublisherConfig()
	cfg.Breaker = resilience.DefaultBreakerConfig("publisher-breaker-test")
	cfg.Breaker.FailureThreshold = 2
	cfg.Breaker.Timeout = time.Minute

	inner := &failingPublisher{}
	p := newAlertPublisher(inner, cfg)
	alert := testAlert(t)

	for i := 0; i < 2; i++ {
		if err := p.Publish(context.Background(), alert); err == nil {
			t.Fatal("expected publish error")
		}
	}
	err := p.Publish(context.Background(), alert)
	if !resilience.IsBreakerOpen(err) {
		t.Errorf("expected open breaker, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner publisher called %d times, want 2", inner.calls)
	}
}

func TestAlertPublisher_CanceledContext(t *testing.T) {
	t.Parallel()

	cfg := DefaultPublisherConfig()
	cfg.Breaker.Name = "publisher-ctx-test"
	inner := &failingPublisher{}
	p := newAlertPublisher(inner, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, testAlert(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 0 {
		t.Error("canceled publish must not reach the broker")
	}
}
