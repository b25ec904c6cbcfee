package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/quorum/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing status change events to NATS.
type Publisher interface {
	// PublishStatusChange publishes a single event to "multisig.{account}".
	PublishStatusChange(ctx context.Context, event *StatusChangeEvent) error

	// PublishStatusChanges publishes every event and reports the ones that failed.
	PublishStatusChanges(ctx context.Context, events []*StatusChangeEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes status change events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for multisig events.
	StreamName = "MULTISIG"

	// SubjectPrefix prefixes every account subject.
	SubjectPrefix = "multisig"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + ".*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 30 * 24 * time.Hour
)

// NewPublisher connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("quorum-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// WithMetrics makes the publisher record publish metrics.
func (p *JetStreamPublisher) WithMetrics(m *metrics.Metrics) *JetStreamPublisher {
	p.metrics = m
	return p
}

func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Status changes of multisig account transactions",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := p.js.CreateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishStatusChange publishes a single event. The event id doubles as the
// JetStream message id so redelivered activity attempts are deduplicated.
func (p *JetStreamPublisher) PublishStatusChange(ctx context.Context, event *StatusChangeEvent) error {
	subject := event.Subject()
	start := time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status change event: %w", err)
	}

	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.EventID))
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish status change: %w", err)
	}

	p.logger.Debug("published status change",
		"subject", subject,
		"transaction_id", event.TransactionID,
		"status", event.Status,
	)

	return nil
}

// PublishStatusChanges publishes every event, continuing past failures.
func (p *JetStreamPublisher) PublishStatusChanges(ctx context.Context, events []*StatusChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for _, event := range events {
		if err := p.PublishStatusChange(ctx, event); err != nil {
			p.logger.Error("failed to publish status change in batch",
				"account", event.Account,
				"transaction_id", event.TransactionID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	p.logger.Debug("published status change batch",
		"count", len(events),
		"failed", len(errs),
	)

	return errors.Join(errs...)
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
