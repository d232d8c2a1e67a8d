// Package kafka publishes goGuard audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	goGuard "github.com/MrEthical07/goGuard"
)

type syncProducer interface {
	SendMessage(*sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// Options configures a Sink.
type Options struct {
	Producer     syncProducer
	Topic        string
	RetryMax     int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Sink is a goGuard.AuditSink that publishes each event as JSON keyed by
// operation. Events without an operation are keyed by channel, so one
// partition sees every global emergency action in order.
type Sink struct {
	producer     syncProducer
	topic        string
	retryMax     int
	retryBackoff time.Duration
	logger       *zap.Logger
	failed       atomic.Uint64
}

var _ goGuard.AuditSink = (*Sink)(nil)

func NewSink(opts Options) (*Sink, error) {
	if opts.Producer == nil {
		return nil, errors.New("kafka audit sink: producer required")
	}
	if opts.Topic == "" {
		return nil, errors.New("kafka audit sink: topic required")
	}
	retryMax := opts.RetryMax
	if retryMax <= 0 {
		retryMax = 3
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		producer:     opts.Producer,
		topic:        opts.Topic,
		retryMax:     retryMax,
		retryBackoff: backoff,
		logger:       logger.Named("audit.kafka"),
	}, nil
}

// NewSyncProducer dials brokers with settings suited to audit delivery.
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 3
	return sarama.NewSyncProducer(brokers, cfg)
}

// Emit publishes event. Failures are logged and counted; the engine never
// sees them.
func (s *Sink) Emit(ctx context.Context, event goGuard.AuditEvent) {
	if err := s.Publish(ctx, event); err != nil {
		s.failed.Add(1)
		s.logger.Error("audit publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("channel", event.Channel),
			zap.Error(err),
		)
	}
}

// Publish sends event, retrying with doubling backoff.
func (s *Sink) Publish(ctx context.Context, event goGuard.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := event.Operation
	if key == "" {
		key = event.Channel
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.EventType)},
			{Key: []byte("channel"), Value: []byte(event.Channel)},
		},
		Timestamp: event.Timestamp,
	}

	var lastErr error
	backoff := s.retryBackoff
	for attempt := 0; attempt < s.retryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, _, lastErr = s.producer.SendMessage(msg); lastErr == nil {
			return nil
		}
		if attempt+1 == s.retryMax {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("send audit event: %w", lastErr)
}

// Failed returns the number of events that could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

func (s *Sink) Close() error {
	return s.producer.Close()
}
