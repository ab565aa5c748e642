package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// MessageReader is the consumer side of a Kafka topic.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter is the producer side of the dead-letter topic.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs one pipeline run per trigger in each message, in order.
// Messages whose runs fail are copied to the dead-letter topic before the
// offset is committed. A run stopped by shutdown is neither dead-lettered
// nor committed, so the message is redelivered.
type Consumer struct {
	reader      MessageReader
	dlq         MessageWriter
	proc        Processor
	dlqAttempts int
	dlqBackoff  time.Duration
	logger      *slog.Logger
}

// NewKafkaConsumer connects a Consumer to the configured brokers.
func NewKafkaConsumer(cfg *KafkaConfig, proc Processor, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})

	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}

	c := NewConsumer(reader, dlq, proc, logger)
	c.dlqAttempts = cfg.DLQAttempts
	c.dlqBackoff = cfg.DLQBackoffDuration()
	c.logger = c.logger.With("topic", cfg.Topic, "group", cfg.GroupID, "dlq_topic", cfg.DLQTopic)
	return c
}

// NewConsumer creates a Consumer over an existing reader and writer.
func NewConsumer(reader MessageReader, dlq MessageWriter, proc Processor, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		dlq:         dlq,
		proc:        proc,
		dlqAttempts: 5,
		dlqBackoff:  time.Second,
		logger:      logger.With("system", "trigger", "source", "kafka"),
	}
}

// WithDLQBackoff sets the dead-letter retry policy.
func (c *Consumer) WithDLQBackoff(attempts int, base time.Duration) *Consumer {
	c.dlqAttempts = attempts
	c.dlqBackoff = base
	return c
}

// Start runs the consumer as a lifecycle worker and closes the reader and
// writer on shutdown.
func (c *Consumer) Start(lc *lifecycle.Coordinator) error {
	lc.Go(func(ctx context.Context) {
		if err := c.Run(ctx); err != nil {
			c.logger.Error("kafka consumer stopped", "error", err)
		}
	})

	lc.OnShutdown("kafka", func(context.Context) error {
		if err := errors.Join(c.reader.Close(), c.dlq.Close()); err != nil {
			return err
		}
		c.logger.Info("kafka consumer stopped")
		return nil
	})

	return nil
}

// Run fetches and handles messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("fetch message", "error", err)
			continue
		}

		if !c.Handle(ctx, msg) {
			return nil
		}
	}
}

// Handle processes one message and commits it unless shutdown interrupted
// it. It reports false when the consumer should stop.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) bool {
	logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset)

	err := c.process(ctx, msg)
	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		logger.Info("run interrupted by shutdown, leaving message uncommitted")
		return false
	case err != nil:
		logger.Warn("message failed, sending to dead-letter topic", "error", err)
		if !c.deadLetter(ctx, msg, err) {
			logger.Error("dead-letter write exhausted retries, leaving message uncommitted")
			return ctx.Err() == nil
		}
	}

	if cerr := c.reader.CommitMessages(ctx, msg); cerr != nil {
		logger.Error("commit message", "error", cerr)
	}
	return true
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	triggers, err := Decode(msg.Value)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range triggers {
		run, err := c.proc.Run(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Key, err))
			continue
		}
		c.logger.InfoContext(ctx, "run persisted", "run_id", run.ID, "key", t.Key)
	}
	return errors.Join(errs...)
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) bool {
	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range c.dlqAttempts {
		err := c.dlq.WriteMessages(ctx, out)
		if err == nil {
			c.logger.Info("message sent to dead-letter topic",
				"partition", msg.Partition, "offset", msg.Offset, "attempt", attempt+1)
			return true
		}

		backoff := c.dlqBackoff * time.Duration(1<<attempt)
		c.logger.Warn("dead-letter write failed, retrying",
			"error", err, "attempt", attempt+1, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
	}
	return false
}
