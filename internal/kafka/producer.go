package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/domain"
)

// Producer publishes score submissions to Kafka asynchronously
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
	sent     atomic.Int64
	failed   atomic.Int64
}

// NewSaramaConfig returns the producer settings used for score traffic.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Flush.Messages = 100
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

// NewProducer connects an async producer to the configured brokers
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	p, err := sarama.NewAsyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return NewProducerWith(p, cfg.Topic, logger), nil
}

// NewProducerWith wraps an existing async producer. Successes and errors
// must be enabled on it.
func NewProducerWith(p sarama.AsyncProducer, topic string, logger *slog.Logger) *Producer {
	pr := &Producer{
		producer: p,
		topic:    topic,
		logger:   logger,
	}

	pr.wg.Add(2)
	go func() {
		defer pr.wg.Done()
		for range p.Successes() {
			pr.sent.Add(1)
		}
	}()
	go func() {
		defer pr.wg.Done()
		for err := range p.Errors() {
			pr.failed.Add(1)
			pr.logger.Warn("producer error", "error", err)
		}
	}()
	return pr
}

// Publish queues one submission, keyed by session so a run's retries land
// on the same partition.
func (p *Producer) Publish(ctx context.Context, submission domain.ScoreSubmission) error {
	data, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshaling score message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(submission.SessionID),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns acknowledged and failed message counts.
func (p *Producer) Stats() (sent, failed int64) {
	return p.sent.Load(), p.failed.Load()
}

// Close flushes in-flight messages and waits for their acknowledgements
func (p *Producer) Close() {
	p.producer.AsyncClose()
	p.wg.Wait()
}
