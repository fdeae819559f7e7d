package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
)

const clientID = "wow-auth"

// Producer publishes security events through a sarama AsyncProducer. Delivery is
// fire-and-forget: failures are logged and counted, never returned to the caller.
type Producer struct {
	async  sarama.AsyncProducer
	prefix string
	logger *zap.Logger

	failures  atomic.Int64
	stop      chan struct{}
	closeOnce sync.Once
}

// NewProducer dials the configured brokers.
func NewProducer(cfg config.KafkaSettings, log *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("create kafka producer: no brokers configured")
	}

	async, err := sarama.NewAsyncProducer(cfg.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(async, cfg, log)
	p.logger.Info("kafka producer connected",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

// producerConfig favours latency over durability; lost audit events are tolerated.
func producerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.ClientID = clientID

	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 100 * time.Millisecond
	c.Producer.Flush.Messages = 100
	c.Producer.Retry.Max = 3
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true

	c.Metadata.Retry.Max = 3
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Producer{
		async:  async,
		prefix: strings.TrimSuffix(strings.TrimSpace(cfg.TopicPrefix), "."),
		logger: log,
		stop:   make(chan struct{}),
	}
	go p.watchDeliveries()
	return p
}

func (p *Producer) watchDeliveries() {
	for {
		select {
		case perr, ok := <-p.async.Errors():
			if !ok {
				return
			}
			if perr == nil {
				continue
			}
			p.failures.Add(1)
			fields := []zap.Field{zap.Error(perr.Err)}
			if perr.Msg != nil {
				fields = append(fields, zap.String("topic", perr.Msg.Topic))
			}
			p.logger.Error("security event delivery failed", fields...)
		case <-p.stop:
			return
		}
	}
}

// Send queues value on the topic for eventType, keyed so one user's events stay
// ordered within a partition. It blocks only while the input queue is full.
func (p *Producer) Send(ctx context.Context, eventType, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	select {
	case p.async.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return fmt.Errorf("kafka producer closed")
	}
}

// DeliveryFailures reports how many queued events the brokers rejected.
func (p *Producer) DeliveryFailures() int64 {
	return p.failures.Load()
}

// Close flushes queued events. Calling it more than once is a no-op.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stop)
		if cerr := p.async.Close(); cerr != nil {
			err = fmt.Errorf("close kafka producer: %w", cerr)
		}
		p.logger.Info("kafka producer closed", zap.Int64("delivery_failures", p.failures.Load()))
	})
	return err
}

// TopicName prefixes eventType unless it already carries the prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	prefix := p.prefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
