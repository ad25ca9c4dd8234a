package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"listingwatch/config"
	"listingwatch/types"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Kafka publishes each event as a JSON message keyed by the event ID.
// The producer is asynchronous; Notify waits for the broker acknowledgement
// and holds a lock so at most one message is in flight.
type Kafka struct {
	producer sarama.AsyncProducer
	topic    string
	mu       sync.Mutex
	logger   *zap.Logger
}

func newKafkaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.ClientID = "listingwatch"
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Retry.Backoff = 500 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	return saramaConfig
}

// NewKafka returns ErrNotConfigured when no brokers are set
func NewKafka(cfg config.KafkaConfig, logger *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: %w", ErrNotConfigured)
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newKafkaWithProducer(producer, cfg.Topic, logger), nil
}

func newKafkaWithProducer(producer sarama.AsyncProducer, topic string, logger *zap.Logger) *Kafka {
	if topic == "" {
		topic = config.DefaultKafkaTopic
	}
	return &Kafka{producer: producer, topic: topic, logger: logger.Named("kafka")}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Notify(ctx context.Context, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
			{Key: []byte("source"), Value: []byte(event.Source)},
		},
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	select {
	case k.producer.Input() <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case ack := <-k.producer.Successes():
			if ack == nil {
				return fmt.Errorf("kafka producer closed")
			}
			if ack != msg {
				// Late acknowledgement of a message whose caller gave up.
				continue
			}
			k.logger.Debug("Event published", zap.String("topic", k.topic), zap.String("id", event.ID))
			return nil
		case perr := <-k.producer.Errors():
			if perr == nil {
				return fmt.Errorf("kafka producer closed")
			}
			if perr.Msg != msg {
				continue
			}
			return fmt.Errorf("publish to %s: %w", k.topic, perr.Err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close flushes and shuts the producer down
func (k *Kafka) Close() error {
	return k.producer.Close()
}
