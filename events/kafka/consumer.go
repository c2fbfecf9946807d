package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// DefaultCatalogTopic is the topic the catalog service announces changes on
const DefaultCatalogTopic = "prize-catalog-events"

// CatalogEvent announces a prize catalog change made outside this service.
// The payload carries only the affected prize; consumers drop their cache
// and refetch on next read.
type CatalogEvent struct {
	Type      string    `json:"type"` // created, updated, deleted
	PrizeID   string    `json:"prize_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CatalogChangeHandler is invoked for every catalog change event
type CatalogChangeHandler func(event CatalogEvent)

// Consumer follows the catalog change topic and notifies handlers so the
// local catalog cache can be invalidated promptly instead of waiting for
// its TTL to expire.
type Consumer struct {
	reader *kafka.Reader
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	handlers []CatalogChangeHandler
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Logger        zerolog.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	topic := config.Topic
	if topic == "" {
		topic = DefaultCatalogTopic
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{
		reader: reader,
		logger: config.Logger.With().Str("component", "kafka-consumer").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnCatalogChange registers a handler for catalog change events.
// Handlers must not block; they run on the consumer goroutine.
func (c *Consumer) OnCatalogChange(handler CatalogChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Start begins consuming messages
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go c.consume()
	c.logger.Info().Msg("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info().Msg("Stopping Kafka consumer...")
	c.cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Error closing Kafka reader")
		return err
	}

	c.logger.Info().Msg("Kafka consumer stopped")
	return nil
}

// consume is the main consumer loop
func (c *Consumer) consume() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			msg, err := c.reader.FetchMessage(c.ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				c.logger.Error().Err(err).Msg("Error fetching message from Kafka")
				time.Sleep(time.Second)
				continue
			}

			if err := c.handleMessage(msg); err != nil {
				c.logger.Error().
					Err(err).
					Str("topic", msg.Topic).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Error handling message")
			}

			if err := c.reader.CommitMessages(c.ctx, msg); err != nil {
				c.logger.Error().Err(err).Msg("Error committing message")
			}
		}
	}
}

// handleMessage processes a single Kafka message
func (c *Consumer) handleMessage(msg kafka.Message) error {
	var event CatalogEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	c.logger.Debug().
		Str("type", event.Type).
		Str("prize_id", event.PrizeID).
		Msg("Catalog change received")

	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}
