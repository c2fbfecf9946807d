// Package feed batches reward events and fans them out to live listeners.
// It is transport-agnostic: the server wires SSE and WebSocket routes and
// subscribes via Listen().
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFlushInterval is the default interval for flushing buffered updates
const DefaultFlushInterval = 2 * time.Second

// Service buffers reward events and broadcasts them on a fixed interval.
// Unlike a last-write-wins cache, the buffer is an ordered list: every roll
// and delivery matters to an admin watching the feed, so nothing is
// coalesced.
type Service struct {
	mu       sync.Mutex
	buffer   []Update
	broad    *Broadcaster
	logger   zerolog.Logger
	interval time.Duration
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates a feed service and starts its flush loop.
func NewService(cfg ServiceConfig) *Service {
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	s := &Service{
		broad:    NewBroadcaster(128),
		logger:   cfg.Logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
	s.start()
	return s
}

// Publish buffers an update for the next flush.
func (s *Service) Publish(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, update)
	s.mu.Unlock()
}

// Listen returns a channel to receive flushed updates plus a cancel function.
func (s *Service) Listen(ctx context.Context) (<-chan Update, context.CancelFunc) {
	return s.broad.Listen(ctx)
}

// Stop stops the flush loop. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopChan)
	})
}

func (s *Service) start() {
	s.ticker = time.NewTicker(s.interval)
	go s.loop()
}

func (s *Service) loop() {
	for {
		select {
		case <-s.stopChan:
			return
		case <-s.ticker.C:
			s.flush()
		}
	}
}

// flush broadcasts buffered updates in publish order and clears the buffer.
func (s *Service) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	updates := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	for _, u := range updates {
		s.broad.Send(u)
	}
	if s.logger.GetLevel() <= zerolog.DebugLevel {
		s.logger.Debug().Int("count", len(updates)).Msg("flushed feed updates")
	}
}
