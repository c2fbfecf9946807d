package feed

import (
	"time"

	"github.com/rs/zerolog"
)

// Update types pushed to the admin live feed
const (
	UpdateTypeRoll     = "roll"
	UpdateTypeDelivery = "delivery"
	UpdateTypeGrant    = "grant"
)

// Update is one reward event as seen by feed listeners.
type Update struct {
	Type      string    `json:"type"`
	GameID    string    `json:"gameId"`
	RollID    string    `json:"rollId,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Count     int       `json:"count,omitempty"` // granted rolls, for grant updates
	Actor     string    `json:"actor,omitempty"` // admin ID for delivery/grant updates
	Timestamp time.Time `json:"timestamp"`
}

// ServiceConfig configures the feed service.
type ServiceConfig struct {
	// FlushInterval controls how often buffered updates are flushed to listeners.
	FlushInterval time.Duration

	// Logger is optional; if zero value, a no-op logger is used.
	Logger zerolog.Logger
}
