// Package providers defines the external dependency interfaces of the
// reward module. Implementations live under the provider package; tests
// supply in-memory fakes.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Store implementations when a key is absent.
// Callers treat it as "no state yet", not as a failure.
var ErrNotFound = errors.New("providers: not found")

// Store is the persistence interface for reward state and configuration.
// Values are stored as JSON documents under string keys.
type Store interface {
	// GetJSON loads the value under key into dest.
	// Returns ErrNotFound when the key does not exist.
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON stores value under key without expiration.
	SetJSON(ctx context.Context, key string, value interface{}) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// PrizeRecord is a prize catalog entry as served by the catalog service
type PrizeRecord struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tier        string          `json:"tier"`
	Odds        int             `json:"odds"` // display-only percentage, not used by the resolver
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"isActive"`
	Value       decimal.Decimal `json:"value"` // retail value, informational
}

// PrizeInput is the payload for creating or updating a catalog entry
type PrizeInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tier        string          `json:"tier"`
	Odds        int             `json:"odds"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"isActive"`
	Value       decimal.Decimal `json:"value"`
}

// CatalogProvider fronts the prize catalog service
type CatalogProvider interface {
	// ListPrizes returns all catalog entries, possibly from a local cache
	ListPrizes(ctx context.Context) ([]PrizeRecord, error)

	// CreatePrize adds a catalog entry
	CreatePrize(ctx context.Context, input *PrizeInput) (*PrizeRecord, error)

	// UpdatePrize replaces the entry with the given ID
	UpdatePrize(ctx context.Context, id string, input *PrizeInput) (*PrizeRecord, error)

	// DeletePrize removes the entry with the given ID
	DeletePrize(ctx context.Context, id string) error

	// Invalidate drops any cached catalog data
	Invalidate()
}

// Game status values as reported by the game service
const (
	GameStatusPlaying  = "playing"
	GameStatusFinished = "finished"
)

// GameStatus is the subset of game data the reward module cares about
type GameStatus struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// IsFinished reports whether the game has completed
func (g *GameStatus) IsFinished() bool {
	return g.Status == GameStatusFinished
}

// GameProvider fronts the game service used to check spin eligibility
type GameProvider interface {
	GetGame(ctx context.Context, gameID string) (*GameStatus, error)
}
