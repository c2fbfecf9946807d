package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	apperrors "github.com/Digital-Creators-Team/reward-roulette-module/errors"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

// GameProvider fetches game state from the game service. Used to gate
// spins on game completion.
type GameProvider struct {
	client *resty.Client
	logger zerolog.Logger
}

var _ providers.GameProvider = (*GameProvider)(nil)

// GameProviderConfig configures the game provider
type GameProviderConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewGameProvider creates a game provider
func NewGameProvider(cfg GameProviderConfig) *GameProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &GameProvider{
		client: client,
		logger: cfg.Logger.With().Str("component", "game-provider").Logger(),
	}
}

type gameEnvelope struct {
	Data providers.GameStatus `json:"data"`
}

// GetGame returns the status of a game
func (p *GameProvider) GetGame(ctx context.Context, gameID string) (*providers.GameStatus, error) {
	var envelope gameEnvelope

	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&envelope).
		SetPathParam("gameId", gameID).
		Get("/games/{gameId}")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrGameServiceError, "game service unreachable")
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, apperrors.NewWithDebug(
			apperrors.ErrNotFound,
			"game not found",
			fmt.Sprintf("game %s does not exist", gameID),
		)
	}
	if resp.IsError() {
		return nil, apperrors.NewWithDebug(
			apperrors.ErrGameServiceError,
			"game service error",
			fmt.Sprintf("GET /games/%s returned %d", gameID, resp.StatusCode()),
		)
	}

	p.logger.Debug().
		Str("game_id", gameID).
		Str("status", envelope.Data.Status).
		Msg("fetched game status")

	return &envelope.Data, nil
}
