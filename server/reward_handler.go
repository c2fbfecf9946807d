package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Digital-Creators-Team/reward-roulette-module/auth"
	"github.com/Digital-Creators-Team/reward-roulette-module/errors"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/feed"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
	"github.com/Digital-Creators-Team/reward-roulette-module/reward"
)

// RewardHandler handles the player-facing reward HTTP requests
//
// Flow: HTTP Request -> rewardRoutes -> RewardHandler -> reward.Ledger -> Store
//
// Responsibilities:
// - Extract user info from JWT token
// - Validate request parameters and spin eligibility
// - Call the ledger for business logic
// - Format and return HTTP responses
type RewardHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewRewardHandler creates a new reward handler
func NewRewardHandler(app *App) *RewardHandler {
	return &RewardHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "reward").Logger(),
	}
}

// SpinResponse is the payload returned from a successful spin
type SpinResponse struct {
	Roll  *reward.Roll  `json:"roll"`
	State *reward.State `json:"state"`
}

// Spin godoc
// @Summary      Execute a roulette spin
// @Description  Consumes one available roll and resolves it into a prize tier. The game must be finished.
// @Tags         rewards
// @Accept       json
// @Produce      json
// @Param        game_id   path      string  true  "Game ID"
// @Success      200  {object}  BaseResponse{data=SpinResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id}/spin [post]
func (h *RewardHandler) Spin(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("game_id")

	if err := h.checkGameFinished(c, gameID); err != nil {
		HandleAppError(c, err)
		return
	}

	roll, state, err := h.app.ledger.Spin(ctx, gameID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.app.publishEvent(feed.Update{
		Type:   feed.UpdateTypeRoll,
		GameID: gameID,
		RollID: roll.ID,
		Tier:   string(roll.Tier),
	})

	OK(c, SpinResponse{Roll: roll, State: state})
}

// checkGameFinished refuses spins while the game is still in progress.
// With no game provider configured the check is skipped.
func (h *RewardHandler) checkGameFinished(c *gin.Context, gameID string) error {
	provider := h.app.gameProvider
	if provider == nil {
		h.logger.Debug().Str("game_id", gameID).Msg("game provider not set, skipping eligibility check")
		return nil
	}

	game, err := provider.GetGame(c.Request.Context(), gameID)
	if err != nil {
		return err
	}
	if !game.IsFinished() {
		return errors.NewWithDebug(
			errors.ErrGameNotFinished,
			"game is not finished",
			"spins unlock once the game status is finished",
		)
	}
	return nil
}

// GetState godoc
// @Summary      Get reward state
// @Description  Returns the reward state for a game, creating a default one if none exists
// @Tags         rewards
// @Produce      json
// @Param        game_id   path      string  true  "Game ID"
// @Success      200  {object}  BaseResponse{data=reward.State}
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id}/state [get]
func (h *RewardHandler) GetState(c *gin.Context) {
	state, err := h.app.ledger.GetState(c.Request.Context(), c.Param("game_id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, state)
}

// CompleteStep godoc
// @Summary      Credit an engagement step
// @Description  Credits one roll for a social-engagement step. Idempotent per step and game.
// @Tags         rewards
// @Accept       json
// @Produce      json
// @Param        game_id   path      string  true  "Game ID"
// @Param        step_id   path      string  true  "Step"  Enums(register, follow, share)
// @Success      200  {object}  BaseResponse{data=reward.State}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id}/steps/{step_id} [post]
func (h *RewardHandler) CompleteStep(c *gin.Context) {
	gameID := c.Param("game_id")
	step := reward.Step(c.Param("step_id"))

	state, changed, err := h.app.ledger.CompleteStep(c.Request.Context(), gameID, step)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if !changed {
		h.logger.Debug().
			Str("game_id", gameID).
			Str("step", string(step)).
			Msg("step already credited")
	}

	OK(c, state)
}

// GetPrizes godoc
// @Summary      Get won prizes
// @Description  Returns the game's winning rolls partitioned into pending and claimed, with catalog display metadata
// @Tags         rewards
// @Produce      json
// @Param        game_id   path      string  true  "Game ID"
// @Success      200  {object}  BaseResponse{data=reward.PrizeSummary}
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id}/prizes [get]
func (h *RewardHandler) GetPrizes(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("game_id")

	state, err := h.app.ledger.GetState(ctx, gameID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	// Catalog staleness or outage degrades to the built-in prize labels
	var catalog []providers.PrizeRecord
	if h.app.catalogProvider != nil {
		catalog, err = h.app.catalogProvider.ListPrizes(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("catalog unavailable, using fallback prize labels")
			catalog = nil
		}
	}

	OK(c, reward.Summarize(state, catalog))
}

// extractUserID extracts user ID from gin context
func extractUserID(c *gin.Context) (string, error) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return "", errors.New(errors.ErrUnauthorized, "user_id not found in context")
	}
	return userID, nil
}
