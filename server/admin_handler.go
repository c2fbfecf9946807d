package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Digital-Creators-Team/reward-roulette-module/auth"
	"github.com/Digital-Creators-Team/reward-roulette-module/errors"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/feed"
	"github.com/Digital-Creators-Team/reward-roulette-module/reward"
)

// AdminHandler handles the admin-facing reward and catalog requests.
//
// Authorization semantics for ledger mutations follow the reference
// dashboard: a non-admin caller is not rejected with an error, the
// operation is skipped with a logged warning and the unchanged state is
// returned. Catalog and config writes reuse the same gate.
type AdminHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(app *App) *AdminHandler {
	return &AdminHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "admin").Logger(),
	}
}

// requireAdmin reports whether the caller is an admin, logging a warning
// when not. Callers decide how to degrade.
func (h *AdminHandler) requireAdmin(c *gin.Context, operation string) bool {
	if auth.IsAdmin(c) {
		return true
	}
	userID, _ := auth.GetUserID(c)
	h.logger.Warn().
		Str("user_id", userID).
		Str("operation", operation).
		Msg("non-admin attempted admin operation, ignoring")
	return false
}

// GrantRollsRequest is the payload for an admin roll grant
type GrantRollsRequest struct {
	Count int `json:"count" binding:"required"`
}

// GrantRolls godoc
// @Summary      Grant extra rolls
// @Description  Adds rolls to a game. Non-admin callers get the unchanged state back.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        game_id  path      string             true  "Game ID"
// @Param        request  body      GrantRollsRequest  true  "Grant request"
// @Success      200  {object}  BaseResponse{data=reward.State}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id}/grant [post]
func (h *AdminHandler) GrantRolls(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("game_id")

	var req GrantRollsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid grant request"))
		return
	}

	if !h.requireAdmin(c, "grant_rolls") {
		state, err := h.app.ledger.GetState(ctx, gameID)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		OK(c, state)
		return
	}

	state, err := h.app.ledger.GrantRolls(ctx, gameID, req.Count)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	adminID, _ := auth.GetUserID(c)
	h.app.publishEvent(feed.Update{
		Type:   feed.UpdateTypeGrant,
		GameID: gameID,
		Count:  req.Count,
		Actor:  adminID,
	})

	OK(c, state)
}

// MarkDelivered godoc
// @Summary      Mark a prize as delivered
// @Description  Marks a won roll as physically handed over. Idempotent; non-admin callers get the unchanged state back.
// @Tags         admin
// @Produce      json
// @Param        game_id  path      string  true  "Game ID"
// @Param        roll_id  path      string  true  "Roll ID"
// @Success      200  {object}  BaseResponse{data=reward.State}
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id}/rolls/{roll_id}/deliver [post]
func (h *AdminHandler) MarkDelivered(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("game_id")
	rollID := c.Param("roll_id")

	if !h.requireAdmin(c, "mark_delivered") {
		state, err := h.app.ledger.GetState(ctx, gameID)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		OK(c, state)
		return
	}

	adminID, err := extractUserID(c)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	roll, state, changed, err := h.app.ledger.MarkDelivered(ctx, gameID, rollID, adminID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if changed {
		h.app.publishEvent(feed.Update{
			Type:   feed.UpdateTypeDelivery,
			GameID: gameID,
			RollID: roll.ID,
			Tier:   string(roll.Tier),
			Actor:  adminID,
		})
	}

	OK(c, state)
}

// ClearState godoc
// @Summary      Clear a game's reward state
// @Description  Removes all reward data for a game. Non-admin callers get the unchanged state back.
// @Tags         admin
// @Produce      json
// @Param        game_id  path      string  true  "Game ID"
// @Success      200  {object}  BaseResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/{game_id} [delete]
func (h *AdminHandler) ClearState(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := c.Param("game_id")

	if !h.requireAdmin(c, "clear_state") {
		state, err := h.app.ledger.GetState(ctx, gameID)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		OK(c, state)
		return
	}

	if err := h.app.ledger.ClearState(ctx, gameID); err != nil {
		HandleAppError(c, err)
		return
	}

	OK(c, gin.H{"gameId": gameID, "cleared": true})
}

// ConfigResponse is the roulette configuration with the delivered-value summary
type ConfigResponse struct {
	Odds            map[reward.Tier]float64 `json:"odds"`
	DeliveredCounts map[reward.Tier]int     `json:"deliveredCounts"`
	DeliveredValue  decimal.Decimal         `json:"deliveredValue"`
}

// GetConfig godoc
// @Summary      Get roulette configuration
// @Description  Returns the per-tier odds, delivered tallies and the estimated delivered retail value
// @Tags         admin
// @Produce      json
// @Success      200  {object}  BaseResponse{data=ConfigResponse}
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/config [get]
func (h *AdminHandler) GetConfig(c *gin.Context) {
	config, err := h.app.ledger.GetConfig(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}

	OK(c, ConfigResponse{
		Odds:            config.Odds,
		DeliveredCounts: config.DeliveredCounts,
		DeliveredValue:  h.deliveredValue(config),
	})
}

// deliveredValue estimates the retail value handed out so far, using the
// per-tier reference values from config
func (h *AdminHandler) deliveredValue(config *reward.Config) decimal.Decimal {
	total := decimal.Zero
	for name, value := range h.app.config.Roulette.TierValues {
		tier, err := reward.ParseTier(name)
		if err != nil {
			continue
		}
		count := config.DeliveredCounts[tier]
		if count == 0 {
			continue
		}
		total = total.Add(decimal.NewFromFloat(value).Mul(decimal.NewFromInt(int64(count))))
	}
	return total
}

// UpdateOddsRequest is the payload for an odds update
type UpdateOddsRequest struct {
	Odds map[string]float64 `json:"odds" binding:"required"`
}

// UpdateOdds godoc
// @Summary      Update roulette odds
// @Description  Replaces the per-tier win odds. Negative values are clamped to zero. Non-admin callers get the unchanged config back.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      UpdateOddsRequest  true  "New odds"
// @Success      200  {object}  BaseResponse{data=reward.Config}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /rewards/config [put]
func (h *AdminHandler) UpdateOdds(c *gin.Context) {
	ctx := c.Request.Context()

	var req UpdateOddsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid odds request"))
		return
	}

	if !h.requireAdmin(c, "update_odds") {
		config, err := h.app.ledger.GetConfig(ctx)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		OK(c, config)
		return
	}

	odds := make(map[reward.Tier]float64, len(req.Odds))
	for name, p := range req.Odds {
		tier, err := reward.ParseTier(name)
		if err != nil {
			BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid tier in odds"))
			return
		}
		odds[tier] = p
	}

	config, err := h.app.ledger.UpdateOdds(ctx, odds)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, config)
}

// ListCatalog godoc
// @Summary      List prize catalog
// @Description  Returns the prize catalog, served from a short-lived local cache
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  BaseResponse{data=[]PrizeRecord}
// @Failure      502  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /catalog [get]
func (h *AdminHandler) ListCatalog(c *gin.Context) {
	if h.app.catalogProvider == nil {
		HandleAppError(c, errors.New(errors.ErrCatalogError, "catalog service not configured"))
		return
	}

	prizes, err := h.app.catalogProvider.ListPrizes(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, prizes)
}

// CreateCatalogEntry godoc
// @Summary      Create a catalog entry
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        request  body      PrizeInput  true  "Prize"
// @Success      201  {object}  BaseResponse{data=PrizeRecord}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /catalog [post]
func (h *AdminHandler) CreateCatalogEntry(c *gin.Context) {
	if !h.requireAdmin(c, "create_catalog_entry") {
		h.ListCatalog(c)
		return
	}
	if h.app.catalogProvider == nil {
		HandleAppError(c, errors.New(errors.ErrCatalogError, "catalog service not configured"))
		return
	}

	var input PrizeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid prize payload"))
		return
	}

	prize, err := h.app.catalogProvider.CreatePrize(c.Request.Context(), &input)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	Created(c, prize)
}

// UpdateCatalogEntry godoc
// @Summary      Update a catalog entry
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        prize_id  path      string      true  "Prize ID"
// @Param        request   body      PrizeInput  true  "Prize"
// @Success      200  {object}  BaseResponse{data=PrizeRecord}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /catalog/{prize_id} [put]
func (h *AdminHandler) UpdateCatalogEntry(c *gin.Context) {
	if !h.requireAdmin(c, "update_catalog_entry") {
		h.ListCatalog(c)
		return
	}
	if h.app.catalogProvider == nil {
		HandleAppError(c, errors.New(errors.ErrCatalogError, "catalog service not configured"))
		return
	}

	var input PrizeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid prize payload"))
		return
	}

	prize, err := h.app.catalogProvider.UpdatePrize(c.Request.Context(), c.Param("prize_id"), &input)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, prize)
}

// DeleteCatalogEntry godoc
// @Summary      Delete a catalog entry
// @Tags         catalog
// @Produce      json
// @Param        prize_id  path      string  true  "Prize ID"
// @Success      204  "No Content"
// @Failure      502  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /catalog/{prize_id} [delete]
func (h *AdminHandler) DeleteCatalogEntry(c *gin.Context) {
	if !h.requireAdmin(c, "delete_catalog_entry") {
		h.ListCatalog(c)
		return
	}
	if h.app.catalogProvider == nil {
		HandleAppError(c, errors.New(errors.ErrCatalogError, "catalog service not configured"))
		return
	}

	if err := h.app.catalogProvider.DeletePrize(c.Request.Context(), c.Param("prize_id")); err != nil {
		HandleAppError(c, err)
		return
	}
	NoContent(c)
}
