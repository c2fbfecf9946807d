package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Digital-Creators-Team/reward-roulette-module/auth"
	"github.com/Digital-Creators-Team/reward-roulette-module/config"
	"github.com/Digital-Creators-Team/reward-roulette-module/events/kafka"
	"github.com/Digital-Creators-Team/reward-roulette-module/middleware"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/feed"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
	"github.com/Digital-Creators-Team/reward-roulette-module/reward"
)

// App represents the reward service application
type App struct {
	engine          *gin.Engine
	config          *config.Config
	logger          zerolog.Logger
	ledger          *reward.Ledger
	store           providers.Store
	catalogProvider providers.CatalogProvider
	gameProvider    providers.GameProvider
	producer        *kafka.Producer
	feedService     *feed.Service
	httpServer      *http.Server
	onShutdown      []func()
	rewardHandler   *RewardHandler
	adminHandler    *AdminHandler
	feedHandler     *FeedHandler
}

// Options holds server configuration options
type Options struct {
	Config *config.Config
	Logger zerolog.Logger
}

// Router is an alias for gin.Engine for convenience
type Router = gin.Engine

// New creates a new reward service application
func New(opts Options) *App {
	// Configure decimal.Decimal to marshal as JSON number instead of string
	// WARNING: This may cause precision loss for decimals with many digits when
	// unmarshaled by clients using IEEE 754 double-precision (e.g., JavaScript)
	decimal.MarshalJSONWithoutQuotes = true

	// Set Gin mode
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	app := &App{
		engine: engine,
		config: opts.Config,
		logger: opts.Logger,
	}

	// Feed service (buffered + flush interval)
	app.feedService = feed.NewService(feed.ServiceConfig{
		FlushInterval: opts.Config.Roulette.FeedFlushInterval,
		Logger:        opts.Logger,
	})

	// Create handlers
	app.rewardHandler = NewRewardHandler(app)
	app.adminHandler = NewAdminHandler(app)
	app.feedHandler = NewFeedHandler(app, app.feedService)

	return app
}

// SetStore sets the persistence backend and builds the ledger on top of it
func (a *App) SetStore(store providers.Store) {
	a.store = store
	a.ledger = reward.NewLedger(store, a.logger,
		reward.WithDefaultOdds(a.defaultOdds()),
		reward.WithSpinCooldown(a.config.Roulette.SpinCooldown),
	)
}

// SetCatalogProvider sets the prize catalog provider
func (a *App) SetCatalogProvider(provider providers.CatalogProvider) {
	a.catalogProvider = provider
}

// SetGameProvider sets the game service provider used to gate spins
func (a *App) SetGameProvider(provider providers.GameProvider) {
	a.gameProvider = provider
	if provider == nil {
		a.logger.Warn().Msg("GameProvider set to nil, spin eligibility check disabled")
	}
}

// SetEventProducer sets the Kafka producer for reward events (nil = disabled)
func (a *App) SetEventProducer(producer *kafka.Producer) {
	a.producer = producer
}

// AttachCatalogChangeFeed subscribes the catalog cache to external change
// events so updates made outside this service invalidate the cache promptly.
func (a *App) AttachCatalogChangeFeed(consumer *kafka.Consumer) {
	if consumer == nil {
		return
	}
	consumer.OnCatalogChange(func(event kafka.CatalogEvent) {
		if a.catalogProvider != nil {
			a.catalogProvider.Invalidate()
		}
	})
}

func (a *App) defaultOdds() map[reward.Tier]float64 {
	odds := make(map[reward.Tier]float64, len(a.config.Roulette.DefaultOdds))
	for name, p := range a.config.Roulette.DefaultOdds {
		tier, err := reward.ParseTier(name)
		if err != nil {
			a.logger.Warn().Str("tier", name).Msg("ignoring unknown tier in default odds")
			continue
		}
		odds[tier] = p
	}
	return odds
}

// publishEvent fans a reward event out to the live feed and to Kafka
func (a *App) publishEvent(update feed.Update) {
	a.feedService.Publish(update)

	if a.producer == nil {
		return
	}

	var eventType string
	switch update.Type {
	case feed.UpdateTypeRoll:
		eventType = kafka.EventTypeRoll
	case feed.UpdateTypeDelivery:
		eventType = kafka.EventTypeDelivery
	case feed.UpdateTypeGrant:
		eventType = kafka.EventTypeGrant
	default:
		return
	}

	err := a.producer.PublishRewardEvent(kafka.RewardEvent{
		Type:      eventType,
		GameID:    update.GameID,
		RollID:    update.RollID,
		Tier:      update.Tier,
		Count:     update.Count,
		Actor:     update.Actor,
		Timestamp: update.Timestamp,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("type", eventType).Msg("failed to publish reward event")
	}
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))

	// Trace ID middleware
	a.engine.Use(middleware.TraceID())

	// Logging middleware
	a.engine.Use(middleware.Logging(a.logger))

	// CORS middleware if enabled
	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   a.config.Environment,
	})
}

// RegisterRewardRoutes registers the reward API routes
//
// Flow: HTTP Request -> RewardHandler/AdminHandler -> reward.Ledger -> Store
//
// Routes registered:
//   - POST   /api/rewards/{game_id}/spin                     -> RewardHandler.Spin
//   - GET    /api/rewards/{game_id}/state                    -> RewardHandler.GetState
//   - POST   /api/rewards/{game_id}/steps/{step_id}          -> RewardHandler.CompleteStep
//   - GET    /api/rewards/{game_id}/prizes                   -> RewardHandler.GetPrizes
//   - POST   /api/rewards/{game_id}/grant                    -> AdminHandler.GrantRolls
//   - POST   /api/rewards/{game_id}/rolls/{roll_id}/deliver  -> AdminHandler.MarkDelivered
//   - DELETE /api/rewards/{game_id}                          -> AdminHandler.ClearState
//   - GET    /api/rewards/config                             -> AdminHandler.GetConfig
//   - PUT    /api/rewards/config                             -> AdminHandler.UpdateOdds
//   - GET    /api/rewards/updates                            -> FeedHandler.StreamUpdates (SSE)
//   - GET    /api/rewards/updates/ws                         -> FeedHandler.StreamUpdatesWebSocket
//   - GET    /api/catalog                                    -> AdminHandler.ListCatalog
//   - POST   /api/catalog                                    -> AdminHandler.CreateCatalogEntry
//   - PUT    /api/catalog/{prize_id}                         -> AdminHandler.UpdateCatalogEntry
//   - DELETE /api/catalog/{prize_id}                         -> AdminHandler.DeleteCatalogEntry
func (a *App) RegisterRewardRoutes() {
	if a.ledger == nil {
		a.logger.Fatal().Msg("No store configured. Call SetStore() first.")
		return
	}

	api := a.engine.Group("/api")
	api.Use(auth.JWTMiddleware(a.config.JWT.Secret, a.logger)) // JWT middleware sets user info
	{
		rewards := api.Group("/rewards")
		{
			rewards.GET("/config", a.adminHandler.GetConfig)
			rewards.PUT("/config", a.adminHandler.UpdateOdds)

			rewards.GET("/updates", a.feedHandler.StreamUpdates)             // SSE endpoint
			rewards.GET("/updates/ws", a.feedHandler.StreamUpdatesWebSocket) // WebSocket endpoint

			game := rewards.Group("/:game_id")
			{
				game.POST("/spin", a.rewardHandler.Spin)
				game.GET("/state", a.rewardHandler.GetState)
				game.POST("/steps/:step_id", a.rewardHandler.CompleteStep)
				game.GET("/prizes", a.rewardHandler.GetPrizes)

				game.POST("/grant", a.adminHandler.GrantRolls)
				game.POST("/rolls/:roll_id/deliver", a.adminHandler.MarkDelivered)
				game.DELETE("", a.adminHandler.ClearState)
			}
		}

		catalog := api.Group("/catalog")
		{
			catalog.GET("", a.adminHandler.ListCatalog)
			catalog.POST("", a.adminHandler.CreateCatalogEntry)
			catalog.PUT("/:prize_id", a.adminHandler.UpdateCatalogEntry)
			catalog.DELETE("/:prize_id", a.adminHandler.DeleteCatalogEntry)
		}
	}

	a.logger.Info().Msg("Reward routes registered: /api/rewards")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Group creates a route group
func (a *App) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return a.engine.Group(path, handlers...)
}

// AuthGroup creates a route group with JWT authentication
func (a *App) AuthGroup(path string) *gin.RouterGroup {
	return a.engine.Group(path, auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
}

// RegisterRoutes registers custom routes using a callback
func (a *App) RegisterRoutes(fn func(*gin.Engine)) {
	fn(a.engine)
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Ledger returns the reward ledger
func (a *App) Ledger() *reward.Ledger {
	return a.ledger
}

// FeedService returns the feed service
func (a *App) FeedService() *feed.Service {
	return a.feedService
}

// CatalogProvider returns the catalog provider (may be nil)
func (a *App) CatalogProvider() providers.CatalogProvider {
	return a.catalogProvider
}

// GameProvider returns the game provider (may be nil)
func (a *App) GameProvider() providers.GameProvider {
	return a.gameProvider
}

// Run starts the HTTP server
func (a *App) Run() error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	return a.waitForShutdown()
}

// RunWithContext starts the HTTP server with context
func (a *App) RunWithContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Call registered shutdown handlers
	for _, fn := range a.onShutdown {
		fn()
	}

	a.feedService.Stop()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing Kafka producer")
		}
	}

	// Shutdown HTTP server
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
