package wire

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/Digital-Creators-Team/reward-roulette-module/config"
	"github.com/Digital-Creators-Team/reward-roulette-module/db/redis"
	"github.com/Digital-Creators-Team/reward-roulette-module/logging"
	"github.com/Digital-Creators-Team/reward-roulette-module/provider"
	"github.com/Digital-Creators-Team/reward-roulette-module/server"
)

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideRedisClient provides a Redis client
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	return redis.New(cfg.Redis)
}

// ProvideStateStore provides the Redis-backed reward store
func ProvideStateStore(client *redis.Client) *provider.StateStore {
	return provider.NewStateStore(client)
}

// ProvideCatalogProvider provides the prize catalog client
func ProvideCatalogProvider(cfg *config.Config, logger zerolog.Logger) *provider.CatalogProvider {
	return provider.NewCatalogProvider(provider.CatalogProviderConfig{
		BaseURL:  cfg.ExternalServices.CatalogService.BaseURL,
		Timeout:  cfg.ExternalServices.CatalogService.Timeout,
		CacheTTL: cfg.ExternalServices.CatalogService.CacheTTL,
		Logger:   logger,
	})
}

// ProvideGameProvider provides the game service client
func ProvideGameProvider(cfg *config.Config, logger zerolog.Logger) *provider.GameProvider {
	return provider.NewGameProvider(provider.GameProviderConfig{
		BaseURL: cfg.ExternalServices.GameService.BaseURL,
		Timeout: cfg.ExternalServices.GameService.Timeout,
		Logger:  logger,
	})
}

// ProvideServerOptions provides server options
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger) server.Options {
	return server.Options{
		Config: cfg,
		Logger: logger,
	}
}

// ProvideApp provides the main application
func ProvideApp(opts server.Options) *server.App {
	return server.New(opts)
}

// ConfigSet is the wire provider set for configuration
var ConfigSet = wire.NewSet(
	config.Load,
)

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// RedisSet is the wire provider set for Redis and the reward store
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideStateStore,
)

// ProviderSet is the wire provider set for external service clients
var ProviderSet = wire.NewSet(
	ProvideCatalogProvider,
	ProvideGameProvider,
)

// ServerSet is the wire provider set for server
var ServerSet = wire.NewSet(
	ProvideServerOptions,
	ProvideApp,
)

// DefaultSet is the default wire provider set including all common providers
var DefaultSet = wire.NewSet(
	LoggingSet,
	ServerSet,
)

// FullSet includes all providers including Redis and external services
var FullSet = wire.NewSet(
	DefaultSet,
	RedisSet,
	ProviderSet,
)
