package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/Digital-Creators-Team/reward-roulette-module/auth"
	"github.com/Digital-Creators-Team/reward-roulette-module/config"
	"github.com/Digital-Creators-Team/reward-roulette-module/events/kafka"
	"github.com/Digital-Creators-Team/reward-roulette-module/logging"
	"github.com/Digital-Creators-Team/reward-roulette-module/reward"
	"github.com/Digital-Creators-Team/reward-roulette-module/server"
	appwire "github.com/Digital-Creators-Team/reward-roulette-module/wire"
)

var version = getVersion()

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "rewardmodule",
		Short:   "Reward Roulette Module - per-game prize ledger service",
		Version: version,
	}

	var (
		configPath   string
		defaultsPath string
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reward service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, defaultsPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config-development.yaml", "Path to YAML config file")
	serveCmd.Flags().StringVar(&defaultsPath, "defaults", "", "Roulette defaults YAML file or directory (odds, tier values, fallback prizes)")

	var (
		tokenUser   string
		tokenName   string
		tokenAdmin  bool
		tokenExpiry time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for the reward API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			token, err := auth.GenerateAdminToken(cfg.JWT.Secret, tokenUser, tokenName, tokenAdmin, tokenExpiry)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVarP(&configPath, "config", "c", "config-development.yaml", "Path to YAML config file")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "dev-user", "User ID claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "developer", "Username claim")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Set the admin claim")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 24*time.Hour, "Token lifetime")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath, defaultsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Str("version", version).Str("config", configPath).Msg("starting reward module")

	// Roulette defaults file overrides the roulette section of the main config
	if defaultsPath != "" {
		defaults, err := reward.LoadDefaults(defaultsPath)
		if err != nil {
			return fmt.Errorf("failed to load roulette defaults: %w", err)
		}
		if len(defaults.Odds) > 0 {
			cfg.Roulette.DefaultOdds = defaults.Odds
		}
		if len(defaults.TierValues) > 0 {
			cfg.Roulette.TierValues = defaults.TierValues
		}
		reward.ApplyFallbackPrizes(defaults.FallbackPrizeInfo())
		logger.Info().Str("defaults", defaultsPath).Msg("loaded roulette defaults")
	}

	redisClient, err := appwire.ProvideRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app := server.New(server.Options{Config: cfg, Logger: logger})
	app.SetStore(appwire.ProvideStateStore(redisClient))
	app.SetCatalogProvider(appwire.ProvideCatalogProvider(cfg, logger))
	app.SetGameProvider(appwire.ProvideGameProvider(cfg, logger))

	// Kafka is optional: no brokers configured means no event pipeline
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducerWithConfig(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topics["rewards"],
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		app.SetEventProducer(producer)

		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topics["catalog"],
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			Logger:        logger,
		})
		app.AttachCatalogChangeFeed(consumer)
		if err := consumer.Start(); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
		app.OnShutdown(func() {
			if err := consumer.Stop(); err != nil {
				logger.Error().Err(err).Msg("failed to stop kafka consumer")
			}
		})
	}

	app.OnShutdown(func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close redis client")
		}
	})

	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterRewardRoutes()

	if cfg.Server.EnableSwagger {
		app.RegisterSwagger(server.SwaggerInfo{
			Title:       "Reward Roulette API",
			Description: "Per-game reward ledger and prize roulette",
			Version:     version,
		}, nil)
	}

	return app.Run()
}
