package server

import "github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"

// Re-export provider interfaces/types from pkg/providers to keep a single source of truth.
type (
	Store           = providers.Store
	CatalogProvider = providers.CatalogProvider
	GameProvider    = providers.GameProvider
	PrizeRecord     = providers.PrizeRecord
	PrizeInput      = providers.PrizeInput
	GameStatus      = providers.GameStatus
)

const (
	GameStatusPlaying  = providers.GameStatusPlaying
	GameStatusFinished = providers.GameStatusFinished
)
