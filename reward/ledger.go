package reward

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Digital-Creators-Team/reward-roulette-module/errors"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

const (
	stateKeyPrefix = "reward:state:"
	configKey      = "reward:config"
)

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithRand overrides the random source used to resolve spins
func WithRand(fn func() float64) LedgerOption {
	return func(l *Ledger) {
		l.randFn = fn
	}
}

// WithClock overrides the time source
func WithClock(fn func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = fn
	}
}

// WithDefaultOdds sets the odds used when no configuration exists yet
func WithDefaultOdds(odds map[Tier]float64) LedgerOption {
	return func(l *Ledger) {
		if len(odds) > 0 {
			l.defaultOdds = odds
		}
	}
}

// WithSpinCooldown sets the minimum interval between spins per game.
// Zero disables the cooldown.
func WithSpinCooldown(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.cooldown = d
	}
}

// Ledger owns the per-game reward state and the shared roulette
// configuration. All mutating operations on the same game are serialized
// through a per-game lock, so concurrent spins cannot over-consume rolls.
//
// Persistence is best effort: state is always mutated in memory first and
// a failed write is logged but not surfaced, so a storage outage degrades
// durability without blocking play.
type Ledger struct {
	store  providers.Store
	logger zerolog.Logger

	randFn      func() float64
	now         func() time.Time
	defaultOdds map[Tier]float64
	cooldown    time.Duration

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	lastSpin map[string]time.Time

	configMu sync.Mutex
}

// NewLedger creates a ledger backed by the given store
func NewLedger(store providers.Store, logger zerolog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:       store,
		logger:      logger.With().Str("component", "reward-ledger").Logger(),
		randFn:      rand.Float64,
		now:         time.Now,
		defaultOdds: DefaultOdds,
		locks:       make(map[string]*sync.Mutex),
		lastSpin:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// gameLock returns the mutex serializing operations for one game
func (l *Ledger) gameLock(gameID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[gameID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[gameID] = lock
	}
	return lock
}

func stateKey(gameID string) string {
	return stateKeyPrefix + gameID
}

// loadState reads the state for a game, creating a fresh default when none
// is stored. Storage read errors are surfaced; a missing key is not an error.
func (l *Ledger) loadState(ctx context.Context, gameID string) (*State, error) {
	var state State
	err := l.store.GetJSON(ctx, stateKey(gameID), &state)
	if err == providers.ErrNotFound {
		return NewState(gameID), nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRewardStateError, "failed to load reward state")
	}
	if state.CompletedSteps == nil {
		state.CompletedSteps = make(map[Step]bool)
	}
	if state.RollHistory == nil {
		state.RollHistory = []*Roll{}
	}
	return &state, nil
}

// saveState persists the state, logging and swallowing write failures
func (l *Ledger) saveState(ctx context.Context, state *State) {
	state.UpdatedAt = l.now()
	if err := l.store.SetJSON(ctx, stateKey(state.GameID), state); err != nil {
		l.logger.Warn().
			Err(err).
			Str("game_id", state.GameID).
			Msg("failed to persist reward state, continuing with in-memory state")
	}
}

// GetState returns the reward state for a game, creating a default state
// if none exists yet. The default is not persisted until first mutation.
func (l *Ledger) GetState(ctx context.Context, gameID string) (*State, error) {
	lock := l.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	return l.loadState(ctx, gameID)
}

// Spin consumes one available roll and resolves it into a prize tier.
// Returns the new roll and the updated state. Fails when no rolls are
// available or when the per-game cooldown has not elapsed.
func (l *Ledger) Spin(ctx context.Context, gameID string) (*Roll, *State, error) {
	lock := l.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	now := l.now()
	if l.cooldown > 0 {
		l.mu.Lock()
		last, ok := l.lastSpin[gameID]
		l.mu.Unlock()
		if ok && now.Sub(last) < l.cooldown {
			return nil, nil, apperrors.NewWithDebug(
				apperrors.ErrSpinCooldown,
				"spin cooldown active",
				fmt.Sprintf("last spin at %s, cooldown %s", last.Format(time.RFC3339Nano), l.cooldown),
			)
		}
	}

	state, err := l.loadState(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}

	if state.AvailableRolls <= 0 {
		return nil, nil, apperrors.New(apperrors.ErrRollsExhausted, "no rolls available")
	}

	config, err := l.GetConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	tier := Resolve(config.Odds, l.randFn())
	roll := NewRoll(tier, now)

	state.AvailableRolls--
	state.RollHistory = append([]*Roll{roll}, state.RollHistory...)
	l.saveState(ctx, state)

	l.mu.Lock()
	l.lastSpin[gameID] = now
	l.mu.Unlock()

	l.logger.Info().
		Str("game_id", gameID).
		Str("roll_id", roll.ID).
		Str("tier", string(roll.Tier)).
		Int("rolls_left", state.AvailableRolls).
		Msg("spin resolved")

	return roll, state, nil
}

// CompleteStep credits one roll for a social-engagement step. Each step is
// credited at most once per game; repeat calls return the unchanged state
// with changed=false.
func (l *Ledger) CompleteStep(ctx context.Context, gameID string, step Step) (*State, bool, error) {
	if !KnownSteps[step] {
		return nil, false, apperrors.NewWithDebug(
			apperrors.ErrUnknownStep,
			"unknown engagement step",
			fmt.Sprintf("step %q is not recognized", step),
		)
	}

	lock := l.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	state, err := l.loadState(ctx, gameID)
	if err != nil {
		return nil, false, err
	}

	if state.CompletedSteps[step] {
		return state, false, nil
	}

	state.CompletedSteps[step] = true
	state.AvailableRolls++
	l.saveState(ctx, state)

	l.logger.Info().
		Str("game_id", gameID).
		Str("step", string(step)).
		Int("available_rolls", state.AvailableRolls).
		Msg("engagement step credited")

	return state, true, nil
}

// GrantRolls adds extra rolls to a game. count must be positive.
func (l *Ledger) GrantRolls(ctx context.Context, gameID string, count int) (*State, error) {
	if count <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "roll count must be positive")
	}

	lock := l.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	state, err := l.loadState(ctx, gameID)
	if err != nil {
		return nil, err
	}

	state.AvailableRolls += count
	l.saveState(ctx, state)

	l.logger.Info().
		Str("game_id", gameID).
		Int("granted", count).
		Int("available_rolls", state.AvailableRolls).
		Msg("rolls granted")

	return state, nil
}

// MarkDelivered marks a roll as physically handed over. Idempotent: an
// unknown roll ID or an already-delivered roll leaves the state unchanged
// and returns changed=false. On first delivery the shared delivered tally
// for the roll's tier is incremented.
func (l *Ledger) MarkDelivered(ctx context.Context, gameID, rollID, adminID string) (*Roll, *State, bool, error) {
	lock := l.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	state, err := l.loadState(ctx, gameID)
	if err != nil {
		return nil, nil, false, err
	}

	roll := state.FindRoll(rollID)
	if roll == nil {
		l.logger.Warn().
			Str("game_id", gameID).
			Str("roll_id", rollID).
			Msg("delivery requested for unknown roll, ignoring")
		return nil, state, false, nil
	}
	if roll.Delivered {
		return roll, state, false, nil
	}

	now := l.now()
	roll.Delivered = true
	roll.DeliveredAt = &now
	roll.DeliveredBy = adminID
	l.saveState(ctx, state)

	l.incrementDelivered(ctx, roll.Tier)

	l.logger.Info().
		Str("game_id", gameID).
		Str("roll_id", rollID).
		Str("tier", string(roll.Tier)).
		Str("admin_id", adminID).
		Msg("prize marked delivered")

	return roll, state, true, nil
}

// ClearState removes all reward data for a game
func (l *Ledger) ClearState(ctx context.Context, gameID string) error {
	lock := l.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	if err := l.store.Delete(ctx, stateKey(gameID)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrRewardStateError, "failed to clear reward state")
	}

	l.mu.Lock()
	delete(l.lastSpin, gameID)
	l.mu.Unlock()

	l.logger.Info().Str("game_id", gameID).Msg("reward state cleared")
	return nil
}

// GetConfig returns the shared roulette configuration, creating and
// persisting a default one on first access
func (l *Ledger) GetConfig(ctx context.Context) (*Config, error) {
	l.configMu.Lock()
	defer l.configMu.Unlock()

	return l.loadConfig(ctx)
}

func (l *Ledger) loadConfig(ctx context.Context) (*Config, error) {
	var config Config
	err := l.store.GetJSON(ctx, configKey, &config)
	if err == providers.ErrNotFound {
		config := NewConfig(l.defaultOdds)
		l.saveConfig(ctx, config)
		return config, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigError, "failed to load roulette config")
	}
	if config.Odds == nil {
		config.Odds = make(map[Tier]float64)
	}
	if config.DeliveredCounts == nil {
		config.DeliveredCounts = make(map[Tier]int)
	}
	return &config, nil
}

func (l *Ledger) saveConfig(ctx context.Context, config *Config) {
	config.UpdatedAt = l.now()
	if err := l.store.SetJSON(ctx, configKey, config); err != nil {
		l.logger.Warn().Err(err).Msg("failed to persist roulette config")
	}
}

// UpdateOdds replaces the per-tier win odds. Negative values are clamped
// to zero; values are otherwise stored as given, even when the sum exceeds
// one, in which case later tiers in the resolve order become unreachable.
func (l *Ledger) UpdateOdds(ctx context.Context, odds map[Tier]float64) (*Config, error) {
	l.configMu.Lock()
	defer l.configMu.Unlock()

	config, err := l.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	config.SetOdds(odds)
	l.saveConfig(ctx, config)

	l.logger.Info().
		Float64("large", config.Odds[TierLarge]).
		Float64("medium", config.Odds[TierMedium]).
		Float64("small", config.Odds[TierSmall]).
		Msg("roulette odds updated")

	return config, nil
}

// incrementDelivered bumps the delivered tally for a tier.
// Called with the game lock held, never with configMu held.
func (l *Ledger) incrementDelivered(ctx context.Context, tier Tier) {
	l.configMu.Lock()
	defer l.configMu.Unlock()

	config, err := l.loadConfig(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to load config for delivered tally")
		return
	}
	config.DeliveredCounts[tier]++
	l.saveConfig(ctx, config)
}
