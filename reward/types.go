package reward

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tier is a prize-value bucket with an associated win probability.
// TierNone is the implicit "no prize" outcome of a roll.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
	TierNone   Tier = "none"
)

// ResolveOrder is the fixed priority order in which tiers are evaluated
// against a random sample. Changing it changes which tier absorbs a roll
// when odds overlap, so it is part of the resolver contract.
var ResolveOrder = []Tier{TierLarge, TierMedium, TierSmall}

// PrizeTiers lists the tiers that map to physical prizes.
var PrizeTiers = []Tier{TierSmall, TierMedium, TierLarge}

// ParseTier validates a tier string (excluding none)
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierSmall, TierMedium, TierLarge:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier: %q", s)
}

// Step identifies a social-engagement action that credits a roll
type Step string

const (
	StepRegister Step = "register"
	StepFollow   Step = "follow"
	StepShare    Step = "share"
)

// KnownSteps is the set of steps that can be credited
var KnownSteps = map[Step]bool{
	StepRegister: true,
	StepFollow:   true,
	StepShare:    true,
}

// Config holds the process-wide roulette configuration: per-tier odds and
// the running delivered tallies. One instance exists, persisted under a
// single key; it is created with defaults on first access and never deleted.
type Config struct {
	// Odds maps tier to a probability in [0,1]. Values need not sum to 1;
	// the remainder is the implicit "no prize" bucket. Sums above 1 are
	// tolerated (later tiers in ResolveOrder become unreachable).
	Odds map[Tier]float64 `json:"odds"`

	// DeliveredCounts tallies confirmed deliveries per outcome.
	// Monotonically non-decreasing.
	DeliveredCounts map[Tier]int `json:"deliveredCounts"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultOdds are used when no configuration exists yet and none is supplied.
var DefaultOdds = map[Tier]float64{
	TierLarge:  0.02,
	TierMedium: 0.05,
	TierSmall:  0.10,
}

// NewConfig creates a config with the given odds, falling back to
// DefaultOdds when odds is empty. Negative odds are clamped to zero.
func NewConfig(odds map[Tier]float64) *Config {
	c := &Config{
		Odds:            make(map[Tier]float64, len(PrizeTiers)),
		DeliveredCounts: make(map[Tier]int),
		UpdatedAt:       time.Now(),
	}
	if len(odds) == 0 {
		odds = DefaultOdds
	}
	c.SetOdds(odds)
	return c
}

// SetOdds replaces the per-tier odds, clamping negative values to zero.
// Unknown tiers are ignored; missing tiers get probability zero.
func (c *Config) SetOdds(odds map[Tier]float64) {
	for _, tier := range PrizeTiers {
		p := odds[tier]
		if p < 0 {
			p = 0
		}
		c.Odds[tier] = p
	}
	c.UpdatedAt = time.Now()
}

// State tracks the reward session for one game: which engagement steps have
// been credited, how many rolls remain, and the roll history (newest first,
// append-only except for in-place delivery marking).
type State struct {
	GameID         string        `json:"gameId"`
	CompletedSteps map[Step]bool `json:"completedSteps"`
	AvailableRolls int           `json:"availableRolls"`
	RollHistory    []*Roll       `json:"rollHistory"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// NewState creates a default state for a game
func NewState(gameID string) *State {
	return &State{
		GameID:         gameID,
		CompletedSteps: make(map[Step]bool),
		AvailableRolls: 0,
		RollHistory:    []*Roll{},
		UpdatedAt:      time.Now(),
	}
}

// ToJSON serializes State to JSON
func (s *State) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// StateFromJSON deserializes State from JSON
func StateFromJSON(data []byte) (*State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.CompletedSteps == nil {
		state.CompletedSteps = make(map[Step]bool)
	}
	return &state, nil
}

// FindRoll returns the roll with the given ID, or nil
func (s *State) FindRoll(rollID string) *Roll {
	for _, roll := range s.RollHistory {
		if roll.ID == rollID {
			return roll
		}
	}
	return nil
}

// Roll records one resolved spin. Immutable once created except for the
// delivery fields, which are set exactly once.
type Roll struct {
	ID          string     `json:"id"`
	Tier        Tier       `json:"tier"`
	Timestamp   int64      `json:"timestamp"` // epoch milliseconds
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	DeliveredBy string     `json:"deliveredBy,omitempty"`
}

// NewRoll creates a roll for the given outcome at the given time.
// The ID is derived from tier and creation time; a short random suffix
// keeps IDs unique when spins resolve within the same millisecond.
func NewRoll(tier Tier, at time.Time) *Roll {
	ms := at.UnixMilli()
	return &Roll{
		ID:        fmt.Sprintf("%s-%d-%s", tier, ms, uuid.NewString()[:8]),
		Tier:      tier,
		Timestamp: ms,
		Delivered: false,
	}
}
