package reward

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

// memStore is an in-memory Store for tests. Values round-trip through
// JSON so serialization bugs surface the same way they would with Redis.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return errors.New("store unavailable")
	}
	raw, ok := m.data[key]
	if !ok {
		return providers.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *memStore) SetJSON(_ context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("store unavailable")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func testLedger(store providers.Store, opts ...LedgerOption) *Ledger {
	return NewLedger(store, zerolog.Nop(), opts...)
}

// fixedRand returns samples from the given sequence, repeating the last one
func fixedRand(samples ...float64) func() float64 {
	i := 0
	return func() float64 {
		s := samples[i]
		if i < len(samples)-1 {
			i++
		}
		return s
	}
}

func TestCompleteStepCreditsOnce(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore())

	state, changed, err := ledger.CompleteStep(ctx, "game-1", StepRegister)
	if err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	if !changed {
		t.Error("first completion should report changed")
	}
	if state.AvailableRolls != 1 {
		t.Errorf("AvailableRolls = %d, want 1", state.AvailableRolls)
	}

	// Repeating the same step must not grant another roll
	state, changed, err = ledger.CompleteStep(ctx, "game-1", StepRegister)
	if err != nil {
		t.Fatalf("CompleteStep repeat: %v", err)
	}
	if changed {
		t.Error("repeat completion should not report changed")
	}
	if state.AvailableRolls != 1 {
		t.Errorf("AvailableRolls after repeat = %d, want 1", state.AvailableRolls)
	}

	// A different step grants a second roll
	state, _, err = ledger.CompleteStep(ctx, "game-1", StepFollow)
	if err != nil {
		t.Fatalf("CompleteStep follow: %v", err)
	}
	if state.AvailableRolls != 2 {
		t.Errorf("AvailableRolls = %d, want 2", state.AvailableRolls)
	}
}

func TestCompleteStepUnknown(t *testing.T) {
	ledger := testLedger(newMemStore())

	_, _, err := ledger.CompleteStep(context.Background(), "game-1", Step("retweet"))
	if err == nil {
		t.Fatal("expected error for unknown step")
	}
}

func TestSpinConsumesRoll(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore(), WithRand(fixedRand(0.5)))

	if _, _, err := ledger.CompleteStep(ctx, "game-1", StepRegister); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}

	roll, state, err := ledger.Spin(ctx, "game-1")
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if roll.Tier != TierNone {
		t.Errorf("tier = %v, want none for r=0.5 with default odds", roll.Tier)
	}
	if state.AvailableRolls != 0 {
		t.Errorf("AvailableRolls = %d, want 0", state.AvailableRolls)
	}
	if len(state.RollHistory) != 1 || state.RollHistory[0].ID != roll.ID {
		t.Error("roll not recorded at head of history")
	}
	if roll.Timestamp <= 0 {
		t.Error("roll timestamp not set")
	}
}

func TestSpinExhausted(t *testing.T) {
	ledger := testLedger(newMemStore())

	_, _, err := ledger.Spin(context.Background(), "game-1")
	if err == nil {
		t.Fatal("expected error when no rolls are available")
	}
}

func TestSpinHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore(), WithRand(fixedRand(0.5)))

	if _, err := ledger.GrantRolls(ctx, "game-1", 3); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		roll, _, err := ledger.Spin(ctx, "game-1")
		if err != nil {
			t.Fatalf("Spin %d: %v", i, err)
		}
		ids = append(ids, roll.ID)
	}

	state, err := ledger.GetState(ctx, "game-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	for i, roll := range state.RollHistory {
		if roll.ID != ids[len(ids)-1-i] {
			t.Fatalf("history[%d] = %s, want %s", i, roll.ID, ids[len(ids)-1-i])
		}
	}
}

func TestSpinConcurrentNeverOverconsumes(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore(), WithRand(fixedRand(0.5)))

	const granted = 5
	const spinners = 20

	if _, err := ledger.GrantRolls(ctx, "game-1", granted); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < spinners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := ledger.Spin(ctx, "game-1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != granted {
		t.Errorf("succeeded spins = %d, want %d", succeeded, granted)
	}

	state, err := ledger.GetState(ctx, "game-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.AvailableRolls != 0 {
		t.Errorf("AvailableRolls = %d, want 0", state.AvailableRolls)
	}
	if len(state.RollHistory) != granted {
		t.Errorf("history length = %d, want %d", len(state.RollHistory), granted)
	}
}

func TestSpinCooldown(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ledger := testLedger(newMemStore(),
		WithRand(fixedRand(0.5)),
		WithClock(clock),
		WithSpinCooldown(2*time.Second),
	)

	if _, err := ledger.GrantRolls(ctx, "game-1", 2); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}

	if _, _, err := ledger.Spin(ctx, "game-1"); err != nil {
		t.Fatalf("first spin: %v", err)
	}
	if _, _, err := ledger.Spin(ctx, "game-1"); err == nil {
		t.Fatal("expected cooldown error on immediate second spin")
	}

	now = now.Add(3 * time.Second)
	if _, _, err := ledger.Spin(ctx, "game-1"); err != nil {
		t.Fatalf("spin after cooldown: %v", err)
	}
}

func TestSpinPersistenceFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := testLedger(store, WithRand(fixedRand(0.5)))

	if _, err := ledger.GrantRolls(ctx, "game-1", 2); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}

	store.mu.Lock()
	store.failSet = true
	store.mu.Unlock()

	// The spin still succeeds and returns the in-memory state
	roll, state, err := ledger.Spin(ctx, "game-1")
	if err != nil {
		t.Fatalf("Spin with failing store: %v", err)
	}
	if roll == nil || state.AvailableRolls != 1 {
		t.Errorf("AvailableRolls = %d, want 1", state.AvailableRolls)
	}

	// The write never landed, so a reload sees the pre-spin state
	store.mu.Lock()
	store.failSet = false
	store.mu.Unlock()

	state, err = ledger.GetState(ctx, "game-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.AvailableRolls != 2 {
		t.Errorf("reloaded AvailableRolls = %d, want 2", state.AvailableRolls)
	}
}

func TestGrantRolls(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore())

	state, err := ledger.GrantRolls(ctx, "game-1", 3)
	if err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}
	if state.AvailableRolls != 3 {
		t.Errorf("AvailableRolls = %d, want 3", state.AvailableRolls)
	}

	if _, err := ledger.GrantRolls(ctx, "game-1", 0); err == nil {
		t.Error("expected error for zero count")
	}
	if _, err := ledger.GrantRolls(ctx, "game-1", -1); err == nil {
		t.Error("expected error for negative count")
	}
}

func TestMarkDelivered(t *testing.T) {
	ctx := context.Background()
	// r=0.0 wins large with default odds
	ledger := testLedger(newMemStore(), WithRand(fixedRand(0.0)))

	if _, err := ledger.GrantRolls(ctx, "game-1", 1); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}
	roll, _, err := ledger.Spin(ctx, "game-1")
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}

	delivered, _, changed, err := ledger.MarkDelivered(ctx, "game-1", roll.ID, "admin-7")
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if !changed {
		t.Error("first delivery should report changed")
	}
	if !delivered.Delivered || delivered.DeliveredAt == nil || delivered.DeliveredBy != "admin-7" {
		t.Errorf("delivery fields not set: %+v", delivered)
	}

	// Delivered tally is incremented once per roll
	config, err := ledger.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if config.DeliveredCounts[TierLarge] != 1 {
		t.Errorf("DeliveredCounts[large] = %d, want 1", config.DeliveredCounts[TierLarge])
	}

	// Second delivery of the same roll is a no-op
	again, _, changed, err := ledger.MarkDelivered(ctx, "game-1", roll.ID, "admin-8")
	if err != nil {
		t.Fatalf("MarkDelivered repeat: %v", err)
	}
	if changed {
		t.Error("repeat delivery should not report changed")
	}
	if again.DeliveredBy != "admin-7" {
		t.Errorf("DeliveredBy overwritten to %q", again.DeliveredBy)
	}

	config, _ = ledger.GetConfig(ctx)
	if config.DeliveredCounts[TierLarge] != 1 {
		t.Errorf("DeliveredCounts[large] after repeat = %d, want 1", config.DeliveredCounts[TierLarge])
	}
}

func TestMarkDeliveredUnknownRoll(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore())

	roll, state, changed, err := ledger.MarkDelivered(ctx, "game-1", "no-such-roll", "admin-7")
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if roll != nil || changed {
		t.Error("unknown roll should be a no-op")
	}
	if state == nil {
		t.Error("state should still be returned")
	}
}

func TestClearState(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore())

	if _, err := ledger.GrantRolls(ctx, "game-1", 2); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}
	if err := ledger.ClearState(ctx, "game-1"); err != nil {
		t.Fatalf("ClearState: %v", err)
	}

	state, err := ledger.GetState(ctx, "game-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.AvailableRolls != 0 || len(state.RollHistory) != 0 {
		t.Errorf("state not reset: %+v", state)
	}
}

func TestUpdateOdds(t *testing.T) {
	ctx := context.Background()
	ledger := testLedger(newMemStore())

	config, err := ledger.UpdateOdds(ctx, map[Tier]float64{
		TierLarge:  0.5,
		TierMedium: -0.1,
		TierSmall:  0.2,
	})
	if err != nil {
		t.Fatalf("UpdateOdds: %v", err)
	}
	if config.Odds[TierLarge] != 0.5 {
		t.Errorf("Odds[large] = %v, want 0.5", config.Odds[TierLarge])
	}
	if config.Odds[TierMedium] != 0 {
		t.Errorf("Odds[medium] = %v, want 0 (clamped)", config.Odds[TierMedium])
	}

	// New odds take effect for subsequent spins
	spun := testLedger(newMemStore(), WithRand(fixedRand(0.4)))
	if _, err := spun.UpdateOdds(ctx, map[Tier]float64{TierLarge: 0.5}); err != nil {
		t.Fatalf("UpdateOdds: %v", err)
	}
	if _, err := spun.GrantRolls(ctx, "game-1", 1); err != nil {
		t.Fatalf("GrantRolls: %v", err)
	}
	roll, _, err := spun.Spin(ctx, "game-1")
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if roll.Tier != TierLarge {
		t.Errorf("tier = %v, want large with odds 0.5 and r=0.4", roll.Tier)
	}
}

func TestConfigDefaults(t *testing.T) {
	ledger := testLedger(newMemStore())

	config, err := ledger.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	for tier, want := range DefaultOdds {
		if config.Odds[tier] != want {
			t.Errorf("Odds[%s] = %v, want %v", tier, config.Odds[tier], want)
		}
	}
}

func TestStatePersistsAcrossLedgers(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first := testLedger(store, WithRand(fixedRand(0.5)))
	if _, _, err := first.CompleteStep(ctx, "game-1", StepShare); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	if _, _, err := first.Spin(ctx, "game-1"); err != nil {
		t.Fatalf("Spin: %v", err)
	}

	// A second ledger over the same store sees the persisted state
	second := testLedger(store)
	state, err := second.GetState(ctx, "game-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !state.CompletedSteps[StepShare] {
		t.Error("completed step lost across ledgers")
	}
	if len(state.RollHistory) != 1 {
		t.Errorf("history length = %d, want 1", len(state.RollHistory))
	}
}

// Full player journey: credit steps, spin them all down, win once,
// deliver the prize.
func TestRewardJourney(t *testing.T) {
	ctx := context.Background()
	// Second spin wins a small prize, the others lose
	ledger := testLedger(newMemStore(), WithRand(fixedRand(0.9, 0.1, 0.9)))

	for _, step := range []Step{StepRegister, StepFollow, StepShare} {
		if _, _, err := ledger.CompleteStep(ctx, "game-42", step); err != nil {
			t.Fatalf("CompleteStep(%s): %v", step, err)
		}
	}

	var winning *Roll
	for i := 0; i < 3; i++ {
		roll, _, err := ledger.Spin(ctx, "game-42")
		if err != nil {
			t.Fatalf("Spin %d: %v", i, err)
		}
		if roll.Tier != TierNone {
			winning = roll
		}
	}
	if winning == nil || winning.Tier != TierSmall {
		t.Fatalf("expected exactly one small win, got %+v", winning)
	}

	if _, _, err := ledger.Spin(ctx, "game-42"); err == nil {
		t.Fatal("expected exhaustion after three spins")
	}

	_, state, changed, err := ledger.MarkDelivered(ctx, "game-42", winning.ID, "admin-1")
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if !changed {
		t.Error("delivery should report changed")
	}

	summary := Summarize(state, nil)
	if len(summary.Pending) != 0 {
		t.Errorf("pending = %d, want 0", len(summary.Pending))
	}
	if len(summary.Claimed) != 1 {
		t.Errorf("claimed = %d, want 1", len(summary.Claimed))
	}
}
