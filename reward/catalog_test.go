package reward

import (
	"testing"
	"time"

	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

func TestDisplayInfo(t *testing.T) {
	catalog := []providers.PrizeRecord{
		{ID: "p1", Title: "Inactive cap", Description: "old", Tier: "small", IsActive: false},
		{ID: "p2", Title: "Sticker pack", Description: "club stickers", Tier: "small", IsActive: true},
		{ID: "p3", Title: "Free round", Description: "one free round", Tier: "medium", IsActive: true},
	}

	tests := []struct {
		name      string
		tier      Tier
		wantTitle string
	}{
		{"active catalog entry wins", TierSmall, "Sticker pack"},
		{"medium from catalog", TierMedium, "Free round"},
		{"no entry falls back", TierLarge, "Grand prize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := DisplayInfo(tt.tier, catalog)
			if info.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", info.Title, tt.wantTitle)
			}
		})
	}
}

func TestDisplayInfoInactiveOnlyFallsBack(t *testing.T) {
	catalog := []providers.PrizeRecord{
		{ID: "p1", Title: "Retired prize", Tier: "large", IsActive: false},
	}

	info := DisplayInfo(TierLarge, catalog)
	if info.Title != "Grand prize" {
		t.Errorf("Title = %q, want fallback", info.Title)
	}
}

func TestApplyFallbackPrizes(t *testing.T) {
	original := fallbackPrizeInfo[TierSmall]
	t.Cleanup(func() {
		fallbackPrizeInfo[TierSmall] = original
	})

	ApplyFallbackPrizes(map[Tier]PrizeInfo{
		TierSmall:       {Title: "Mini golf ball", Description: "A club-branded ball"},
		Tier("unknown"): {Title: "Nope"},
	})

	info := DisplayInfo(TierSmall, nil)
	if info.Title != "Mini golf ball" {
		t.Errorf("Title = %q, want override", info.Title)
	}
	// Tiers without an override keep their built-in labels
	if got := DisplayInfo(TierLarge, nil); got.Title != "Grand prize" {
		t.Errorf("large Title = %q, want built-in", got.Title)
	}
	if _, ok := fallbackPrizeInfo[Tier("unknown")]; ok {
		t.Error("unknown tier must not be added to the fallback table")
	}
}

func TestSummarize(t *testing.T) {
	deliveredAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	state := &State{
		GameID: "game-1",
		RollHistory: []*Roll{
			{ID: "r4", Tier: TierNone, Timestamp: 400},
			{ID: "r3", Tier: TierSmall, Timestamp: 300},
			{ID: "r2", Tier: TierLarge, Timestamp: 200, Delivered: true, DeliveredAt: &deliveredAt, DeliveredBy: "admin-1"},
			{ID: "r1", Tier: TierNone, Timestamp: 100},
		},
	}
	catalog := []providers.PrizeRecord{
		{ID: "p1", Title: "Sticker pack", Description: "club stickers", Tier: "small", IsActive: true},
	}

	summary := Summarize(state, catalog)

	if len(summary.Pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(summary.Pending))
	}
	if summary.Pending[0].RollID != "r3" || summary.Pending[0].Title != "Sticker pack" {
		t.Errorf("unexpected pending prize: %+v", summary.Pending[0])
	}

	if len(summary.Claimed) != 1 {
		t.Fatalf("claimed = %d, want 1", len(summary.Claimed))
	}
	claimed := summary.Claimed[0]
	if claimed.RollID != "r2" || claimed.DeliveredBy != "admin-1" {
		t.Errorf("unexpected claimed prize: %+v", claimed)
	}
	// No active large entry, so the built-in label applies
	if claimed.Title != "Grand prize" {
		t.Errorf("claimed Title = %q, want fallback", claimed.Title)
	}
}

func TestSummarizeEmptyState(t *testing.T) {
	summary := Summarize(NewState("game-1"), nil)
	if len(summary.Pending) != 0 || len(summary.Claimed) != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}
