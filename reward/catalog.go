package reward

import (
	"time"

	"github.com/samber/lo"

	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

// PrizeInfo is the display metadata attached to a won roll
type PrizeInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// fallbackPrizeInfo is used when the catalog has no active entry for a
// tier, so a won roll always renders with a human-readable label.
var fallbackPrizeInfo = map[Tier]PrizeInfo{
	TierSmall: {
		Title:       "Small prize",
		Description: "A small surprise from the prize shelf",
	},
	TierMedium: {
		Title:       "Medium prize",
		Description: "A medium prize, ask at the front desk",
	},
	TierLarge: {
		Title:       "Grand prize",
		Description: "The grand prize, congratulations!",
	},
}

// ApplyFallbackPrizes overrides the built-in fallback display metadata for
// the given tiers. Tiers not present in overrides keep their current entry.
// Meant to be called once at startup, before the server accepts requests.
func ApplyFallbackPrizes(overrides map[Tier]PrizeInfo) {
	for tier, info := range overrides {
		if _, ok := fallbackPrizeInfo[tier]; !ok {
			continue
		}
		fallbackPrizeInfo[tier] = info
	}
}

// PrizeView is a won roll joined with its catalog display metadata
type PrizeView struct {
	RollID      string     `json:"rollId"`
	Tier        Tier       `json:"tier"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Timestamp   int64      `json:"timestamp"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	DeliveredBy string     `json:"deliveredBy,omitempty"`
}

// PrizeSummary is the pending/claimed partition of a game's winnings
type PrizeSummary struct {
	Pending []PrizeView `json:"pending"`
	Claimed []PrizeView `json:"claimed"`
}

// DisplayInfo resolves the display metadata for a tier: the first active
// catalog entry tagged with that tier wins, otherwise the built-in
// fallback. TierNone has no display info.
func DisplayInfo(tier Tier, catalog []providers.PrizeRecord) PrizeInfo {
	entry, found := lo.Find(catalog, func(p providers.PrizeRecord) bool {
		return p.IsActive && Tier(p.Tier) == tier
	})
	if found {
		return PrizeInfo{Title: entry.Title, Description: entry.Description}
	}
	return fallbackPrizeInfo[tier]
}

// Summarize partitions a game's winning rolls into pending and claimed
// prizes, attaching catalog display metadata to each. Rolls with outcome
// none are excluded. Order follows the roll history (newest first).
func Summarize(state *State, catalog []providers.PrizeRecord) PrizeSummary {
	winning := lo.Filter(state.RollHistory, func(r *Roll, _ int) bool {
		return r.Tier != TierNone
	})

	views := lo.Map(winning, func(r *Roll, _ int) PrizeView {
		info := DisplayInfo(r.Tier, catalog)
		return PrizeView{
			RollID:      r.ID,
			Tier:        r.Tier,
			Title:       info.Title,
			Description: info.Description,
			Timestamp:   r.Timestamp,
			Delivered:   r.Delivered,
			DeliveredAt: r.DeliveredAt,
			DeliveredBy: r.DeliveredBy,
		}
	})

	pending := lo.Filter(views, func(v PrizeView, _ int) bool { return !v.Delivered })
	claimed := lo.Filter(views, func(v PrizeView, _ int) bool { return v.Delivered })

	return PrizeSummary{Pending: pending, Claimed: claimed}
}
