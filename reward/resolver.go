package reward

// Resolve maps a random sample r in [0,1) to a prize tier using cumulative
// probability bands. Tiers are checked in ResolveOrder (large, medium,
// small); the first tier whose cumulative sum strictly exceeds r wins, and
// if no band is reached the outcome is TierNone.
//
// The comparison is strict so that a tier with probability zero can never
// win, even at r == 0. Negative odds are treated as zero. Resolve is pure:
// the same odds and the same r always yield the same tier.
func Resolve(odds map[Tier]float64, r float64) Tier {
	cum := 0.0
	for _, tier := range ResolveOrder {
		p := odds[tier]
		if p < 0 {
			p = 0
		}
		cum += p
		if r < cum {
			return tier
		}
	}
	return TierNone
}
