package overlap

import (
	"sort"
	"time"

	"TwsePulse/internal/domain/models"
)

// Engine computes pairwise constituent overlap across funds. Comparison is
// by symbol only; weights never enter the ratio.
type Engine struct {
	now func() time.Time
}

// New creates an Engine.
func New() *Engine {
	return &Engine{now: time.Now}
}

// Compute builds the overlap result over every unordered fund pair.
// Funds with no constituents are skipped; pairs with an empty intersection
// are omitted. The ratio is |shared| / min(|A|, |B|).
func (e *Engine) Compute(holdings []models.FundHoldings) models.OverlapResult {
	funds := make([]models.FundHoldings, 0, len(holdings))
	sets := make([]map[string]struct{}, 0, len(holdings))
	for _, h := range holdings {
		if len(h.Symbols) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(h.Symbols))
		for _, s := range h.Symbols {
			set[s] = struct{}{}
		}
		funds = append(funds, h)
		sets = append(sets, set)
	}

	var pairs []models.OverlapPair
	for i := 0; i < len(funds); i++ {
		for j := i + 1; j < len(funds); j++ {
			shared := intersect(sets[i], sets[j])
			if len(shared) == 0 {
				continue
			}
			minSize := len(sets[i])
			if len(sets[j]) < minSize {
				minSize = len(sets[j])
			}
			pairs = append(pairs, models.OverlapPair{
				FundA:  funds[i].Fund,
				FundB:  funds[j].Fund,
				Shared: shared,
				Ratio:  float64(len(shared)) / float64(minSize),
			})
		}
	}

	return models.OverlapResult{Pairs: pairs, ComputedAt: e.now()}
}

func intersect(a, b map[string]struct{}) []string {
	if len(b) < len(a) {
		a, b = b, a
	}
	var shared []string
	for s := range a {
		if _, ok := b[s]; ok {
			shared = append(shared, s)
		}
	}
	sort.Strings(shared)
	return shared
}
