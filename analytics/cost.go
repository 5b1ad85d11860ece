package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/modelcouncil/council/council"
)

// daysInProjection is the window cost projections are scaled to.
const daysInProjection = 30

// CostAggregate summarizes cost for one (provider, model) pairing.
type CostAggregate struct {
	ProviderID       string
	Model            string
	RequestCount     int
	TotalCost        float64
	CostPerRequest   float64
	ProjectedMonthly float64 // linear extrapolation of the observed rate to 30 days
}

// AggregateCosts groups records by (ProviderID, Model), skipping any
// record with a NaN or negative cost, and projects each group's observed
// daily rate out to a 30-day total.
func AggregateCosts(records []council.CostRecord, observedDays float64) []CostAggregate {
	if observedDays <= 0 {
		observedDays = 1
	}

	type key struct{ provider, model string }
	totals := make(map[key]*CostAggregate)
	order := make([]key, 0)

	for _, r := range records {
		if math.IsNaN(r.Cost) || r.Cost < 0 {
			continue
		}
		k := key{r.ProviderID, r.Model}
		agg, ok := totals[k]
		if !ok {
			agg = &CostAggregate{ProviderID: r.ProviderID, Model: r.Model}
			totals[k] = agg
			order = append(order, k)
		}
		agg.RequestCount++
		agg.TotalCost += r.Cost
	}

	out := make([]CostAggregate, 0, len(order))
	for _, k := range order {
		agg := totals[k]
		if agg.RequestCount > 0 {
			agg.CostPerRequest = agg.TotalCost / float64(agg.RequestCount)
		}
		agg.ProjectedMonthly = (agg.TotalCost / observedDays) * daysInProjection
		out = append(out, *agg)
	}
	return out
}

// RequestQualityRecord is one persisted request's total cost and
// consensus agreement level, as written by the Persistence write-side's
// requests row.
type RequestQualityRecord struct {
	RequestID      string
	TotalCost      float64
	AgreementLevel float64
	CreatedAt      time.Time
}

// CostPerQuality pairs one request's total cost against its own
// consensus agreement level.
type CostPerQuality struct {
	RequestID      string
	TotalCost      float64
	AgreementLevel float64
	CreatedAt      time.Time
}

// PairCostWithQuality pairs each record's own (TotalCost, AgreementLevel),
// dropping any record whose cost or agreement level is NaN, and returns
// the result in descending temporal order (most recent request first).
func PairCostWithQuality(records []RequestQualityRecord) []CostPerQuality {
	out := make([]CostPerQuality, 0, len(records))
	for _, r := range records {
		if math.IsNaN(r.TotalCost) || math.IsNaN(r.AgreementLevel) {
			continue
		}
		out = append(out, CostPerQuality{
			RequestID:      r.RequestID,
			TotalCost:      r.TotalCost,
			AgreementLevel: r.AgreementLevel,
			CreatedAt:      r.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
