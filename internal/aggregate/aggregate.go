// Package aggregate computes summary numbers over any deal sequence,
// typically a filtered view.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/V4T54L/dealboard/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Totals summarises the deals of one stage.
type Totals struct {
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// Column is one stage of the pipeline board with its deals in store order.
type Column struct {
	Stage  domain.Stage  `json:"stage"`
	Deals  []domain.Deal `json:"deals"`
	Totals Totals        `json:"totals"`
}

// Summary holds the headline numbers shown above a deal list.
type Summary struct {
	Count              int             `json:"count"`
	TotalValue         decimal.Decimal `json:"total_value"`
	AverageProbability float64         `json:"average_probability"`
	WeightedValue      decimal.Decimal `json:"weighted_value"`
}

// TotalValue sums the value of all deals.
func TotalValue(deals []domain.Deal) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range deals {
		sum = sum.Add(d.Value)
	}
	return sum
}

// AverageProbability is the arithmetic mean of the deals' probabilities.
// An empty input yields 0.
func AverageProbability(deals []domain.Deal) float64 {
	if len(deals) == 0 {
		return 0
	}
	var sum int
	for _, d := range deals {
		sum += d.Probability
	}
	return float64(sum) / float64(len(deals))
}

// WeightedValue is the probability-weighted pipeline forecast.
func WeightedValue(deals []domain.Deal) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range deals {
		sum = sum.Add(d.Value.Mul(decimal.NewFromInt(int64(d.Probability))).Div(hundred))
	}
	return sum
}

// Summarize computes every headline number in one call.
func Summarize(deals []domain.Deal) Summary {
	return Summary{
		Count:              len(deals),
		TotalValue:         TotalValue(deals),
		AverageProbability: AverageProbability(deals),
		WeightedValue:      WeightedValue(deals),
	}
}

// GroupByStage buckets deals by stage. Every registered stage is present as
// a key, with an empty (non-nil) slice when no deal occupies it. Deals in
// stages the registry does not know are dropped.
func GroupByStage(deals []domain.Deal, reg *domain.Registry) map[domain.StageID][]domain.Deal {
	stages := reg.Stages()
	groups := make(map[domain.StageID][]domain.Deal, len(stages))
	for _, s := range stages {
		groups[s.ID] = []domain.Deal{}
	}
	for _, d := range deals {
		if g, ok := groups[d.Stage]; ok {
			groups[d.Stage] = append(g, d)
		}
	}
	return groups
}

// StageTotals returns count and value per registered stage.
func StageTotals(deals []domain.Deal, reg *domain.Registry) map[domain.StageID]Totals {
	groups := GroupByStage(deals, reg)
	out := make(map[domain.StageID]Totals, len(groups))
	for id, g := range groups {
		out[id] = Totals{Count: len(g), TotalValue: TotalValue(g)}
	}
	return out
}

// Board lays the deals out as ordered pipeline columns.
func Board(deals []domain.Deal, reg *domain.Registry) []Column {
	groups := GroupByStage(deals, reg)
	stages := reg.Stages()
	cols := make([]Column, len(stages))
	for i, s := range stages {
		g := groups[s.ID]
		cols[i] = Column{
			Stage:  s,
			Deals:  g,
			Totals: Totals{Count: len(g), TotalValue: TotalValue(g)},
		}
	}
	return cols
}
