package query

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/V4T54L/dealboard/internal/domain"
)

const (
	// StageAll matches deals in every stage.
	StageAll domain.StageID = "all"
	// PriorityAll matches deals of every priority.
	PriorityAll domain.Priority = "all"
)

// DateRange restricts deals by creation time relative to Criteria.Now.
type DateRange string

const (
	DateAll     DateRange = "all"
	DateToday   DateRange = "today"
	DateWeek    DateRange = "week"
	DateMonth   DateRange = "month"
	DateQuarter DateRange = "quarter"
)

// Valid reports whether r is a known range. The empty range means all.
func (r DateRange) Valid() bool {
	switch r {
	case "", DateAll, DateToday, DateWeek, DateMonth, DateQuarter:
		return true
	}
	return false
}

// Range is an inclusive value interval. A nil Max is unbounded.
type Range struct {
	Min decimal.Decimal
	Max *decimal.Decimal

	empty bool
}

// NewRange builds a range from floats. A non-finite max means no upper bound.
// A min of -Inf means no lower bound; a min of +Inf or NaN matches nothing.
func NewRange(lo, hi float64) *Range {
	r := &Range{Min: decimal.Zero}
	switch {
	case math.IsNaN(lo) || math.IsInf(lo, 1):
		r.empty = true
	case !math.IsInf(lo, -1):
		r.Min = decimal.NewFromFloat(lo)
	}
	if !math.IsNaN(hi) && !math.IsInf(hi, 0) {
		m := decimal.NewFromFloat(hi)
		r.Max = &m
	}
	return r
}

// Contains reports whether min <= v <= max.
func (r *Range) Contains(v decimal.Decimal) bool {
	if r.empty || v.LessThan(r.Min) {
		return false
	}
	return r.Max == nil || !v.GreaterThan(*r.Max)
}

// Criteria are ANDed together. Zero values match everything.
type Criteria struct {
	// SearchText is matched case-insensitively against title, company and contact.
	SearchText string
	// Stage is a single stage or StageAll.
	Stage domain.StageID
	// Stages is a multi-select; empty means all.
	Stages []domain.StageID
	// Priority is a single priority or PriorityAll.
	Priority domain.Priority
	// ValueRange is inclusive; nil means unbounded.
	ValueRange *Range
	// CreatedWithin limits CreatedAt relative to Now.
	CreatedWithin DateRange
	// Now anchors CreatedWithin. Zero means time.Now().
	Now time.Time
}

// FilterDeals returns the deals matching c in their original relative order.
func FilterDeals(deals []domain.Deal, c Criteria) []domain.Deal {
	m := c.matcher()
	out := make([]domain.Deal, 0, len(deals))
	for _, d := range deals {
		if m.match(d) {
			out = append(out, d)
		}
	}
	return out
}

type matcher struct {
	needle   string
	stage    domain.StageID
	stages   map[domain.StageID]struct{}
	priority domain.Priority
	values   *Range
	since    time.Time
}

func (c Criteria) matcher() matcher {
	m := matcher{
		needle:   strings.ToLower(c.SearchText),
		stage:    c.Stage,
		priority: c.Priority,
		values:   c.ValueRange,
	}
	if m.stage == StageAll {
		m.stage = ""
	}
	if m.priority == PriorityAll {
		m.priority = ""
	}
	if len(c.Stages) > 0 {
		m.stages = make(map[domain.StageID]struct{}, len(c.Stages))
		for _, s := range c.Stages {
			m.stages[s] = struct{}{}
		}
	}
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	m.since = c.CreatedWithin.start(now)
	return m
}

func (m matcher) match(d domain.Deal) bool {
	if m.needle != "" &&
		!strings.Contains(strings.ToLower(d.Title), m.needle) &&
		!strings.Contains(strings.ToLower(d.Company), m.needle) &&
		!strings.Contains(strings.ToLower(d.Contact), m.needle) {
		return false
	}
	if m.stage != "" && d.Stage != m.stage {
		return false
	}
	if m.stages != nil {
		if _, ok := m.stages[d.Stage]; !ok {
			return false
		}
	}
	if m.priority != "" && d.Priority != m.priority {
		return false
	}
	if m.values != nil && !m.values.Contains(d.Value) {
		return false
	}
	if !m.since.IsZero() && d.CreatedAt.Before(m.since) {
		return false
	}
	return true
}

// start returns the earliest creation time inside the range, or the zero
// time for an unbounded range.
func (r DateRange) start(now time.Time) time.Time {
	y, mo, d := now.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
	switch r {
	case DateToday:
		return midnight
	case DateWeek:
		// weeks start on Monday
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case DateMonth:
		return time.Date(y, mo, 1, 0, 0, 0, 0, now.Location())
	case DateQuarter:
		q := (int(mo)-1)/3*3 + 1
		return time.Date(y, time.Month(q), 1, 0, 0, 0, 0, now.Location())
	}
	return time.Time{}
}

// SortKey selects the field SortDeals orders by.
type SortKey string

const (
	SortNone         SortKey = ""
	SortValue        SortKey = "value"
	SortProbability  SortKey = "probability"
	SortCreatedAt    SortKey = "created_at"
	SortLastActivity SortKey = "last_activity"
	SortTitle        SortKey = "title"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortValue, SortProbability, SortCreatedAt, SortLastActivity, SortTitle:
		return true
	}
	return false
}

// SortDeals returns a stably sorted copy of deals. SortNone keeps the input order.
func SortDeals(deals []domain.Deal, key SortKey, desc bool) []domain.Deal {
	out := slices.Clone(deals)
	if key == SortNone {
		return out
	}
	cmp := compareBy(key)
	slices.SortStableFunc(out, func(a, b domain.Deal) int {
		if desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	return out
}

func compareBy(key SortKey) func(a, b domain.Deal) int {
	switch key {
	case SortValue:
		return func(a, b domain.Deal) int { return a.Value.Cmp(b.Value) }
	case SortProbability:
		return func(a, b domain.Deal) int { return a.Probability - b.Probability }
	case SortCreatedAt:
		return func(a, b domain.Deal) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortLastActivity:
		return func(a, b domain.Deal) int { return a.LastActivity.Compare(b.LastActivity) }
	case SortTitle:
		return func(a, b domain.Deal) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	}
	return func(a, b domain.Deal) int { return 0 }
}
