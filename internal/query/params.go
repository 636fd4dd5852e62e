package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/V4T54L/dealboard/internal/domain"
)

// Request is a parsed list request: filter criteria plus ordering.
type Request struct {
	Criteria Criteria
	Sort     SortKey
	Desc     bool
}

// ParseRequest reads criteria from URL query parameters:
// search, stage, stages (comma separated), priority, min, max, created, sort, desc.
// Unknown stage ids are not rejected here; they simply match nothing.
func ParseRequest(v url.Values) (Request, error) {
	var req Request
	c := &req.Criteria

	c.SearchText = strings.TrimSpace(v.Get("search"))
	c.Stage = domain.StageID(v.Get("stage"))
	if raw := v.Get("stages"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Stages = append(c.Stages, domain.StageID(s))
			}
		}
	}

	c.Priority = domain.Priority(v.Get("priority"))
	if c.Priority != "" && c.Priority != PriorityAll && !c.Priority.Valid() {
		return req, fmt.Errorf("invalid priority %q", c.Priority)
	}

	minRaw, maxRaw := v.Get("min"), v.Get("max")
	if minRaw != "" || maxRaw != "" {
		lo, hi := 0.0, math.Inf(1)
		var err error
		if minRaw != "" {
			if lo, err = parseAmount(minRaw); err != nil {
				return req, fmt.Errorf("invalid min: %w", err)
			}
			if math.IsInf(lo, 0) {
				return req, fmt.Errorf("invalid min: %q is not a finite amount", minRaw)
			}
		}
		if maxRaw != "" {
			if hi, err = parseAmount(maxRaw); err != nil {
				return req, fmt.Errorf("invalid max: %w", err)
			}
		}
		if hi < lo {
			return req, fmt.Errorf("max %v is below min %v", hi, lo)
		}
		c.ValueRange = NewRange(lo, hi)
	}

	c.CreatedWithin = DateRange(v.Get("created"))
	if !c.CreatedWithin.Valid() {
		return req, fmt.Errorf("invalid created range %q", c.CreatedWithin)
	}

	req.Sort = SortKey(v.Get("sort"))
	if !req.Sort.Valid() {
		return req, fmt.Errorf("invalid sort key %q", req.Sort)
	}
	if raw := v.Get("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("invalid desc: %w", err)
		}
		req.Desc = desc
	}
	return req, nil
}

// Apply filters then sorts deals.
func (r Request) Apply(deals []domain.Deal) []domain.Deal {
	return SortDeals(FilterDeals(deals, r.Criteria), r.Sort, r.Desc)
}

// parseAmount accepts "inf"; only max may use it, as an open upper bound.
func parseAmount(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || f < 0 {
		return 0, fmt.Errorf("%q is not a non-negative amount", s)
	}
	return f, nil
}
