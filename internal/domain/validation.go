package domain

import (
	"fmt"
	"math"
	"strings"
)

// Probability bounds, inclusive.
const (
	MinProbability = 0
	MaxProbability = 100
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// ValidationErrors collects every failing field of one record so a form can
// show all problems at once.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields groups messages by field name.
func (v ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(v))
	for _, fe := range v {
		out[fe.Field] = append(out[fe.Field], fe.Msg)
	}
	return out
}

// Has reports whether field failed validation.
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// DealCandidate is the part of a deal that carries invariants.
type DealCandidate struct {
	Title       string
	Value       float64
	Probability int
	Stage       StageID
	Priority    Priority
}

// ValidateDeal checks a candidate against the deal invariants and the stage
// registry. It returns nil when the candidate is valid.
func ValidateDeal(c DealCandidate, reg *Registry) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(c.Title) == "" {
		errs = append(errs, FieldError{"title", "required"})
	}

	switch {
	case math.IsNaN(c.Value) || math.IsInf(c.Value, 0):
		errs = append(errs, FieldError{"value", "must be a finite number"})
	case c.Value < 0:
		errs = append(errs, FieldError{"value", "must not be negative"})
	}

	if c.Probability < MinProbability || c.Probability > MaxProbability {
		errs = append(errs, FieldError{"probability", fmt.Sprintf("must be between %d and %d", MinProbability, MaxProbability)})
	}

	if c.Stage == "" {
		errs = append(errs, FieldError{"stage", "required"})
	} else if !reg.IsValid(c.Stage) {
		errs = append(errs, FieldError{"stage", fmt.Sprintf("unknown stage %q", c.Stage)})
	}

	if !c.Priority.Valid() {
		errs = append(errs, FieldError{"priority", "must be one of high, medium, low"})
	}

	return errs
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
