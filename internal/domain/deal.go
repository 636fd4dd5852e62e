package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Priority ranks how urgently a deal needs attention.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Deal represents a tracked sales opportunity.
type Deal struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Company      string          `json:"company"`
	Contact      string          `json:"contact"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Value        decimal.Decimal `json:"value"`
	Probability  int             `json:"probability"`
	Stage        StageID         `json:"stage"`
	Priority     Priority        `json:"priority"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
	Notes        string          `json:"notes"`
}

// Amount is a submitted money value. It decodes from a JSON number or from the
// quoted decimal string Deal.Value encodes to, so a served value can be sent
// back unchanged. It stays a float so NaN, Inf and negative input reach
// ValidateDeal instead of being rounded away.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("value %q is not a decimal number", raw)
		}
		*a = Amount(d.InexactFloat64())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// NewDealFields is the payload a new-deal form submits.
type NewDealFields struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Contact     string   `json:"contact"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Value       Amount   `json:"value"`
	Probability int      `json:"probability"`
	Stage       StageID  `json:"stage"`
	Priority    Priority `json:"priority"`
	Notes       string   `json:"notes"`
}

// WithDefaults fills the values the new-deal form preselects.
func (f NewDealFields) WithDefaults() NewDealFields {
	if f.Stage == "" {
		f.Stage = StageQualified
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	return f
}

// Candidate returns the validated subset of the fields.
func (f NewDealFields) Candidate() DealCandidate {
	return DealCandidate{
		Title:       f.Title,
		Value:       float64(f.Value),
		Probability: f.Probability,
		Stage:       f.Stage,
		Priority:    f.Priority,
	}
}

// DealPatch is a partial update. Nil fields are left unchanged.
type DealPatch struct {
	Title       *string   `json:"title,omitempty"`
	Company     *string   `json:"company,omitempty"`
	Contact     *string   `json:"contact,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Value       *Amount   `json:"value,omitempty"`
	Probability *int      `json:"probability,omitempty"`
	Stage       *StageID  `json:"stage,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p DealPatch) IsEmpty() bool {
	return p.Title == nil && p.Company == nil && p.Contact == nil && p.Email == nil &&
		p.Phone == nil && p.Value == nil && p.Probability == nil && p.Stage == nil &&
		p.Priority == nil && p.Notes == nil
}

// Apply merges the patch into a copy of d and returns the merged deal together
// with the candidate that has to pass validation before the merge is kept.
func (p DealPatch) Apply(d Deal) (Deal, DealCandidate) {
	c := d.Candidate()
	if p.Title != nil {
		d.Title = *p.Title
		c.Title = *p.Title
	}
	if p.Company != nil {
		d.Company = *p.Company
	}
	if p.Contact != nil {
		d.Contact = *p.Contact
	}
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Value != nil {
		c.Value = float64(*p.Value)
		if validAmount(c.Value) {
			d.Value = decimal.NewFromFloat(c.Value)
		}
	}
	if p.Probability != nil {
		d.Probability = *p.Probability
		c.Probability = *p.Probability
	}
	if p.Stage != nil {
		d.Stage = *p.Stage
		c.Stage = *p.Stage
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
		c.Priority = *p.Priority
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	return d, c
}

// Candidate returns the validated subset of an existing deal.
func (d Deal) Candidate() DealCandidate {
	return DealCandidate{
		Title:       d.Title,
		Value:       d.Value.InexactFloat64(),
		Probability: d.Probability,
		Stage:       d.Stage,
		Priority:    d.Priority,
	}
}
