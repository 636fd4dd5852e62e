// Package seed loads the initial set of deals from YAML.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/V4T54L/dealboard/internal/domain"
)

//go:embed deals.yaml
var defaultDeals []byte

type file struct {
	Deals []record `yaml:"deals"`
}

type record struct {
	ID           string  `yaml:"id"`
	Title        string  `yaml:"title"`
	Company      string  `yaml:"company"`
	Contact      string  `yaml:"contact"`
	Email        string  `yaml:"email"`
	Phone        string  `yaml:"phone"`
	Value        float64 `yaml:"value"`
	Probability  int     `yaml:"probability"`
	Stage        string  `yaml:"stage"`
	Priority     string  `yaml:"priority"`
	CreatedAt    string  `yaml:"created_at"`
	LastActivity string  `yaml:"last_activity"`
	Notes        string  `yaml:"notes"`
}

var timeLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// Default returns the built-in demo pipeline.
func Default() ([]domain.Deal, error) {
	return Load(bytes.NewReader(defaultDeals))
}

// LoadFile reads deals from a YAML file on disk.
func LoadFile(path string) ([]domain.Deal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes deals from r. Records without an id get a fresh UUID and a
// missing last_activity falls back to created_at. Field invariants are left
// to pipeline.Store.Import.
func Load(r io.Reader) ([]domain.Deal, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}

	deals := make([]domain.Deal, 0, len(f.Deals))
	for i, rec := range f.Deals {
		d, err := rec.deal()
		if err != nil {
			return nil, fmt.Errorf("seed deal %d: %w", i, err)
		}
		deals = append(deals, d)
	}
	return deals, nil
}

func (r record) deal() (domain.Deal, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("created_at: %w", err)
	}
	last, err := parseTime(r.LastActivity)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("last_activity: %w", err)
	}
	if last.IsZero() {
		last = created
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.Deal{
		ID:           id,
		Title:        r.Title,
		Company:      r.Company,
		Contact:      r.Contact,
		Email:        r.Email,
		Phone:        r.Phone,
		Value:        decimal.NewFromFloat(r.Value),
		Probability:  r.Probability,
		Stage:        domain.StageID(r.Stage),
		Priority:     domain.Priority(r.Priority),
		CreatedAt:    created,
		LastActivity: last,
		Notes:        r.Notes,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
