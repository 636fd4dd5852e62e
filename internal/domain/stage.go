package domain

import (
	"errors"
	"fmt"
)

// StageID is the stable key of a pipeline stage.
type StageID string

const (
	StageQualified   StageID = "qualified"
	StageProposal    StageID = "proposal"
	StageNegotiation StageID = "negotiation"
	StageClosedWon   StageID = "closedWon"
)

// Stage is one ordered column of the pipeline board.
type Stage struct {
	ID           StageID `json:"id"`
	DisplayName  string  `json:"display_name"`
	DisplayColor string  `json:"display_color"`
}

// Registry is the fixed, ordered set of stages a deal may occupy.
// It is read-only once constructed and safe for concurrent use.
type Registry struct {
	stages []Stage
	index  map[StageID]int
}

// DefaultRegistry returns the standard four-column sales pipeline.
func DefaultRegistry() *Registry {
	reg, _ := NewRegistry(
		Stage{ID: StageQualified, DisplayName: "Qualified", DisplayColor: "blue"},
		Stage{ID: StageProposal, DisplayName: "Proposal", DisplayColor: "primary"},
		Stage{ID: StageNegotiation, DisplayName: "Negotiation", DisplayColor: "purple"},
		Stage{ID: StageClosedWon, DisplayName: "Closed Won", DisplayColor: "success"},
	)
	return reg
}

// NewRegistry builds a registry from stages in board order.
func NewRegistry(stages ...Stage) (*Registry, error) {
	if len(stages) == 0 {
		return nil, errors.New("registry needs at least one stage")
	}
	r := &Registry{
		stages: make([]Stage, 0, len(stages)),
		index:  make(map[StageID]int, len(stages)),
	}
	for _, s := range stages {
		if s.ID == "" {
			return nil, errors.New("stage id must not be empty")
		}
		if _, dup := r.index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage id %q", s.ID)
		}
		r.index[s.ID] = len(r.stages)
		r.stages = append(r.stages, s)
	}
	return r, nil
}

// Stages returns a copy of the registered stages in board order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

// IsValid reports whether id names a registered stage.
func (r *Registry) IsValid(id StageID) bool {
	_, ok := r.index[id]
	return ok
}

// Get looks up a stage by id.
func (r *Registry) Get(id StageID) (Stage, bool) {
	i, ok := r.index[id]
	if !ok {
		return Stage{}, false
	}
	return r.stages[i], true
}

// DisplayName returns the stage's display name, or the raw id when unknown.
func (r *Registry) DisplayName(id StageID) string {
	if s, ok := r.Get(id); ok {
		return s.DisplayName
	}
	return string(id)
}
