// Package publisher forwards pipeline changes to external consumers. The
// publishers are store listeners and never block a mutation on I/O.
package publisher

import (
	"encoding/json"
	"time"

	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// Event is the wire form of a pipeline change.
type Event struct {
	Version   uint64            `json:"version"`
	Op        pipeline.ChangeOp `json:"op"`
	DealID    string            `json:"deal_id,omitempty"`
	Deal      *domain.Deal      `json:"deal,omitempty"`
	FromStage domain.StageID    `json:"from_stage,omitempty"`
	ToStage   domain.StageID    `json:"to_stage,omitempty"`
	Count     int               `json:"count,omitempty"`
	At        time.Time         `json:"at"`
}

// NewEvent builds an Event from snap, redacting contact fields when a
// redactor is given.
func NewEvent(snap pipeline.Snapshot, redactor *pii.Redactor) Event {
	c := snap.Change
	e := Event{
		Version:   snap.Version,
		Op:        c.Op,
		DealID:    c.DealID,
		FromStage: c.FromStage,
		ToStage:   c.ToStage,
		Count:     c.Count,
		At:        c.At,
	}
	if c.DealID != "" {
		d := c.Deal
		if redactor != nil {
			d = redactor.Redact(d)
		}
		e.Deal = &d
	}
	return e
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}
