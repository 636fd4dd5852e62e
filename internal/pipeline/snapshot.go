package pipeline

import (
	"time"

	"github.com/V4T54L/dealboard/internal/domain"
)

// ChangeOp names the mutation that produced a snapshot.
type ChangeOp string

const (
	OpCreated  ChangeOp = "created"
	OpUpdated  ChangeOp = "updated"
	OpMoved    ChangeOp = "moved"
	OpDeleted  ChangeOp = "deleted"
	OpImported ChangeOp = "imported"
)

// Change describes the mutation behind a snapshot. For deletions Deal holds
// the last state of the removed record. Imports carry no single deal.
type Change struct {
	Op        ChangeOp       `json:"op"`
	DealID    string         `json:"deal_id,omitempty"`
	Deal      domain.Deal    `json:"deal"`
	FromStage domain.StageID `json:"from_stage,omitempty"`
	ToStage   domain.StageID `json:"to_stage,omitempty"`
	Count     int            `json:"count,omitempty"`
	At        time.Time      `json:"at"`
}

// Snapshot is the point-in-time view handed to subscribers. Deals is a
// private copy owned by the receiving listener.
type Snapshot struct {
	Version uint64        `json:"version"`
	Deals   []domain.Deal `json:"deals"`
	Change  Change        `json:"change"`
}

// Listener is invoked synchronously after every successful mutation.
// A listener may read from the store but must not mutate it from within the
// callback; doing so deadlocks.
type Listener func(Snapshot)
