// Package activity keeps a bounded feed of recent pipeline events derived
// from store snapshots.
package activity

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// Type classifies an activity entry.
type Type string

const (
	TypeCall     Type = "call"
	TypeEmail    Type = "email"
	TypeMeeting  Type = "meeting"
	TypeContact  Type = "contact"
	TypeProposal Type = "proposal"
	TypeTask     Type = "task"
	TypeStage    Type = "stage"
)

var icons = map[Type]string{
	TypeCall:     "phone",
	TypeEmail:    "mail",
	TypeMeeting:  "calendar",
	TypeContact:  "user-plus",
	TypeProposal: "file-text",
	TypeTask:     "check-circle",
	TypeStage:    "target",
}

// IconFor returns the icon asset name for t, or "activity" for unknown types.
func IconFor(t Type) string {
	if icon, ok := icons[t]; ok {
		return icon
	}
	return "activity"
}

// Entry is one line of the activity feed.
type Entry struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Icon    string          `json:"icon"`
	Title   string          `json:"title"`
	Company string          `json:"company,omitempty"`
	DealID  string          `json:"deal_id,omitempty"`
	Value   decimal.Decimal `json:"value"`
	At      time.Time       `json:"at"`
}

// Feed is a store subscriber that records the most recent entries.
type Feed struct {
	reg    *domain.Registry
	logger *slog.Logger

	mu      sync.RWMutex
	entries []Entry // ring buffer
	next    int
	full    bool
}

// NewFeed creates a feed that keeps at most size entries.
func NewFeed(reg *domain.Registry, size int, logger *slog.Logger) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{
		reg:     reg,
		logger:  logger.With("component", "activity_feed"),
		entries: make([]Entry, size),
	}
}

// Observe is a pipeline.Listener.
func (f *Feed) Observe(snap pipeline.Snapshot) {
	e, ok := f.entryFor(snap.Change)
	if !ok {
		return
	}
	e.ID = uuid.NewString()
	e.Icon = IconFor(e.Type)

	f.mu.Lock()
	f.entries[f.next] = e
	f.next = (f.next + 1) % len(f.entries)
	if f.next == 0 {
		f.full = true
	}
	f.mu.Unlock()

	f.logger.Debug("activity recorded", "type", e.Type, "deal_id", e.DealID)
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (f *Feed) Recent(limit int) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.next
	if f.full {
		n = len(f.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + len(f.entries)) % len(f.entries)
		out = append(out, f.entries[idx])
	}
	return out
}

func (f *Feed) entryFor(c pipeline.Change) (Entry, bool) {
	d := c.Deal
	e := Entry{Company: d.Company, DealID: c.DealID, Value: d.Value, At: c.At}
	switch c.Op {
	case pipeline.OpCreated:
		e.Type = TypeContact
		e.Title = fmt.Sprintf("Added new deal: %s", d.Title)
	case pipeline.OpMoved:
		if c.FromStage == c.ToStage {
			return Entry{}, false
		}
		e.Type = TypeStage
		e.Title = fmt.Sprintf("%s moved to %s", d.Title, f.reg.DisplayName(c.ToStage))
	case pipeline.OpUpdated:
		e.Type = TypeProposal
		e.Title = fmt.Sprintf("Updated %s", d.Title)
	case pipeline.OpDeleted:
		e.Type = TypeTask
		e.Title = fmt.Sprintf("Removed %s from pipeline", d.Title)
	default:
		return Entry{}, false
	}
	return e, true
}
