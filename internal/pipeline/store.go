// Package pipeline owns the authoritative, in-memory collection of deals and
// fans every successful mutation out to subscribed views.
package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/V4T54L/dealboard/internal/domain"
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for CreatedAt and LastActivity.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used for new deals.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

type subscription struct {
	id uint64
	fn Listener
}

// Store holds the deal collection in insertion order.
//
// Mutations are serialised by writeMu, which stays held while subscribers are
// notified, so no two mutations (including their notifications) interleave.
// mu only guards the collection itself and is released before listeners run,
// which lets listeners call List and Get.
type Store struct {
	reg    *domain.Registry
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	deals   []domain.Deal
	index   map[string]int
	version uint64

	subMu   sync.Mutex
	subs    []subscription
	nextSub uint64
}

// NewStore creates an empty store validating stages against reg.
func NewStore(reg *domain.Registry, opts ...Option) *Store {
	s := &Store{
		reg:    reg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
		index:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "pipeline_store")
	return s
}

// Registry returns the stage registry the store validates against.
func (s *Store) Registry() *domain.Registry { return s.reg }

// List returns a copy of all deals in insertion order.
func (s *Store) List() []domain.Deal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.deals)
}

// Len returns the number of deals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deals)
}

// Version increases by one with every successful mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns a copy of a single deal.
func (s *Store) Get(id string) (domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Deal{}, &domain.NotFoundError{ID: id}
	}
	return s.deals[i], nil
}

// Add validates fields and appends a new deal. On validation failure the
// returned error is a domain.ValidationErrors and the store is unchanged.
func (s *Store) Add(fields domain.NewDealFields) (domain.Deal, error) {
	if errs := domain.ValidateDeal(fields.Candidate(), s.reg); len(errs) > 0 {
		return domain.Deal{}, errs
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	id := s.uniqueID()
	now := s.now()
	deal := domain.Deal{
		ID:           id,
		Title:        strings.TrimSpace(fields.Title),
		Company:      fields.Company,
		Contact:      fields.Contact,
		Email:        fields.Email,
		Phone:        fields.Phone,
		Value:        decimal.NewFromFloat(float64(fields.Value)),
		Probability:  fields.Probability,
		Stage:        fields.Stage,
		Priority:     fields.Priority,
		CreatedAt:    now,
		LastActivity: now,
		Notes:        fields.Notes,
	}
	s.index[id] = len(s.deals)
	s.deals = append(s.deals, deal)
	snap := s.commitLocked(Change{Op: OpCreated, DealID: id, Deal: deal, ToStage: deal.Stage, At: now})
	s.mu.Unlock()

	s.logger.Debug("deal created", "deal_id", id, "stage", deal.Stage)
	s.notify(snap)
	return deal, nil
}

// Update merges patch into the deal with the given id and revalidates the
// merged record. It returns *domain.NotFoundError for an unknown id and
// domain.ValidationErrors when the merge would break an invariant; in both
// cases nothing is changed.
func (s *Store) Update(id string, patch domain.DealPatch) (domain.Deal, error) {
	return s.update(id, patch, OpUpdated)
}

// Move changes only the stage of a deal. It returns
// *domain.InvalidStageError for an unregistered stage.
func (s *Store) Move(id string, stage domain.StageID) (domain.Deal, error) {
	if !s.reg.IsValid(stage) {
		return domain.Deal{}, &domain.InvalidStageError{Stage: stage}
	}
	return s.update(id, domain.DealPatch{Stage: &stage}, OpMoved)
}

func (s *Store) update(id string, patch domain.DealPatch, op ChangeOp) (domain.Deal, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return domain.Deal{}, &domain.NotFoundError{ID: id}
	}
	prev := s.deals[i]
	merged, cand := patch.Apply(prev)
	if errs := domain.ValidateDeal(cand, s.reg); len(errs) > 0 {
		s.mu.Unlock()
		return domain.Deal{}, errs
	}
	merged.Title = strings.TrimSpace(merged.Title)
	merged.LastActivity = s.stamp(prev.LastActivity)
	s.deals[i] = merged

	snap := s.commitLocked(Change{
		Op:        op,
		DealID:    id,
		Deal:      merged,
		FromStage: prev.Stage,
		ToStage:   merged.Stage,
		At:        merged.LastActivity,
	})
	s.mu.Unlock()

	s.logger.Debug("deal updated", "deal_id", id, "op", op, "from_stage", prev.Stage, "to_stage", merged.Stage)
	s.notify(snap)
	return merged, nil
}

// Delete removes the deal permanently and reports whether it existed.
// Deleting an unknown id is not an error and notifies nobody.
func (s *Store) Delete(id string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	removed := s.deals[i]
	s.deals = slices.Delete(s.deals, i, i+1)
	s.reindexLocked()
	snap := s.commitLocked(Change{Op: OpDeleted, DealID: id, Deal: removed, FromStage: removed.Stage, At: s.now()})
	s.mu.Unlock()

	s.logger.Debug("deal deleted", "deal_id", id)
	s.notify(snap)
	return true
}

// Import inserts pre-built deals, keeping their timestamps. It is meant for
// seeding at startup. Deals without an id get one. The whole batch is
// rejected if any record is invalid or an id collides.
func (s *Store) Import(deals ...domain.Deal) error {
	if len(deals) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	batch := make([]domain.Deal, 0, len(deals))
	seen := make(map[string]struct{}, len(deals))
	for i, d := range deals {
		for d.ID == "" {
			id := s.uniqueID()
			if _, dup := seen[id]; !dup {
				d.ID = id
			}
		}
		if _, dup := s.index[d.ID]; dup {
			s.mu.Unlock()
			return fmt.Errorf("deal %d: duplicate id %q", i, d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			s.mu.Unlock()
			return fmt.Errorf("deal %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.CreatedAt.IsZero() {
			d.CreatedAt = s.now()
		}
		if d.LastActivity.IsZero() {
			d.LastActivity = d.CreatedAt
		}
		errs := domain.ValidateDeal(d.Candidate(), s.reg)
		if d.LastActivity.Before(d.CreatedAt) {
			errs = append(errs, domain.FieldError{Field: "last_activity", Msg: "must not be before created_at"})
		}
		if len(errs) > 0 {
			s.mu.Unlock()
			return fmt.Errorf("deal %d (%s): %w", i, d.ID, errs)
		}
		batch = append(batch, d)
	}

	for _, d := range batch {
		s.index[d.ID] = len(s.deals)
		s.deals = append(s.deals, d)
	}
	snap := s.commitLocked(Change{Op: OpImported, Count: len(batch), At: s.now()})
	s.mu.Unlock()

	s.logger.Info("deals imported", "count", len(batch))
	s.notify(snap)
	return nil
}

// Subscribe registers l and returns a function that removes it again.
// Listeners run in registration order. Calling the returned function more
// than once is harmless.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: l})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
		})
	}
}

// commitLocked bumps the version and captures the snapshot to publish.
// Callers must hold mu.
func (s *Store) commitLocked(c Change) Snapshot {
	s.version++
	return Snapshot{Version: s.version, Deals: slices.Clone(s.deals), Change: c}
}

// notify delivers snap to every current subscriber. Callers hold writeMu so
// deliveries of consecutive mutations never interleave.
func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		own := snap
		own.Deals = slices.Clone(snap.Deals)
		sub.fn(own)
	}
}

func (s *Store) reindexLocked() {
	clear(s.index)
	for i, d := range s.deals {
		s.index[d.ID] = i
	}
}

// uniqueID draws ids until one is free. Callers must hold mu.
func (s *Store) uniqueID() string {
	for {
		id := s.newID()
		if _, taken := s.index[id]; !taken && id != "" {
			return id
		}
	}
}

// stamp returns the current time, forced strictly after prev.
func (s *Store) stamp(prev time.Time) time.Time {
	t := s.now()
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	return t
}
