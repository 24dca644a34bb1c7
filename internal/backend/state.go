package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"
	"gmscanner/internal/storage"
)

// record is the persisted form of a station's session.
type record struct {
	SessionID    *string                   `json:"sessionId"`
	Session      *core.Session             `json:"session,omitempty"`
	StartTime    time.Time                 `json:"startTime"`
	Transactions []core.Transaction        `json:"transactions"`
	Teams        map[string]core.TeamScore `json:"teams"`
	Mode         Mode                      `json:"mode"`
}

// state is the part both strategies share: the ledger, the session state
// machine and write-through persistence.
type state struct {
	mode     Mode
	deviceID string
	ledger   *ledger.Ledger
	store    storage.KeyValueStore
	logger   *applog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *core.Session

	persistMu sync.Mutex
}

func newState(mode Mode, deviceID string, store storage.KeyValueStore, groups ledger.GroupSource) *state {
	return &state{
		mode:     mode,
		deviceID: deviceID,
		ledger:   ledger.New(groups),
		store:    store,
		logger:   applog.Default(applog.ComponentBackend).With(applog.FieldMode, mode.String()),
		now:      time.Now,
	}
}

func (s *state) Transactions() []core.Transaction {
	return s.ledger.Transactions()
}

func (s *state) Stats() core.LedgerStats {
	return s.ledger.Stats()
}

func (s *state) Subscribe(fn ledger.Observer) func() {
	return s.ledger.Subscribe(fn)
}

func (s *state) Session() *core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.session)
}

// Ledger exposes the underlying ledger for read-only reporting.
func (s *state) Ledger() *ledger.Ledger {
	return s.ledger
}

// startSession opens a new session and resets the ledger. A session that is
// still running must be ended first.
func (s *state) startSession(id, name string, teams []string) (*core.Session, error) {
	s.mu.Lock()
	if s.session.IsOpen() {
		status := s.session.Status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s session is still open", ErrInvalidTransition, status)
	}
	s.session = &core.Session{
		ID:        id,
		Name:      name,
		Status:    core.SessionActive,
		StartTime: s.now(),
		Teams:     append([]string(nil), teams...),
	}
	sess := copySession(s.session)
	s.mu.Unlock()

	s.ledger.Reset(&sess.ID)
	for _, team := range teams {
		s.ledger.EnsureTeam(team)
	}
	return sess, nil
}

// transition moves the current session to the target status. Ending a
// session clears transactions, the duplicate record and team aggregates.
func (s *state) transition(to core.SessionStatus) (*core.Session, error) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	from := s.session.Status
	if !allowedTransition(from, to) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.session.Status = to
	sess := copySession(s.session)
	s.mu.Unlock()

	if to == core.SessionEnded {
		s.ledger.Reset(nil)
	}
	return sess, nil
}

// checkTransition reports whether the current session may move to the
// target status without changing it.
func (s *state) checkTransition(to core.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoSession
	}
	if !allowedTransition(s.session.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.session.Status, to)
	}
	return nil
}

func (s *state) setSession(sess *core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = copySession(sess)
}

func allowedTransition(from, to core.SessionStatus) bool {
	switch to {
	case core.SessionPaused:
		return from == core.SessionActive
	case core.SessionActive:
		return from == core.SessionPaused
	case core.SessionEnded:
		return from == core.SessionActive || from == core.SessionPaused
	}
	return false
}

// adjust applies an admin delta stamped with this station's id.
func (s *state) adjust(teamID string, delta int64, reason string) (core.TeamScore, error) {
	if delta == 0 {
		return core.TeamScore{}, core.ErrInvalidDelta
	}
	return s.ledger.Adjust(teamID, core.AdminAdjustment{
		Delta:     delta,
		Reason:    reason,
		Timestamp: s.now(),
		StationID: s.deviceID,
	})
}

// persist writes the session record and the duplicate record. Failures are
// logged; in-memory state stays authoritative.
func (s *state) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.ledger.Snapshot()
	rec := record{
		SessionID:    snap.SessionID,
		Session:      s.Session(),
		Transactions: snap.Transactions,
		Teams:        snap.Teams,
		Mode:         s.mode,
	}
	if rec.Session != nil {
		rec.StartTime = rec.Session.StartTime
	}

	if err := storage.PutJSON(ctx, s.store, storageKey("session", s.mode), rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist session", applog.NewFields().
			WithOperation(applog.OpPersist).WithError(err).ToSlice()...)
	}
	if err := storage.PutJSON(ctx, s.store, storageKey("duplicates", s.mode), snap.Claimed); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist duplicate record", applog.NewFields().
			WithOperation(applog.OpPersist).WithError(err).ToSlice()...)
	}
}

// restore loads the persisted record into the ledger. It returns nil when
// nothing was stored.
func (s *state) restore(ctx context.Context) (*record, error) {
	if s.store == nil {
		return nil, nil
	}
	var rec record
	if err := storage.GetJSON(ctx, s.store, storageKey("session", s.mode), &rec); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var claimed []string
	if err := storage.GetJSON(ctx, s.store, storageKey("duplicates", s.mode), &claimed); err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("load duplicates: %w", err)
	}

	s.ledger.Restore(ledger.Snapshot{
		SessionID:    rec.SessionID,
		Transactions: rec.Transactions,
		Teams:        rec.Teams,
		Claimed:      claimed,
	})
	s.setSession(rec.Session)
	return &rec, nil
}

// discard removes the persisted record and empties the ledger.
func (s *state) discard(ctx context.Context) {
	s.setSession(nil)
	s.ledger.Restore(ledger.Snapshot{})
	if s.store == nil {
		return
	}
	for _, kind := range []string{"session", "duplicates"} {
		if err := s.store.Delete(ctx, storageKey(kind, s.mode)); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete stored record", "key", storageKey(kind, s.mode), applog.FieldError, err)
		}
	}
}

func copySession(s *core.Session) *core.Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Teams = append([]string(nil), s.Teams...)
	return &out
}
