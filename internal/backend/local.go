package backend

import (
	"context"
	"fmt"

	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"
	"gmscanner/internal/storage"

	"github.com/google/uuid"
)

// LocalStrategy keeps the whole game on this device. Every mutation is
// written through to the store.
type LocalStrategy struct {
	*state
	ready bool
}

var _ Strategy = (*LocalStrategy)(nil)

func NewLocalStrategy(deviceID string, store storage.KeyValueStore, groups ledger.GroupSource) *LocalStrategy {
	return &LocalStrategy{state: newState(Standalone, deviceID, store, groups)}
}

// Load restores the stored session. A session started on a previous
// calendar day is discarded.
func (s *LocalStrategy) Load(ctx context.Context) error {
	rec, err := s.restore(ctx)
	if err != nil {
		return err
	}
	s.ready = true
	if rec == nil {
		return nil
	}
	if !sameDay(rec.StartTime, s.now()) {
		s.logger.InfoContext(ctx, "Discarding session from a previous day",
			applog.FieldSessionID, derefID(rec.SessionID),
			"start_time", rec.StartTime)
		s.discard(ctx)
		return nil
	}
	s.logger.InfoContext(ctx, "Restored local session",
		applog.FieldSessionID, derefID(rec.SessionID),
		"transactions", len(rec.Transactions))
	return nil
}

func (s *LocalStrategy) IsReady() bool {
	return s.ready
}

func (s *LocalStrategy) AddTransaction(ctx context.Context, tx core.Transaction) (ledger.Result, error) {
	res, err := s.ledger.Add(tx)
	if err != nil {
		return res, err
	}
	s.persist(ctx)
	return res, nil
}

func (s *LocalStrategy) RemoveTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := s.ledger.Remove(id)
	if err != nil {
		return tx, err
	}
	s.persist(ctx)
	return tx, nil
}

func (s *LocalStrategy) TeamScores() []core.TeamScore {
	return s.ledger.TeamScores()
}

func (s *LocalStrategy) AdjustTeamScore(ctx context.Context, teamID string, delta int64, reason string) (core.TeamScore, error) {
	score, err := s.adjust(teamID, delta, reason)
	if err != nil {
		return score, err
	}
	s.persist(ctx)
	return score, nil
}

func (s *LocalStrategy) CreateSession(ctx context.Context, name string, teams []string) (*core.Session, error) {
	sess, err := s.startSession(s.newSessionID(), name, teams)
	if err != nil {
		return nil, err
	}
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Session created", applog.FieldSessionID, sess.ID, "teams", len(teams))
	return sess, nil
}

func (s *LocalStrategy) PauseSession(ctx context.Context) (*core.Session, error) {
	return s.move(ctx, core.SessionPaused)
}

func (s *LocalStrategy) ResumeSession(ctx context.Context) (*core.Session, error) {
	return s.move(ctx, core.SessionActive)
}

func (s *LocalStrategy) EndSession(ctx context.Context) (*core.Session, error) {
	return s.move(ctx, core.SessionEnded)
}

func (s *LocalStrategy) move(ctx context.Context, to core.SessionStatus) (*core.Session, error) {
	sess, err := s.transition(to)
	if err != nil {
		return nil, err
	}
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Session status changed", applog.FieldSessionID, sess.ID, "status", sess.Status)
	return sess, nil
}

// newSessionID returns local_<yyyymmdd>_<8 hex chars>.
func (s *LocalStrategy) newSessionID() string {
	return fmt.Sprintf("local_%s_%s", s.now().Format("20060102"), uuid.NewString()[:8])
}
