package backend

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gmscanner/internal/amqp"
	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"
	"gmscanner/internal/storage"
)

// NetworkedStrategy mirrors an orchestrator. Scans are recorded locally at
// once for responsiveness and submitted upstream; the orchestrator's pushes
// then confirm, correct or reset the local view.
type NetworkedStrategy struct {
	*state
	publisher Publisher

	pushMu        sync.Mutex
	authoritative map[string]core.TeamScore
	provisional   map[string]struct{}
	synced        bool
}

var (
	_ Strategy            = (*NetworkedStrategy)(nil)
	_ AuthoritativeSource = (*NetworkedStrategy)(nil)
)

func NewNetworkedStrategy(deviceID string, store storage.KeyValueStore, groups ledger.GroupSource, publisher Publisher) *NetworkedStrategy {
	return &NetworkedStrategy{
		state:         newState(Networked, deviceID, store, groups),
		publisher:     publisher,
		authoritative: make(map[string]core.TeamScore),
		provisional:   make(map[string]struct{}),
	}
}

// Load restores the cached view from the previous run. The orchestrator's
// next full sync supersedes it.
func (s *NetworkedStrategy) Load(ctx context.Context) error {
	rec, err := s.restore(ctx)
	if err != nil {
		return err
	}
	if rec != nil {
		s.logger.InfoContext(ctx, "Restored networked cache",
			applog.FieldSessionID, derefID(rec.SessionID),
			"transactions", len(rec.Transactions))
	}
	return nil
}

// IsReady reports whether a full sync has been received.
func (s *NetworkedStrategy) IsReady() bool {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	return s.synced
}

func (s *NetworkedStrategy) AddTransaction(ctx context.Context, tx core.Transaction) (ledger.Result, error) {
	res, err := s.ledger.Add(tx)
	if err != nil {
		return res, err
	}
	s.pushMu.Lock()
	s.provisional[res.Transaction.ID] = struct{}{}
	s.pushMu.Unlock()

	s.publish(ctx, amqp.CmdTransactionSubmit, amqp.TransactionSubmit{
		Transaction: res.Transaction,
		SessionID:   derefID(s.ledger.SessionID()),
	})
	s.persist(ctx)
	return res, nil
}

func (s *NetworkedStrategy) RemoveTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := s.ledger.Remove(id)
	if err != nil {
		return tx, err
	}
	s.pushMu.Lock()
	delete(s.provisional, id)
	s.pushMu.Unlock()

	s.publish(ctx, amqp.CmdTransactionDelete, amqp.TransactionDelete{TransactionID: id})
	s.persist(ctx)
	return tx, nil
}

// TeamScores returns the locally computed scores. Use AuthoritativeScores
// for the orchestrator's view.
func (s *NetworkedStrategy) TeamScores() []core.TeamScore {
	return s.ledger.TeamScores()
}

// AdjustTeamScore also accepts teams known only from orchestrator pushes.
func (s *NetworkedStrategy) AdjustTeamScore(ctx context.Context, teamID string, delta int64, reason string) (core.TeamScore, error) {
	s.pushMu.Lock()
	_, pushed := s.authoritative[teamID]
	s.pushMu.Unlock()
	if pushed {
		s.ledger.EnsureTeam(teamID)
	}
	score, err := s.adjust(teamID, delta, reason)
	if err != nil {
		return score, err
	}
	s.publish(ctx, amqp.CmdScoreAdjust, amqp.ScoreAdjust{TeamID: teamID, Delta: delta, Reason: reason})
	s.persist(ctx)
	return score, nil
}

// CreateSession asks the orchestrator for a new session. The local session
// is provisional until the next full sync carries the orchestrator's id.
func (s *NetworkedStrategy) CreateSession(ctx context.Context, name string, teams []string) (*core.Session, error) {
	sess, err := s.startSession(s.newPendingSessionID(), name, teams)
	if err != nil {
		return nil, err
	}
	s.pushMu.Lock()
	s.authoritative = make(map[string]core.TeamScore)
	s.provisional = make(map[string]struct{})
	s.pushMu.Unlock()

	s.publish(ctx, amqp.CmdSessionCreate, amqp.SessionCreate{Name: name, Teams: teams})
	s.persist(ctx)
	return sess, nil
}

func (s *NetworkedStrategy) PauseSession(ctx context.Context) (*core.Session, error) {
	return s.move(ctx, core.SessionPaused, amqp.CmdSessionPause)
}

func (s *NetworkedStrategy) ResumeSession(ctx context.Context) (*core.Session, error) {
	return s.move(ctx, core.SessionActive, amqp.CmdSessionResume)
}

// EndSession closes the session and drops the local and pushed scores.
func (s *NetworkedStrategy) EndSession(ctx context.Context) (*core.Session, error) {
	if err := s.checkTransition(core.SessionEnded); err != nil {
		return nil, err
	}
	s.pushMu.Lock()
	s.authoritative = make(map[string]core.TeamScore)
	s.provisional = make(map[string]struct{})
	s.pushMu.Unlock()
	return s.move(ctx, core.SessionEnded, amqp.CmdSessionEnd)
}

func (s *NetworkedStrategy) move(ctx context.Context, to core.SessionStatus, cmd string) (*core.Session, error) {
	sess, err := s.transition(to)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, cmd, nil)
	s.persist(ctx)
	return sess, nil
}

// AuthoritativeScores merges pushed scores over the local ones: teams the
// orchestrator has reported use its figures, the rest fall back to local.
// It returns nil until at least one push has been received.
func (s *NetworkedStrategy) AuthoritativeScores() []core.TeamScore {
	s.pushMu.Lock()
	if len(s.authoritative) == 0 {
		s.pushMu.Unlock()
		return nil
	}
	merged := make(map[string]core.TeamScore, len(s.authoritative))
	for id, score := range s.authoritative {
		merged[id] = score.Clone()
	}
	s.pushMu.Unlock()

	for _, local := range s.ledger.TeamScores() {
		if _, ok := merged[local.TeamID]; !ok {
			merged[local.TeamID] = local
		}
	}
	out := make([]core.TeamScore, 0, len(merged))
	for _, score := range merged {
		out = append(out, score)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out
}

// ApplyScorePush records the orchestrator's score for one team, admin
// adjustments included as received.
func (s *NetworkedStrategy) ApplyScorePush(ctx context.Context, score core.TeamScore) error {
	if score.TeamID == "" {
		return ledger.ErrMissingTeam
	}
	score = score.Clone()
	score.IsFromBackend = true
	s.pushMu.Lock()
	s.authoritative[score.TeamID] = score
	s.pushMu.Unlock()

	s.ledger.Emit(ledger.TeamScoreUpdated{TeamScore: score})
	s.logger.DebugContext(ctx, "Score push applied", applog.FieldTeamID, score.TeamID, applog.FieldScore, score.Score)
	return nil
}

// ApplySync replaces the local view with the orchestrator's full state.
func (s *NetworkedStrategy) ApplySync(ctx context.Context, snap amqp.SyncFull) error {
	var sessionID *string
	if snap.Session != nil {
		id := snap.Session.ID
		sessionID = &id
	}
	s.setSession(snap.Session)
	s.ledger.Reset(sessionID)

	s.pushMu.Lock()
	s.authoritative = make(map[string]core.TeamScore, len(snap.Scores))
	s.provisional = make(map[string]struct{})
	pushed := make([]core.TeamScore, 0, len(snap.Scores))
	for _, score := range snap.Scores {
		score = score.Clone()
		score.IsFromBackend = true
		s.authoritative[score.TeamID] = score
		pushed = append(pushed, score.Clone())
	}
	s.synced = true
	s.pushMu.Unlock()

	if snap.Session != nil {
		for _, team := range snap.Session.Teams {
			s.ledger.EnsureTeam(team)
		}
	}
	for _, tx := range snap.Transactions {
		if _, err := s.ledger.AddConfirmed(tx); err != nil {
			s.logger.WarnContext(ctx, "Skipping synced transaction", applog.NewFields().
				WithTransaction(tx.ID, tx.TeamID, tx.TokenID).WithError(err).ToSlice()...)
		}
	}
	for _, score := range pushed {
		s.ledger.Emit(ledger.TeamScoreUpdated{TeamScore: score})
	}

	s.persist(ctx)
	s.logger.InfoContext(ctx, "Full sync applied",
		applog.FieldSessionID, derefID(sessionID),
		"teams", len(snap.Scores),
		"transactions", len(snap.Transactions))
	return nil
}

// ApplyTransactionNew handles a transaction broadcast. A broadcast of this
// station's own provisional scan confirms it under the orchestrator's id;
// anything else is recorded as already decided upstream.
func (s *NetworkedStrategy) ApplyTransactionNew(ctx context.Context, tx core.Transaction) error {
	if tx.ID != "" {
		if _, ok := s.ledger.Transaction(tx.ID); ok {
			s.confirm(tx.ID)
			return nil
		}
	}
	if localID, ok := s.matchProvisional(tx); ok {
		if s.ledger.ReplaceID(localID, tx.ID) {
			s.persist(ctx)
			return nil
		}
	}
	if _, err := s.ledger.AddConfirmed(tx); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// ApplyTransactionDeleted removes a transaction deleted on another station.
// Unknown ids are ignored.
func (s *NetworkedStrategy) ApplyTransactionDeleted(ctx context.Context, id string) error {
	if _, err := s.ledger.Remove(id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return err
	}
	s.confirm(id)
	s.persist(ctx)
	return nil
}

// ApplyTransactionResult drops a provisional scan the orchestrator rejected.
func (s *NetworkedStrategy) ApplyTransactionResult(ctx context.Context, res amqp.TransactionResult) error {
	switch res.Status {
	case core.StatusAccepted, core.StatusPending:
		return nil
	}
	s.pushMu.Lock()
	_, ok := s.provisional[res.TransactionID]
	s.pushMu.Unlock()
	if !ok {
		return nil
	}
	tx, err := s.ledger.Remove(res.TransactionID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return err
	}
	s.confirm(res.TransactionID)
	if err == nil && res.Status == core.StatusDuplicate {
		// Another station owns the token; keep it marked here too.
		s.ledger.MarkClaimed(tx.TokenID)
	}
	s.logger.WarnContext(ctx, "Scan rejected by orchestrator", applog.NewFields().
		WithTransaction(res.TransactionID, tx.TeamID, tx.TokenID).ToSlice()...)
	s.persist(ctx)
	return nil
}

// ApplyScoresReset clears scores and transactions but keeps the session.
func (s *NetworkedStrategy) ApplyScoresReset(ctx context.Context, _ amqp.ScoresReset) error {
	s.pushMu.Lock()
	s.authoritative = make(map[string]core.TeamScore)
	s.provisional = make(map[string]struct{})
	s.pushMu.Unlock()

	sess := s.Session()
	s.ledger.Reset(s.ledger.SessionID())
	if sess != nil {
		for _, team := range sess.Teams {
			s.ledger.EnsureTeam(team)
		}
	}
	s.persist(ctx)
	return nil
}

func (s *NetworkedStrategy) confirm(id string) {
	s.pushMu.Lock()
	delete(s.provisional, id)
	s.pushMu.Unlock()
}

// matchProvisional finds this station's unconfirmed scan of the same token
// for the same team.
func (s *NetworkedStrategy) matchProvisional(tx core.Transaction) (string, bool) {
	if tx.DeviceID != s.deviceID {
		return "", false
	}
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	for _, local := range s.ledger.Transactions() {
		if _, ok := s.provisional[local.ID]; !ok {
			continue
		}
		if local.TokenID == tx.TokenID && local.TeamID == tx.TeamID {
			delete(s.provisional, local.ID)
			return local.ID, true
		}
	}
	return "", false
}

func (s *NetworkedStrategy) publish(ctx context.Context, msgType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCommand(ctx, msgType, payload); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish command", applog.NewFields().
			WithOperation(applog.OpPublish).WithError(err).ToSlice()...)
	}
}

func (s *NetworkedStrategy) newPendingSessionID() string {
	return "pending_" + s.now().Format("20060102T150405")
}
