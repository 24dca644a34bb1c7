// Package ledger records scan transactions for the active session and keeps
// team aggregates consistent with them.
//
// Every mutation runs under a single lock and is followed by synchronous
// delivery of typed events to the registered observers. Deleting a
// transaction rebuilds the owning team's aggregate by replaying its remaining
// transactions through the same path used for additions.
package ledger

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"gmscanner/internal/core"
	"gmscanner/internal/scoring"
)

var (
	ErrMissingTeam  = errors.New("transaction has no team id")
	ErrDuplicate    = errors.New("token already claimed in this session")
	ErrNotFound     = errors.New("transaction not found")
	ErrTeamNotFound = errors.New("team not found")
)

// GroupSource provides the catalog's group membership keyed by canonical name.
type GroupSource interface {
	GroupInventory() map[string]core.GroupInfo
}

// Result describes the outcome of an add.
type Result struct {
	Transaction core.Transaction
	Status      core.Status
	TeamScore   core.TeamScore
	NewGroups   []core.CompletedGroup
}

// Snapshot is the full ledger state used for wholesale persistence.
type Snapshot struct {
	SessionID    *string                   `json:"sessionId"`
	Transactions []core.Transaction        `json:"transactions"`
	Teams        map[string]core.TeamScore `json:"teams"`
	Claimed      []string                  `json:"claimed"`
}

type Ledger struct {
	mu           sync.Mutex
	groups       GroupSource
	sessionID    *string
	transactions []core.Transaction
	teams        map[string]*core.TeamScore
	claimed      map[string]struct{}

	events bus
	now    func() time.Time
}

func New(groups GroupSource) *Ledger {
	return &Ledger{
		groups:  groups,
		teams:   make(map[string]*core.TeamScore),
		claimed: make(map[string]struct{}),
		now:     time.Now,
	}
}

// Subscribe registers an observer and returns a function that removes it.
func (l *Ledger) Subscribe(fn Observer) func() {
	return l.events.subscribe(fn)
}

// Emit delivers an event raised outside the ledger, such as an authoritative
// score push, to the same observers.
func (l *Ledger) Emit(evt Event) {
	l.events.deliver(evt)
}

// Add records a scan after the duplicate pre-check.
func (l *Ledger) Add(tx core.Transaction) (Result, error) {
	return l.add(tx, true)
}

// AddConfirmed records a transaction whose uniqueness was already decided
// elsewhere. Re-adding a known transaction id is a no-op.
func (l *Ledger) AddConfirmed(tx core.Transaction) (Result, error) {
	return l.add(tx, false)
}

func (l *Ledger) add(tx core.Transaction, checkDuplicate bool) (Result, error) {
	if strings.TrimSpace(tx.TeamID) == "" {
		tx.Status = core.StatusError
		return Result{Transaction: tx, Status: core.StatusError}, ErrMissingTeam
	}
	inventory := l.inventory()

	l.mu.Lock()
	if tx.ID != "" {
		if i := l.indexLocked(tx.ID); i >= 0 {
			existing := l.transactions[i]
			score := l.teamLocked(existing.TeamID).Clone()
			l.mu.Unlock()
			return Result{Transaction: existing, Status: existing.Status, TeamScore: score}, nil
		}
	}
	if checkDuplicate {
		if _, dup := l.claimed[tx.TokenID]; dup {
			l.mu.Unlock()
			tx.Status = core.StatusDuplicate
			return Result{Transaction: tx, Status: core.StatusDuplicate}, ErrDuplicate
		}
	}
	if tx.Status == "" {
		tx.Status = core.StatusAccepted
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = l.now()
	}

	l.claimed[tx.TokenID] = struct{}{}
	l.transactions = append(l.transactions, tx)
	team := l.teamLocked(tx.TeamID)
	newGroups := l.applyLocked(team, tx, l.transactions, inventory)
	score := team.Clone()
	l.mu.Unlock()

	l.events.deliver(
		TransactionAdded{Transaction: tx, TeamScore: score, NewGroups: newGroups},
		TeamScoreUpdated{TeamScore: score},
	)
	return Result{Transaction: tx, Status: tx.Status, TeamScore: score, NewGroups: newGroups}, nil
}

// Remove deletes a transaction and rebuilds its team's aggregate from the
// remaining transactions.
func (l *Ledger) Remove(id string) (core.Transaction, error) {
	inventory := l.inventory()

	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return core.Transaction{}, ErrNotFound
	}
	tx := l.transactions[i]
	l.transactions = append(l.transactions[:i:i], l.transactions[i+1:]...)

	l.replayTeamLocked(tx.TeamID, inventory)
	if !l.referencedLocked(tx.TokenID) {
		delete(l.claimed, tx.TokenID)
	}
	score := l.teams[tx.TeamID].Clone()
	l.mu.Unlock()

	l.events.deliver(
		TransactionRemoved{Transaction: tx, TeamScore: score},
		TeamScoreUpdated{TeamScore: score},
	)
	return tx, nil
}

// Reset clears transactions, aggregates and the duplicate record and records
// the new session id. A nil id means no session.
func (l *Ledger) Reset(sessionID *string) {
	l.mu.Lock()
	l.transactions = nil
	l.teams = make(map[string]*core.TeamScore)
	l.claimed = make(map[string]struct{})
	l.sessionID = copyID(sessionID)
	l.mu.Unlock()

	l.events.deliver(LedgerCleared{SessionID: copyID(sessionID)})
}

// Adjust applies a manual delta straight to the team score and keeps the
// audit entry. Adjustments survive replays.
func (l *Ledger) Adjust(teamID string, adj core.AdminAdjustment) (core.TeamScore, error) {
	l.mu.Lock()
	team, ok := l.teams[teamID]
	if !ok {
		l.mu.Unlock()
		return core.TeamScore{}, ErrTeamNotFound
	}
	if adj.Timestamp.IsZero() {
		adj.Timestamp = l.now()
	}
	team.AdminAdjustments = append(team.AdminAdjustments, adj)
	team.Score += adj.Delta
	team.LastUpdate = adj.Timestamp
	score := team.Clone()
	l.mu.Unlock()

	l.events.deliver(TeamScoreUpdated{TeamScore: score})
	return score, nil
}

// EnsureTeam creates an empty aggregate for a rostered team.
func (l *Ledger) EnsureTeam(teamID string) {
	if strings.TrimSpace(teamID) == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teamLocked(teamID)
}

// ReplaceID swaps a provisional transaction id for the one assigned upstream.
func (l *Ledger) ReplaceID(oldID, newID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(oldID)
	if i < 0 || l.indexLocked(newID) >= 0 {
		return false
	}
	l.transactions[i].ID = newID
	return true
}

func (l *Ledger) IsDuplicate(tokenID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.claimed[tokenID]
	return ok
}

func (l *Ledger) MarkClaimed(tokenID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.claimed[tokenID] = struct{}{}
}

func (l *Ledger) UnmarkClaimed(tokenID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, tokenID)
}

// Claimed returns the duplicate-detection record, sorted.
func (l *Ledger) Claimed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.claimed))
	for id := range l.claimed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) SessionID() *string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyID(l.sessionID)
}

// Transactions returns a copy of the retained transactions in insertion order.
func (l *Ledger) Transactions() []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Transaction(nil), l.transactions...)
}

// Transaction looks up a retained transaction by id.
func (l *Ledger) Transaction(id string) (core.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		return l.transactions[i], true
	}
	return core.Transaction{}, false
}

// TeamScores returns every team aggregate ordered by team id.
func (l *Ledger) TeamScores() []core.TeamScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.TeamScore, 0, len(l.teams))
	for _, t := range l.teams {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out
}

func (l *Ledger) TeamScore(teamID string) (core.TeamScore, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.teams[teamID]
	if !ok {
		return core.TeamScore{}, false
	}
	return t.Clone(), true
}

// Stats summarises the retained transactions.
func (l *Ledger) Stats() core.LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := core.LedgerStats{ByMode: make(map[core.Mode]int)}
	for _, tx := range l.transactions {
		stats.Transactions++
		stats.ByMode[tx.Mode]++
		if tx.IsUnknown {
			stats.Unknown++
		}
		if tx.Counts() {
			stats.TotalValue += scoring.Value(tx)
		}
	}
	return stats
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := Snapshot{
		SessionID:    copyID(l.sessionID),
		Transactions: append([]core.Transaction(nil), l.transactions...),
		Teams:        make(map[string]core.TeamScore, len(l.teams)),
		Claimed:      make([]string, 0, len(l.claimed)),
	}
	for id, t := range l.teams {
		snap.Teams[id] = t.Clone()
	}
	for id := range l.claimed {
		snap.Claimed = append(snap.Claimed, id)
	}
	sort.Strings(snap.Claimed)
	return snap
}

// Restore replaces the ledger state without emitting events.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = copyID(snap.SessionID)
	l.transactions = append([]core.Transaction(nil), snap.Transactions...)
	l.teams = make(map[string]*core.TeamScore, len(snap.Teams))
	for id, t := range snap.Teams {
		score := t.Clone()
		l.teams[id] = &score
	}
	l.claimed = make(map[string]struct{}, len(snap.Claimed))
	for _, id := range snap.Claimed {
		l.claimed[id] = struct{}{}
	}
}

// applyLocked folds one transaction into the team aggregate. view is the set
// of transactions visible at this point of the (re)play.
func (l *Ledger) applyLocked(team *core.TeamScore, tx core.Transaction, view []core.Transaction, inventory map[string]core.GroupInfo) []core.CompletedGroup {
	team.TokensScanned++
	if tx.Counts() {
		team.BaseScore += scoring.Value(tx)
	}

	var awarded []core.CompletedGroup
	for _, g := range scoring.CompletedGroups(team.TeamID, view, inventory) {
		if team.HasCompleted(g.Name) {
			continue
		}
		team.BonusPoints += scoring.GroupBonus(team.TeamID, g, view)
		team.CompletedGroups = append(team.CompletedGroups, g.Name)
		awarded = append(awarded, g)
	}

	team.Score = team.BaseScore + team.BonusPoints + team.AdjustmentTotal()
	team.LastUpdate = tx.Timestamp
	return awarded
}

func (l *Ledger) replayTeamLocked(teamID string, inventory map[string]core.GroupInfo) {
	team := l.teamLocked(teamID)
	team.BaseScore = 0
	team.BonusPoints = 0
	team.TokensScanned = 0
	team.CompletedGroups = nil
	team.Score = team.AdjustmentTotal()

	var view []core.Transaction
	for _, tx := range l.transactions {
		if tx.TeamID != teamID {
			continue
		}
		view = append(view, tx)
		l.applyLocked(team, tx, view, inventory)
	}
	team.LastUpdate = l.now()
}

func (l *Ledger) teamLocked(teamID string) *core.TeamScore {
	team, ok := l.teams[teamID]
	if !ok {
		team = &core.TeamScore{TeamID: teamID}
		l.teams[teamID] = team
	}
	return team
}

func (l *Ledger) indexLocked(id string) int {
	for i, tx := range l.transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) referencedLocked(tokenID string) bool {
	for _, tx := range l.transactions {
		if tx.TokenID == tokenID {
			return true
		}
	}
	return false
}

func (l *Ledger) inventory() map[string]core.GroupInfo {
	if l.groups == nil {
		return nil
	}
	return l.groups.GroupInventory()
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
