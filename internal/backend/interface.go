// Package backend holds the persistence strategies a station runs with: a
// standalone one that keeps everything on the device and a networked one
// that mirrors an orchestrator.
package backend

import (
	"context"
	"errors"

	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
)

var (
	ErrNoSession         = errors.New("no session")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Strategy is what the rest of the station talks to. Both implementations
// share the same ledger semantics; they differ in where state is persisted
// and who has the final word on scores.
type Strategy interface {
	AddTransaction(ctx context.Context, tx core.Transaction) (ledger.Result, error)
	RemoveTransaction(ctx context.Context, id string) (core.Transaction, error)
	Transactions() []core.Transaction
	TeamScores() []core.TeamScore
	Stats() core.LedgerStats
	AdjustTeamScore(ctx context.Context, teamID string, delta int64, reason string) (core.TeamScore, error)

	CreateSession(ctx context.Context, name string, teams []string) (*core.Session, error)
	PauseSession(ctx context.Context) (*core.Session, error)
	ResumeSession(ctx context.Context) (*core.Session, error)
	EndSession(ctx context.Context) (*core.Session, error)
	Session() *core.Session

	IsReady() bool
	Subscribe(fn ledger.Observer) func()
}

// AuthoritativeSource is implemented by strategies that receive scores
// computed elsewhere. The result is nil until at least one team has been
// pushed.
type AuthoritativeSource interface {
	AuthoritativeScores() []core.TeamScore
}

// Publisher sends commands to the orchestrator.
type Publisher interface {
	PublishCommand(ctx context.Context, msgType string, payload any) error
}

// CleanupFunc releases resources held by a strategy.
type CleanupFunc func() error

// Mode selects the persistence strategy.
type Mode string

const (
	Standalone Mode = "standalone"
	Networked  Mode = "networked"
)

func (m Mode) String() string {
	return string(m)
}

func (m Mode) IsValid() bool {
	switch m {
	case Standalone, Networked:
		return true
	default:
		return false
	}
}

// storageKey returns the per-mode key for a persisted record.
func storageKey(kind string, m Mode) string {
	scope := "local"
	if m == Networked {
		scope = "networked"
	}
	return kind + ":" + scope
}
