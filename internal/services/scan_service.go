package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gmscanner/internal/backend"
	"gmscanner/internal/catalog"
	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"

	"github.com/google/uuid"
)

var ErrSessionNotActive = errors.New("session is not active")

// ScanService turns a raw scan into a transaction and hands it to the
// persistence strategy.
type ScanService struct {
	strategy backend.Strategy
	tokens   catalog.TokenFinder
	deviceID string
	logger   *applog.Logger
	now      func() time.Time
	newID    func() string

	mu   sync.RWMutex
	mode core.Mode
}

func NewScanService(strategy backend.Strategy, tokens catalog.TokenFinder, deviceID string, mode core.Mode) *ScanService {
	if !mode.IsValid() {
		mode = core.ModeBlackmarket
	}
	return &ScanService{
		strategy: strategy,
		tokens:   tokens,
		deviceID: deviceID,
		logger:   applog.Default(applog.ComponentScan),
		now:      time.Now,
		newID:    uuid.NewString,
		mode:     mode,
	}
}

func (s *ScanService) Mode() core.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the scoring mode applied to subsequent scans.
func (s *ScanService) SetMode(mode core.Mode) error {
	if !mode.IsValid() {
		return core.ErrInvalidMode
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// ProcessScan records one scan for a team. Scans are only accepted while a
// session is active; a paused session rejects them.
func (s *ScanService) ProcessScan(ctx context.Context, teamID, tokenID string) (ledger.Result, error) {
	teamID = strings.TrimSpace(teamID)
	tokenID = strings.TrimSpace(tokenID)

	sess := s.strategy.Session()
	if sess == nil || sess.Status != core.SessionActive {
		return ledger.Result{}, ErrSessionNotActive
	}

	tx := s.buildTransaction(teamID, tokenID)
	if err := tx.Validate(); err != nil {
		tx.Status = core.StatusError
		return ledger.Result{Transaction: tx, Status: core.StatusError}, err
	}

	res, err := s.strategy.AddTransaction(ctx, tx)
	fields := applog.NewFields().
		WithOperation(applog.OpScan).
		WithTransaction(tx.ID, tx.TeamID, tx.TokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			s.logger.InfoContext(ctx, "Duplicate scan rejected", fields.ToSlice()...)
			return res, err
		}
		s.logger.ErrorContext(ctx, "Scan failed", fields.WithError(err).ToSlice()...)
		return res, fmt.Errorf("record scan: %w", err)
	}

	s.logger.InfoContext(ctx, "Scan recorded", append(fields.ToSlice(),
		applog.FieldMode, tx.Mode,
		applog.FieldScore, res.TeamScore.Score,
		"unknown", tx.IsUnknown,
		"new_groups", len(res.NewGroups))...)
	return res, nil
}

// buildTransaction resolves the token. Unknown tokens still produce a
// transaction so the scan is visible, but it is worth nothing.
func (s *ScanService) buildTransaction(teamID, tokenID string) core.Transaction {
	tx := core.Transaction{
		ID:        s.newID(),
		Timestamp: s.now(),
		DeviceID:  s.deviceID,
		Mode:      s.Mode(),
		TeamID:    teamID,
	}
	if tokenID == "" {
		return tx
	}
	if match, ok := s.tokens.FindToken(tokenID); ok {
		tx.TokenID = match.MatchedID
		tx.Category = match.Token.Category
		tx.Group = match.Token.Group
		tx.Rating = match.Token.Rating
		return tx
	}
	tx.TokenID = catalog.NormalizeTokenID(tokenID)
	tx.Category = core.CategoryUnknown
	tx.IsUnknown = true
	return tx
}
