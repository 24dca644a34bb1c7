// Package worker applies orchestrator events to the networked strategy.
package worker

import (
	"context"
	"errors"
	"fmt"

	"gmscanner/internal/amqp"
	"gmscanner/internal/backend"
	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"
)

// EventApplier is the networked strategy surface the worker drives.
type EventApplier interface {
	ApplyScorePush(ctx context.Context, score core.TeamScore) error
	ApplySync(ctx context.Context, snap amqp.SyncFull) error
	ApplyTransactionNew(ctx context.Context, tx core.Transaction) error
	ApplyTransactionDeleted(ctx context.Context, id string) error
	ApplyTransactionResult(ctx context.Context, res amqp.TransactionResult) error
	ApplyScoresReset(ctx context.Context, reset amqp.ScoresReset) error
}

var _ EventApplier = (*backend.NetworkedStrategy)(nil)

// OrchestratorWorker routes consumed envelopes by type.
type OrchestratorWorker struct {
	target EventApplier
	logger *applog.Logger
}

func NewOrchestratorWorker(target EventApplier) *OrchestratorWorker {
	return &OrchestratorWorker{
		target: target,
		logger: applog.Default(applog.ComponentWorker),
	}
}

// Run consumes events until ctx ends.
func (w *OrchestratorWorker) Run(ctx context.Context, source backend.EventSource) error {
	w.logger.InfoContext(ctx, "Orchestrator worker started")
	return source.ConsumeEvents(ctx, w.HandleEnvelope)
}

// HandleEnvelope applies one event. Undecodable payloads are dropped;
// unknown types are acknowledged and ignored.
func (w *OrchestratorWorker) HandleEnvelope(ctx context.Context, env amqp.Envelope) error {
	w.logger.DebugContext(ctx, "Processing orchestrator event",
		applog.FieldMessageType, env.Type,
		applog.FieldDeviceID, env.DeviceID)

	var err error
	switch env.Type {
	case amqp.EvtScoreUpdated:
		err = apply(ctx, env, w.target.ApplyScorePush)
	case amqp.EvtSyncFull:
		err = apply(ctx, env, w.target.ApplySync)
	case amqp.EvtTransactionNew:
		err = apply(ctx, env, func(ctx context.Context, p amqp.TransactionNew) error {
			return w.target.ApplyTransactionNew(ctx, p.Transaction)
		})
	case amqp.EvtTransactionDeleted:
		err = apply(ctx, env, func(ctx context.Context, p amqp.TransactionDeleted) error {
			return w.target.ApplyTransactionDeleted(ctx, p.TransactionID)
		})
	case amqp.EvtTransactionResult:
		err = apply(ctx, env, w.target.ApplyTransactionResult)
	case amqp.EvtScoresReset:
		err = apply(ctx, env, w.target.ApplyScoresReset)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown orchestrator event", applog.FieldMessageType, env.Type)
		return nil
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to apply orchestrator event", applog.NewFields().
			WithOperation(applog.OpSync).WithError(err).ToSlice()...)
	}
	return err
}

// apply decodes the payload as T and hands it to fn.
func apply[T any](ctx context.Context, env amqp.Envelope, fn func(context.Context, T) error) error {
	payload, err := amqp.DecodePayload[T](env)
	if err != nil {
		return fmt.Errorf("%w: %v", amqp.ErrDrop, err)
	}
	if err := fn(ctx, payload); err != nil {
		if errors.Is(err, ledger.ErrMissingTeam) {
			return fmt.Errorf("%w: apply %s: %v", amqp.ErrDrop, env.Type, err)
		}
		return fmt.Errorf("apply %s: %w", env.Type, err)
	}
	return nil
}
