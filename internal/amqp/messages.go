package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"gmscanner/internal/core"
)

// Commands published by a station.
const (
	CmdTransactionSubmit = "transaction:submit"
	CmdTransactionDelete = "transaction:delete"
	CmdScoreAdjust       = "score:adjust"
	CmdSessionCreate     = "session:create"
	CmdSessionPause      = "session:pause"
	CmdSessionResume     = "session:resume"
	CmdSessionEnd        = "session:end"
)

// Events pushed by the orchestrator.
const (
	EvtScoreUpdated       = "score:updated"
	EvtSyncFull           = "sync:full"
	EvtTransactionNew     = "transaction:new"
	EvtTransactionDeleted = "transaction:deleted"
	EvtTransactionResult  = "transaction:result"
	EvtScoresReset        = "scores:reset"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	DeviceID  string          `json:"deviceId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type (
	TransactionSubmit struct {
		Transaction core.Transaction `json:"transaction"`
		SessionID   string           `json:"sessionId,omitempty"`
	}

	TransactionDelete struct {
		TransactionID string `json:"transactionId"`
	}

	ScoreAdjust struct {
		TeamID string `json:"teamId"`
		Delta  int64  `json:"delta"`
		Reason string `json:"reason,omitempty"`
	}

	SessionCreate struct {
		Name  string   `json:"name"`
		Teams []string `json:"teams"`
	}

	SyncFull struct {
		Session      *core.Session      `json:"session"`
		Scores       []core.TeamScore   `json:"scores"`
		Transactions []core.Transaction `json:"recentTransactions"`
	}

	TransactionNew struct {
		Transaction core.Transaction `json:"transaction"`
	}

	TransactionDeleted struct {
		TransactionID string `json:"transactionId"`
	}

	// TransactionResult is the orchestrator's verdict on a submitted scan,
	// addressed by the id the submitting station used.
	TransactionResult struct {
		TransactionID string      `json:"transactionId"`
		Status        core.Status `json:"status"`
		Message       string      `json:"message,omitempty"`
	}

	ScoresReset struct {
		TeamsReset []string `json:"teamsReset,omitempty"`
	}
)

// NewEnvelope wraps payload (which may be nil) in a timestamped frame.
func NewEnvelope(msgType, deviceID string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType, Timestamp: time.Now().UTC(), DeviceID: deviceID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

func (e Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into T. An empty payload
// yields the zero value.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}
