package ledger

import (
	"sync"

	"gmscanner/internal/core"
)

// EventKind names a domain event.
type EventKind string

const (
	KindTransactionAdded   EventKind = "transaction:added"
	KindTransactionRemoved EventKind = "transaction:removed"
	KindLedgerCleared      EventKind = "ledger:cleared"
	KindTeamScoreUpdated   EventKind = "team-score:updated"
)

// Event is a typed domain event delivered to observers.
type Event interface {
	Kind() EventKind
}

type (
	TransactionAdded struct {
		Transaction core.Transaction
		TeamScore   core.TeamScore
		NewGroups   []core.CompletedGroup
	}

	TransactionRemoved struct {
		Transaction core.Transaction
		TeamScore   core.TeamScore
	}

	LedgerCleared struct {
		SessionID *string
	}

	TeamScoreUpdated struct {
		TeamScore core.TeamScore
	}
)

func (TransactionAdded) Kind() EventKind   { return KindTransactionAdded }
func (TransactionRemoved) Kind() EventKind { return KindTransactionRemoved }
func (LedgerCleared) Kind() EventKind      { return KindLedgerCleared }
func (TeamScoreUpdated) Kind() EventKind   { return KindTeamScoreUpdated }

// Observer receives events synchronously, in registration order.
type Observer func(Event)

type observerEntry struct {
	id int
	fn Observer
}

// bus is an ordered observer list. It has its own lock so that observers can
// be registered from inside a callback without touching ledger state.
type bus struct {
	mu        sync.Mutex
	nextID    int
	observers []observerEntry
}

func (b *bus) subscribe(fn Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, observerEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, o := range b.observers {
			if o.id == id {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

func (b *bus) deliver(events ...Event) {
	b.mu.Lock()
	observers := append([]observerEntry(nil), b.observers...)
	b.mu.Unlock()

	for _, evt := range events {
		for _, o := range observers {
			o.fn(evt)
		}
	}
}
