package backend

import (
	"context"
	"errors"
	"sync"

	"gmscanner/internal/core"
	"gmscanner/internal/storage"
)

type fixedGroups map[string]core.GroupInfo

func (g fixedGroups) GroupInventory() map[string]core.GroupInfo { return g }

var testGroups = fixedGroups{
	"heist": {Name: "heist", DisplayName: "Heist", Multiplier: 3, TokenIDs: []string{"tok1", "tok2"}},
}

func scan(id, team, token string) core.Transaction {
	return core.Transaction{
		ID:       id,
		DeviceID: "GM_01",
		Mode:     core.ModeBlackmarket,
		TeamID:   team,
		TokenID:  token,
		Category: core.CategoryPersonal,
		Rating:   1,
		Group:    "Heist (x3)",
	}
}

type publishedCommand struct {
	Type    string
	Payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []publishedCommand
	err  error
}

func (p *fakePublisher) PublishCommand(_ context.Context, msgType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, publishedCommand{Type: msgType, Payload: payload})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, c := range p.sent {
		out[i] = c.Type
	}
	return out
}

// failingStore accepts reads but rejects every write.
type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}
