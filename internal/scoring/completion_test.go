package scoring

import (
	"testing"

	"gmscanner/internal/core"
)

func blackmarket(team, token string) core.Transaction {
	return core.Transaction{
		TeamID:   team,
		TokenID:  token,
		Mode:     core.ModeBlackmarket,
		Status:   core.StatusAccepted,
		Rating:   1,
		Category: core.CategoryPersonal,
	}
}

func testInventory() map[string]core.GroupInfo {
	return map[string]core.GroupInfo{
		"server logs": {Name: "server logs", DisplayName: "Server Logs", Multiplier: 3, TokenIDs: []string{"a", "b", "c"}},
		"solo":        {Name: "solo", DisplayName: "Solo", Multiplier: 4, TokenIDs: []string{"d"}},
		"display":     {Name: "display", DisplayName: "Display", Multiplier: 1, TokenIDs: []string{"e", "f"}},
	}
}

func TestCompletedGroups(t *testing.T) {
	inv := testInventory()

	t.Run("all members owned", func(t *testing.T) {
		txs := []core.Transaction{blackmarket("001", "a"), blackmarket("001", "b"), blackmarket("001", "c")}
		got := CompletedGroups("001", txs, inv)
		if len(got) != 1 || got[0].Name != "server logs" || got[0].Multiplier != 3 || got[0].DisplayName != "Server Logs" {
			t.Fatalf("unexpected groups: %+v", got)
		}
	})

	t.Run("one member missing", func(t *testing.T) {
		txs := []core.Transaction{blackmarket("001", "a"), blackmarket("001", "b")}
		if got := CompletedGroups("001", txs, inv); len(got) != 0 {
			t.Fatalf("expected no groups, got %+v", got)
		}
	})

	t.Run("member owned by another team", func(t *testing.T) {
		txs := []core.Transaction{blackmarket("001", "a"), blackmarket("001", "b"), blackmarket("002", "c")}
		if got := CompletedGroups("001", txs, inv); len(got) != 0 {
			t.Fatalf("expected no groups, got %+v", got)
		}
	})

	t.Run("detective and unknown scans do not count", func(t *testing.T) {
		det := blackmarket("001", "b")
		det.Mode = core.ModeDetective
		unk := blackmarket("001", "c")
		unk.IsUnknown = true
		txs := []core.Transaction{blackmarket("001", "a"), det, unk}
		if got := CompletedGroups("001", txs, inv); len(got) != 0 {
			t.Fatalf("expected no groups, got %+v", got)
		}
	})

	t.Run("single member and multiplier 1 groups never qualify", func(t *testing.T) {
		txs := []core.Transaction{blackmarket("001", "d"), blackmarket("001", "e"), blackmarket("001", "f")}
		if got := CompletedGroups("001", txs, inv); len(got) != 0 {
			t.Fatalf("expected no groups, got %+v", got)
		}
	})
}

func TestGroupBonus(t *testing.T) {
	txs := []core.Transaction{blackmarket("001", "a"), blackmarket("001", "b"), blackmarket("001", "c"), blackmarket("001", "z")}
	groups := CompletedGroups("001", txs, testInventory())
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	// (3-1) * 3 * 10000
	if got := GroupBonus("001", groups[0], txs); got != 60000 {
		t.Fatalf("GroupBonus() = %d, want 60000", got)
	}
}
