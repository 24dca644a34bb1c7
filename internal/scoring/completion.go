package scoring

import (
	"sort"

	"gmscanner/internal/core"
)

// ClaimedTokens returns the token ids a team owns for bonus purposes:
// accepted, non-unknown, blackmarket transactions only.
func ClaimedTokens(teamID string, txs []core.Transaction) map[string]struct{} {
	claimed := make(map[string]struct{})
	for _, tx := range txs {
		if tx.TeamID != teamID || !tx.Counts() {
			continue
		}
		claimed[tx.TokenID] = struct{}{}
	}
	return claimed
}

// CompletedGroups lists the multiplier groups fully owned by the team.
// Groups with multiplier <= 1 or a single member never qualify.
func CompletedGroups(teamID string, txs []core.Transaction, inventory map[string]core.GroupInfo) []core.CompletedGroup {
	claimed := ClaimedTokens(teamID, txs)
	if len(claimed) == 0 {
		return nil
	}

	var out []core.CompletedGroup
	for key, g := range inventory {
		if g.Multiplier <= 1 || len(g.TokenIDs) <= 1 {
			continue
		}
		complete := true
		for _, id := range g.TokenIDs {
			if _, ok := claimed[id]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		name := g.Name
		if name == "" {
			name = key
		}
		out = append(out, core.CompletedGroup{
			Name:        name,
			DisplayName: g.DisplayName,
			Multiplier:  g.Multiplier,
			TokenIDs:    append([]string(nil), g.TokenIDs...),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GroupBonus is (multiplier - 1) times the summed value of the team's
// counting transactions whose token belongs to the group.
func GroupBonus(teamID string, group core.CompletedGroup, txs []core.Transaction) int64 {
	members := make(map[string]struct{}, len(group.TokenIDs))
	for _, id := range group.TokenIDs {
		members[id] = struct{}{}
	}
	var sum int64
	for _, tx := range txs {
		if tx.TeamID != teamID || !tx.Counts() {
			continue
		}
		if _, ok := members[tx.TokenID]; ok {
			sum += Value(tx)
		}
	}
	return int64(group.Multiplier-1) * sum
}
