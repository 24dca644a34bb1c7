// Package catalog resolves scanned token ids and derives group membership
// from the published token list.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gmscanner/internal/core"
	"gmscanner/internal/scoring"
)

// Catalog is an immutable, indexed token list.
type Catalog struct {
	tokens   map[string]core.Token
	lower    map[string]string
	stripped map[string]string
	groups   map[string]core.GroupInfo
}

var (
	_ TokenFinder = (*Catalog)(nil)
	_ GroupReader = (*Catalog)(nil)
)

// New indexes the tokens and builds the group inventory. Tokens without an
// id are skipped; later duplicates of an id are ignored.
func New(tokens []core.Token) *Catalog {
	c := &Catalog{
		tokens:   make(map[string]core.Token, len(tokens)),
		lower:    make(map[string]string, len(tokens)),
		stripped: make(map[string]string, len(tokens)),
		groups:   make(map[string]core.GroupInfo),
	}
	for _, t := range tokens {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			continue
		}
		if _, ok := c.tokens[id]; ok {
			slog.Warn("Duplicate token id in catalog, keeping first", "token_id", id)
			continue
		}
		t.ID = id
		t.Category = core.ParseCategory(string(t.Category))
		c.tokens[id] = t
		if _, ok := c.lower[strings.ToLower(id)]; !ok {
			c.lower[strings.ToLower(id)] = id
		}
		if _, ok := c.stripped[stripID(id)]; !ok {
			c.stripped[stripID(id)] = id
		}
		c.addToGroup(t)
	}
	for key, g := range c.groups {
		sort.Strings(g.TokenIDs)
		c.groups[key] = g
	}
	return c
}

// Load builds a catalog from a source.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	tokens, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	return New(tokens), nil
}

func (c *Catalog) addToGroup(t core.Token) {
	if strings.TrimSpace(t.Group) == "" {
		return
	}
	label := scoring.ParseGroup(t.Group)
	key := scoring.NormalizeGroupName(label.Name)
	if key == "" {
		return
	}
	g, ok := c.groups[key]
	if !ok {
		g = core.GroupInfo{Name: key, DisplayName: label.Name, Multiplier: label.Multiplier}
	} else if g.Multiplier != label.Multiplier {
		slog.Warn("Conflicting group multipliers in catalog, keeping first",
			"group", key,
			"kept", g.Multiplier,
			"ignored", label.Multiplier,
			"token_id", t.ID)
	}
	g.TokenIDs = append(g.TokenIDs, t.ID)
	c.groups[key] = g
}

// FindToken tries the id as given, then case-insensitively, then with
// separators removed, which covers the ways NFC readers render UIDs.
func (c *Catalog) FindToken(id string) (Match, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Match{}, false
	}
	if t, ok := c.tokens[id]; ok {
		return Match{Token: t, MatchedID: id}, true
	}
	if key, ok := c.lower[strings.ToLower(id)]; ok {
		return Match{Token: c.tokens[key], MatchedID: key}, true
	}
	if key, ok := c.stripped[stripID(id)]; ok {
		return Match{Token: c.tokens[key], MatchedID: key}, true
	}
	return Match{}, false
}

// GroupInventory returns a copy of the group membership map.
func (c *Catalog) GroupInventory() map[string]core.GroupInfo {
	out := make(map[string]core.GroupInfo, len(c.groups))
	for k, g := range c.groups {
		g.TokenIDs = append([]string(nil), g.TokenIDs...)
		out[k] = g
	}
	return out
}

// Len returns the number of indexed tokens.
func (c *Catalog) Len() int {
	return len(c.tokens)
}

// NormalizeTokenID is the form used for duplicate detection of ids that are
// not in the catalog.
func NormalizeTokenID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func stripID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(id))
}
