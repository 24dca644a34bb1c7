package catalog

import (
	"context"

	"gmscanner/internal/core"
)

// Ports for the token catalog collaborator.
type (
	// TokenFinder resolves a scanned id against the catalog.
	TokenFinder interface {
		FindToken(id string) (Match, bool)
	}

	// GroupReader exposes group membership keyed by canonical group name.
	GroupReader interface {
		GroupInventory() map[string]core.GroupInfo
	}

	// Source loads raw tokens from wherever the catalog is published.
	Source interface {
		Load(ctx context.Context) ([]core.Token, error)
	}
)

// Match is a successful lookup: the catalog token and the id it is filed under.
type Match struct {
	Token     core.Token
	MatchedID string
}
