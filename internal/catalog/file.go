package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"gmscanner/internal/core"
)

// DefaultPaths lists where a station looks for tokens.json, in order.
var DefaultPaths = []string{"data/tokens.json", "tokens.json.backup"}

// RequiredFields are the catalog fields a GM station relies on.
var RequiredFields = []string{"SF_RFID", "SF_ValueRating", "SF_MemoryType", "SF_Group"}

// FileSource reads the first existing tokens.json from Paths.
type FileSource struct {
	Paths []string
}

var _ Source = FileSource{}

func NewFileSource(paths ...string) FileSource {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return FileSource{Paths: paths}
}

func (s FileSource) Load(ctx context.Context) ([]core.Token, error) {
	path, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	tokens, err := ParseTokens(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	slog.InfoContext(ctx, "Loaded token catalog", "path", path, "tokens", len(tokens))
	return tokens, nil
}

// Resolve returns the first configured path that exists.
func (s FileSource) Resolve() (string, error) {
	for _, p := range s.Paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no tokens file found in %v", s.Paths)
}

type rawToken struct {
	ID       string          `json:"SF_RFID"`
	Rating   json.RawMessage `json:"SF_ValueRating"`
	Category string          `json:"SF_MemoryType"`
	Group    string          `json:"SF_Group"`
}

// ParseTokens decodes a tokens.json document: an object keyed by token id.
// Entries without SF_RFID fall back to their key. Output is sorted by id.
func ParseTokens(data []byte) ([]core.Token, error) {
	var doc map[string]rawToken
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make([]core.Token, 0, len(doc))
	for key, rt := range doc {
		id := strings.TrimSpace(rt.ID)
		if id == "" {
			id = key
		}
		out = append(out, core.Token{
			ID:       id,
			Rating:   parseRating(rt.Rating),
			Category: core.ParseCategory(rt.Category),
			Group:    strings.TrimSpace(rt.Group),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// parseRating accepts a JSON number or a numeric string; anything else is 0.
func parseRating(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

// Verify reports "<token>.<field>" for every required field missing from a
// tokens.json document. The result is sorted.
func Verify(data []byte) ([]string, error) {
	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errors.New("catalog is empty")
	}
	var missing []string
	for id, fields := range doc {
		for _, f := range RequiredFields {
			if _, ok := fields[f]; !ok {
				missing = append(missing, id+"."+f)
			}
		}
	}
	sort.Strings(missing)
	return missing, nil
}
