package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gmscanner/internal/cache"
	"gmscanner/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsConfig locates the token sheet and the service account used to read it.
type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	CacheTTL           time.Duration
}

// valuesGetter is the single Sheets call the source needs.
type valuesGetter func(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)

// SheetsSource reads tokens from a spreadsheet whose header row names the
// SF_* fields. Results are cached so repeated loads do not hit the API.
type SheetsSource struct {
	spreadsheetID string
	sheetName     string
	get           valuesGetter
	cache         *cache.LRUCache[[]core.Token]
}

var _ Source = (*SheetsSource)(nil)

func NewSheetsSource(ctx context.Context, cfg SheetsConfig) (*SheetsSource, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	get := func(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
		resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	}
	return newSheetsSource(cfg, get), nil
}

func newSheetsSource(cfg SheetsConfig, get valuesGetter) *SheetsSource {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = "Tokens"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SheetsSource{
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     name,
		get:           get,
		cache:         cache.NewLRUCache[[]core.Token](4, ttl),
	}
}

// newSheetsService initializes a read-only Sheets service from service account credentials.
func newSheetsService(ctx context.Context, cfg SheetsConfig) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		raw, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = raw
	default:
		return nil, errors.New("missing service account credentials")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (s *SheetsSource) Load(ctx context.Context) ([]core.Token, error) {
	rng := fmt.Sprintf("%s!A:Z", s.sheetName)
	if cached, ok := s.cache.Get(rng); ok {
		return append([]core.Token(nil), cached...), nil
	}

	values, err := s.get(ctx, s.spreadsheetID, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	tokens, err := parseTokenRows(values)
	if err != nil {
		return nil, err
	}
	s.cache.Set(rng, tokens)

	slog.InfoContext(ctx, "Loaded token catalog from sheet",
		"sheet", s.sheetName,
		"tokens", len(tokens))
	return append([]core.Token(nil), tokens...), nil
}

// CleanExpired drops stale cached reads.
func (s *SheetsSource) CleanExpired() int {
	return s.cache.CleanExpired()
}

// parseTokenRows converts a values matrix into tokens. The first row must be
// a header containing at least SF_RFID; the other SF_* columns are optional.
func parseTokenRows(values [][]interface{}) ([]core.Token, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	colID := indexOf(headers, "SF_RFID")
	if colID == -1 {
		return nil, fmt.Errorf("unexpected token sheet header: missing SF_RFID; got headers=%v", headers)
	}
	colRating := indexOf(headers, "SF_ValueRating")
	colType := indexOf(headers, "SF_MemoryType")
	colGroup := indexOf(headers, "SF_Group")

	out := make([]core.Token, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := safeGet(row, colID)
		if id == "" {
			continue
		}
		rating, _ := strconv.Atoi(safeGet(row, colRating))
		out = append(out, core.Token{
			ID:       id,
			Rating:   rating,
			Category: core.ParseCategory(safeGet(row, colType)),
			Group:    safeGet(row, colGroup),
		})
	}
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
