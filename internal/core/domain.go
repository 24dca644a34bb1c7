package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ModeDetective   Mode = "detective"
	ModeBlackmarket Mode = "blackmarket"
)

const (
	CategoryPersonal  Category = "Personal"
	CategoryBusiness  Category = "Business"
	CategoryTechnical Category = "Technical"
	CategoryUnknown   Category = "UNKNOWN"
)

const (
	StatusAccepted  Status = "accepted"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
	StatusPending   Status = "pending"
)

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionEnded  SessionStatus = "ended"
)

type (
	// Mode is the scoring mode a station operates in.
	Mode string

	// Category is the resolved memory type of a token.
	Category string

	// Status is the lifecycle status of a transaction.
	Status string

	SessionStatus string

	// Transaction is a single recorded scan.
	Transaction struct {
		ID        string    `json:"id"`
		Timestamp time.Time `json:"timestamp"`
		DeviceID  string    `json:"deviceId"`
		Mode      Mode      `json:"mode"`
		TeamID    string    `json:"teamId"`
		TokenID   string    `json:"tokenId"`
		Category  Category  `json:"memoryType"`
		Group     string    `json:"group"`
		Rating    int       `json:"valueRating"`
		IsUnknown bool      `json:"isUnknown"`
		Status    Status    `json:"status"`
	}

	// AdminAdjustment is a manual score override recorded for audit.
	AdminAdjustment struct {
		Delta     int64     `json:"delta"`
		Reason    string    `json:"reason"`
		Timestamp time.Time `json:"timestamp"`
		StationID string    `json:"gmStation"`
	}

	// TeamScore is the aggregate for one team.
	TeamScore struct {
		TeamID           string            `json:"teamId"`
		BaseScore        int64             `json:"baseScore"`
		BonusPoints      int64             `json:"bonusPoints"`
		Score            int64             `json:"currentScore"`
		TokensScanned    int               `json:"tokensScanned"`
		CompletedGroups  []string          `json:"completedGroups"`
		AdminAdjustments []AdminAdjustment `json:"adminAdjustments"`
		IsFromBackend    bool              `json:"isFromBackend"`
		LastUpdate       time.Time         `json:"lastUpdate"`
	}

	// GroupInfo is a catalog group keyed elsewhere by its canonical name.
	GroupInfo struct {
		Name        string   `json:"name"`
		DisplayName string   `json:"displayName"`
		Multiplier  int      `json:"multiplier"`
		TokenIDs    []string `json:"tokens"`
	}

	Session struct {
		ID        string        `json:"id"`
		Name      string        `json:"name"`
		Status    SessionStatus `json:"status"`
		StartTime time.Time     `json:"startTime"`
		Teams     []string      `json:"teams"`
	}

	// Token is a catalog entry as published in tokens.json.
	Token struct {
		ID       string   `json:"SF_RFID"`
		Rating   int      `json:"SF_ValueRating"`
		Category Category `json:"SF_MemoryType"`
		Group    string   `json:"SF_Group"`
	}
)

var (
	ErrEmptyTeam    = errors.New("team id is required")
	ErrEmptyToken   = errors.New("token id is required")
	ErrInvalidMode  = errors.New("invalid scoring mode")
	ErrInvalidDelta = errors.New("adjustment delta must be non-zero")
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeDetective, ModeBlackmarket:
		return true
	default:
		return false
	}
}

// ParseCategory maps a catalog memory type to a Category, case-insensitively.
// Anything unrecognised becomes CategoryUnknown.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "personal":
		return CategoryPersonal
	case "business":
		return CategoryBusiness
	case "technical":
		return CategoryTechnical
	default:
		return CategoryUnknown
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.TeamID) == "" {
		return ErrEmptyTeam
	}
	if strings.TrimSpace(t.TokenID) == "" {
		return ErrEmptyToken
	}
	if !t.Mode.IsValid() {
		return ErrInvalidMode
	}
	return nil
}

// Counts reports whether the transaction contributes to base score and group ownership.
func (t Transaction) Counts() bool {
	return t.Status == StatusAccepted && !t.IsUnknown && t.Mode == ModeBlackmarket
}

// AdjustmentTotal sums all admin deltas applied to the team.
func (s TeamScore) AdjustmentTotal() int64 {
	var total int64
	for _, a := range s.AdminAdjustments {
		total += a.Delta
	}
	return total
}

// Clone returns a copy that shares no slices with the receiver.
func (s TeamScore) Clone() TeamScore {
	out := s
	out.CompletedGroups = append([]string(nil), s.CompletedGroups...)
	out.AdminAdjustments = append([]AdminAdjustment(nil), s.AdminAdjustments...)
	return out
}

// HasCompleted reports whether the canonical group name is already recorded.
func (s TeamScore) HasCompleted(group string) bool {
	for _, g := range s.CompletedGroups {
		if g == group {
			return true
		}
	}
	return false
}

// IsOpen reports whether the session still belongs to the running game.
func (s *Session) IsOpen() bool {
	return s != nil && (s.Status == SessionActive || s.Status == SessionPaused)
}
