package scoring

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var groupLabelPattern = regexp.MustCompile(`(?i)^(.+?)\s*\(x(\d+)\)$`)

// GroupLabel is a parsed "<name> (xN)" label.
type GroupLabel struct {
	Name       string
	Multiplier int
}

// ParseGroup splits a catalog group label into its name and multiplier.
// Labels without a multiplier suffix get multiplier 1; a parsed multiplier
// below 1 is clamped to 1.
func ParseGroup(label string) GroupLabel {
	trimmed := strings.TrimSpace(label)
	m := groupLabelPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return GroupLabel{Name: trimmed, Multiplier: 1}
	}

	name := strings.TrimSpace(m[1])
	mult, err := strconv.Atoi(m[2])
	if err != nil || mult < 1 {
		slog.Warn("Group multiplier out of range, clamping to 1",
			"label", label,
			"multiplier", m[2])
		mult = 1
	}
	return GroupLabel{Name: name, Multiplier: mult}
}

var apostrophes = strings.NewReplacer(
	"’", "'", // right single quotation mark
	"‘", "'", // left single quotation mark
	"ʼ", "'", // modifier letter apostrophe
	"`", "'", // grave accent
	"´", "'", // acute accent
)

// NormalizeGroupName returns the canonical form used to compare group names.
func NormalizeGroupName(name string) string {
	s := strings.ToLower(apostrophes.Replace(name))
	return strings.Join(strings.Fields(s), " ")
}
