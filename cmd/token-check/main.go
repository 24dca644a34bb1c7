// Command token-check validates a tokens.json catalog before an event and
// prints the group inventory with the value each group can be worth.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"gmscanner/internal/catalog"
	"gmscanner/internal/core"
	"gmscanner/internal/scoring"
)

func main() {
	path := flag.String("file", catalog.DefaultPaths[0], "path to tokens.json")
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}
	if err := check(os.Stdout, data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func check(out io.Writer, data []byte) error {
	missing, err := catalog.Verify(data)
	if err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	tokens, err := catalog.ParseTokens(data)
	if err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	cat := catalog.New(tokens)

	fmt.Fprintf(out, "%d tokens\n", cat.Len())
	for _, m := range missing {
		fmt.Fprintf(out, "missing field: %s\n", m)
	}

	byID := make(map[string]core.Token, len(tokens))
	for _, t := range tokens {
		byID[t.ID] = t
	}

	inv := cat.GroupInventory()
	keys := make([]string, 0, len(inv))
	for k := range inv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		g := inv[k]
		var base int64
		for _, id := range g.TokenIDs {
			t := byID[id]
			base += scoring.Value(core.Transaction{Rating: t.Rating, Category: t.Category})
		}
		bonus := int64(0)
		if g.Multiplier > 1 && len(g.TokenIDs) > 1 {
			bonus = int64(g.Multiplier-1) * base
		}
		fmt.Fprintf(out, "%-32s x%d  %2d tokens  base %s  bonus %s\n",
			g.DisplayName, g.Multiplier, len(g.TokenIDs),
			core.FormatDollars(base), core.FormatDollars(bonus))
	}

	if len(missing) > 0 {
		return fmt.Errorf("%d required fields missing", len(missing))
	}
	return nil
}
