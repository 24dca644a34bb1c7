package catalog

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gmscanner/internal/core"
)

const tokensJSON = `{
  "rat001": {"SF_RFID": "rat001", "SF_ValueRating": 3, "SF_MemoryType": "Business", "SF_Group": "Marcus Sucks (x2)"},
  "rat002": {"SF_RFID": "rat002", "SF_ValueRating": "2", "SF_MemoryType": "personal", "SF_Group": "Marcus Sucks (x2)"},
  "hos001": {"SF_ValueRating": 1, "SF_MemoryType": "Technical", "SF_Group": ""},
  "bad001": {"SF_RFID": "bad001", "SF_ValueRating": "high", "SF_MemoryType": "?", "SF_Group": ""}
}`

func TestParseTokens(t *testing.T) {
	tokens, err := ParseTokens([]byte(tokensJSON))
	if err != nil {
		t.Fatalf("ParseTokens: %v", err)
	}
	want := []core.Token{
		{ID: "bad001", Rating: 0, Category: core.CategoryUnknown},
		{ID: "hos001", Rating: 1, Category: core.CategoryTechnical},
		{ID: "rat001", Rating: 3, Category: core.CategoryBusiness, Group: "Marcus Sucks (x2)"},
		{ID: "rat002", Rating: 2, Category: core.CategoryPersonal, Group: "Marcus Sucks (x2)"},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("tokens =\n%+v\nwant\n%+v", tokens, want)
	}
}

func TestParseTokens_InvalidJSON(t *testing.T) {
	if _, err := ParseTokens([]byte(`[1,2`)); err == nil {
		t.Error("expected error")
	}
}

func TestVerify(t *testing.T) {
	missing, err := Verify([]byte(tokensJSON))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !reflect.DeepEqual(missing, []string{"hos001.SF_RFID"}) {
		t.Errorf("missing = %v", missing)
	}

	if _, err := Verify([]byte(`{}`)); err == nil {
		t.Error("empty catalog should fail verification")
	}
}

func TestFileSource_FallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "data", "tokens.json")
	backup := filepath.Join(dir, "tokens.json.backup")
	if err := os.WriteFile(backup, []byte(tokensJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(primary, backup)
	path, err := src.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != backup {
		t.Errorf("Resolve = %q, want backup", path)
	}

	tokens, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tokens) != 4 {
		t.Errorf("len = %d", len(tokens))
	}
}

func TestFileSource_NoFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestNewFileSource_Defaults(t *testing.T) {
	if got := NewFileSource().Paths; !reflect.DeepEqual(got, DefaultPaths) {
		t.Errorf("Paths = %v", got)
	}
}
