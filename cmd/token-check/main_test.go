package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	data := []byte(`{
		"rat001": {"SF_RFID": "rat001", "SF_ValueRating": 1, "SF_MemoryType": "Personal", "SF_Group": "Heist (x3)"},
		"rat002": {"SF_RFID": "rat002", "SF_ValueRating": "2", "SF_MemoryType": "Business", "SF_Group": "Heist (x3)"}
	}`)

	var out bytes.Buffer
	if err := check(&out, data); err != nil {
		t.Fatalf("check: %v", err)
	}
	got := out.String()
	for _, want := range []string{"2 tokens", "Heist", "base $85,000", "bonus $170,000"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCheck_MissingFields(t *testing.T) {
	data := []byte(`{"hos001": {"SF_ValueRating": 3, "SF_MemoryType": "Technical", "SF_Group": ""}}`)

	var out bytes.Buffer
	err := check(&out, data)
	if err == nil {
		t.Fatal("expected error for missing SF_RFID")
	}
	if !strings.Contains(out.String(), "missing field: hos001.SF_RFID") {
		t.Errorf("output = %s", out.String())
	}
}

func TestCheck_Malformed(t *testing.T) {
	if err := check(&bytes.Buffer{}, []byte(`[1,2]`)); err == nil {
		t.Fatal("expected error")
	}
}
