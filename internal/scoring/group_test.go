package scoring

import "testing"

func TestParseGroup(t *testing.T) {
	tests := []struct {
		label string
		want  GroupLabel
	}{
		{"Server Logs (x5)", GroupLabel{Name: "Server Logs", Multiplier: 5}},
		{"No Multiplier Group", GroupLabel{Name: "No Multiplier Group", Multiplier: 1}},
		{"Zero Multiplier (x0)", GroupLabel{Name: "Zero Multiplier", Multiplier: 1}},
		{"  Marcus' Memories (X3)  ", GroupLabel{Name: "Marcus' Memories", Multiplier: 3}},
		{"Tight(x2)", GroupLabel{Name: "Tight", Multiplier: 2}},
		{"", GroupLabel{Name: "", Multiplier: 1}},
		{"Negative (x-2)", GroupLabel{Name: "Negative (x-2)", Multiplier: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := ParseGroup(tt.label); got != tt.want {
				t.Errorf("ParseGroup(%q) = %+v, want %+v", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalizeGroupName(t *testing.T) {
	want := NormalizeGroupName("Marcus' Memories")
	if want != "marcus' memories" {
		t.Fatalf("NormalizeGroupName() = %q", want)
	}
	for _, in := range []string{
		"Marcus’ Memories",
		"  marcus'   memories ",
		"MARCUS‘\tMEMORIES",
	} {
		if got := NormalizeGroupName(in); got != want {
			t.Errorf("NormalizeGroupName(%q) = %q, want %q", in, got, want)
		}
	}
}
