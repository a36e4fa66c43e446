package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only whitespace", "   \t\n  ", ""},
		{"leading and trailing", "  Meeting Room A  ", "Meeting Room A"},
		{"internal runs collapsed", "Meeting   Room\t\tA", "Meeting Room A"},
		{"already clean", "Meeting Room A", "Meeting Room A"},
		{"unicode preserved", "  Sala de Reunião  ", "Sala de Reunião"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimAndNormalizeIdempotent(t *testing.T) {
	input := "  Weekly   sync \n meeting "
	once := TrimAndNormalize(input)
	twice := TrimAndNormalize(once)

	if once != twice {
		t.Errorf("TrimAndNormalize not idempotent: %q != %q", once, twice)
	}
}

func TestNormalizePurpose(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"control chars stripped", "sprint\x00planning\x07", "sprint planning"},
		{"newlines flattened", "line one\nline two", "line one line two"},
		{"plain text", "Team retro", "Team retro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePurpose(tt.input); got != tt.want {
				t.Errorf("NormalizePurpose(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
