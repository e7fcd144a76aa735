package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Weekend trip", "Weekend trip"},
		{"surrounding whitespace", "  Weekend trip  ", "Weekend trip"},
		{"interior runs collapsed", "Weekend \t  trip", "Weekend trip"},
		{"newlines become spaces", "Weekend\ntrip", "Weekend trip"},
		{"only whitespace", " \t\n ", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeComment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"keeps line breaks", "first line\nsecond line", "first line\nsecond line"},
		{"windows line endings", "first\r\nsecond", "first\nsecond"},
		{"strips control characters", "pick up\x00 keys\x07", "pick up keys"},
		{"trims trailing space per line", "first  \nsecond\t", "first\nsecond"},
		{"trims surrounding blank lines", "\n\ncomment\n", "comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeComment(tt.input); got != tt.want {
				t.Errorf("NormalizeComment(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ab 123 cd", "AB123CD"},
		{"  AB123CD  ", "AB123CD"},
		{"ab-123", "AB-123"},
	}

	for _, tt := range tests {
		if got := NormalizePlate(tt.input); got != tt.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail = %q, want %q", got, "alice@example.com")
	}
}
