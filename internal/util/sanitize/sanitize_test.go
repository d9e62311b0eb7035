package sanitize

import "testing"

func TestField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"BOM prefix", "\uFEFFbackend", "backend"},
		{"zero-width space", "upload\u200B_endpoint", "upload_endpoint"},
		{"soft hyphen", "page\u00AD_size", "page_size"},
		{"surrounding whitespace", "  https://x.example.com \t", "https://x.example.com"},
		{"inner spaces kept", "a  b", "a  b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Field(tt.input); got != tt.expected {
				t.Errorf("Field(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Unidade   Norte", "Unidade Norte"},
		{"\u200BSul\t\tLeste ", "Sul Leste"},
		{"Centro", "Centro"},
	}
	for _, tt := range tests {
		if got := Label(tt.input); got != tt.expected {
			t.Errorf("Label(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
