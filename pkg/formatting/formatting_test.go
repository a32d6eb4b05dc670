package formatting_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/scribe/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"bare bytes", "1024", 1024, false},
		{"bytes unit", "512B", 512, false},
		{"kilobytes", "1KB", 1024, false},
		{"megabytes", "10MB", 10 << 20, false},
		{"gigabytes", "2GB", 2 << 30, false},
		{"fractional", "1.5KB", 1536, false},
		{"lowercase", "10mb", 10 << 20, false},
		{"with space", "100 MB", 100 << 20, false},
		{"single letter", "64K", 64 << 10, false},
		{"iec suffix", "8MiB", 8 << 20, false},
		{"surrounding whitespace", "  50MB  ", 50 << 20, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"unknown unit", "50XX", 0, true},
		{"no number", "MB", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name      string
		n         int64
		precision int
		want      string
	}{
		{"zero", 0, 2, "0 B"},
		{"bytes", 500, 2, "500 B"},
		{"one kilobyte", 1024, 0, "1 KB"},
		{"fractional kilobytes", 1536, 1, "1.5 KB"},
		{"ten megabytes", 10 << 20, 0, "10 MB"},
		{"gigabytes", 3 << 30, 2, "3.00 GB"},
		{"negative precision clamped", 1536, -3, "2 KB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
				t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, n := range []int64{1 << 10, 10 << 20, 4 << 30} {
		got, err := formatting.ParseBytes(formatting.FormatBytes(n, 0))
		if err != nil {
			t.Fatalf("parse %d: %v", n, err)
		}
		if got != n {
			t.Errorf("round trip %d: got %d", n, got)
		}
	}
}

type summary struct {
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	Topics    []string `json:"topics"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"direct", `{"summary":"direct","sentiment":"neutral"}`, "direct"},
		{"padded", "  \n{\"summary\":\"padded\"}\n ", "padded"},
		{"fenced json", "```json\n{\"summary\":\"fenced\"}\n```", "fenced"},
		{"fenced bare", "```\n{\"summary\":\"bare\"}\n```", "bare"},
		{"fenced with prose", "Here you go:\n```json\n{\"summary\":\"wrapped\"}\n```\nThanks.", "wrapped"},
		{"embedded object", `The analysis is {"summary":"embedded","topics":["a"]} as requested.`, "embedded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[summary](tt.input)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got.Summary != tt.want {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.want)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"prose", "not json at all"},
		{"empty", ""},
		{"broken fence", "```json\n{broken\n```"},
		{"unbalanced braces", "} nope {"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formatting.Parse[summary](tt.input)
			if !errors.Is(err, formatting.ErrParseFailed) {
				t.Errorf("error = %v, want ErrParseFailed", err)
			}
		})
	}
}

func TestParseErrorExcerpt(t *testing.T) {
	long := strings.Repeat("x", 1000)
	_, err := formatting.Parse[summary](long)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 300 {
		t.Errorf("error message not truncated: %d bytes", len(err.Error()))
	}
	if !strings.HasSuffix(err.Error(), "...") {
		t.Errorf("truncated excerpt should end with ellipsis: %q", err.Error()[len(err.Error())-10:])
	}
}

func TestParseGenericShapes(t *testing.T) {
	m, err := formatting.Parse[map[string]any](`{"key":"value"}`)
	if err != nil || m["key"] != "value" {
		t.Errorf("map parse = %v, %v", m, err)
	}

	s, err := formatting.Parse[[]int](`[1,2,3]`)
	if err != nil || len(s) != 3 || s[2] != 3 {
		t.Errorf("slice parse = %v, %v", s, err)
	}
}
