package status_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/JaimeStill/scribe/internal/status"
)

func ptr(s status.State) *status.State { return &s }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		prev    *status.State
		next    status.State
		wantErr bool
	}{
		{"open with pending", nil, status.Pending, false},
		{"open with processing", nil, status.Processing, true},
		{"open with failed", nil, status.Failed, true},
		{"pending to processing", ptr(status.Pending), status.Processing, false},
		{"pending to analyzing skips", ptr(status.Pending), status.Analyzing, true},
		{"pending to completed skips", ptr(status.Pending), status.Completed, true},
		{"pending to failed", ptr(status.Pending), status.Failed, false},
		{"processing to analyzing", ptr(status.Processing), status.Analyzing, false},
		{"processing to failed", ptr(status.Processing), status.Failed, false},
		{"processing repeated", ptr(status.Processing), status.Processing, true},
		{"processing back to pending", ptr(status.Processing), status.Pending, true},
		{"analyzing to completed", ptr(status.Analyzing), status.Completed, false},
		{"analyzing to failed", ptr(status.Analyzing), status.Failed, false},
		{"analyzing to processing", ptr(status.Analyzing), status.Processing, true},
		{"completed is terminal", ptr(status.Completed), status.Failed, true},
		{"failed is terminal", ptr(status.Failed), status.Processing, true},
		{"failed repeated", ptr(status.Failed), status.Failed, true},
		{"unknown state", ptr(status.Pending), status.State("archived"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := status.Validate(tt.prev, tt.next)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, status.ErrConflict) {
				t.Errorf("error %v should wrap ErrConflict", err)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	for _, s := range status.States {
		got, err := status.ParseState(string(s))
		if err != nil || got != s {
			t.Errorf("ParseState(%q) = %q, %v", s, got, err)
		}
	}

	if _, err := status.ParseState("PENDING"); err == nil {
		t.Error("state names are case-sensitive")
	}
	if _, err := status.ParseState(""); err == nil {
		t.Error("empty state should be rejected")
	}
}

func TestTerminal(t *testing.T) {
	tests := map[status.State]bool{
		status.Pending:    false,
		status.Processing: false,
		status.Analyzing:  false,
		status.Completed:  true,
		status.Failed:     true,
	}
	for s, want := range tests {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", status.ErrNotFound, http.StatusNotFound},
		{"conflict", status.ErrConflict, http.StatusConflict},
		{"wrapped conflict", status.Validate(nil, status.Failed), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
