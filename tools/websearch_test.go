package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/becomeliminal/analytics-core/core"
)

// fakeBackend returns a canned result or error and records the queries it saw.
type fakeBackend struct {
	result  string
	err     error
	queries []string
}

func (f *fakeBackend) Search(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func TestWebSearchTool_Execute(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		backend     *fakeBackend
		wantSuccess bool
		wantCalls   int
	}{
		{
			name:        "valid query reaches the backend",
			input:       `{"query": "cheapest oat milk near Oakland, CA"}`,
			backend:     &fakeBackend{result: "result text"},
			wantSuccess: true,
			wantCalls:   1,
		},
		{
			name:        "missing query is rejected without a backend call",
			input:       `{}`,
			backend:     &fakeBackend{result: "unreachable"},
			wantSuccess: false,
			wantCalls:   0,
		},
		{
			name:        "malformed input is rejected without a backend call",
			input:       `not json`,
			backend:     &fakeBackend{result: "unreachable"},
			wantSuccess: false,
			wantCalls:   0,
		},
		{
			name:        "backend failure surfaces as a tool error, still counted",
			input:       `{"query": "anything"}`,
			backend:     &fakeBackend{err: errors.New("backend down")},
			wantSuccess: false,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			tool := NewWebSearchTool(tt.backend, &calls)

			result, err := tool.Execute(context.Background(), &core.ToolParams{
				UserID: "u1",
				Input:  json.RawMessage(tt.input),
			})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v (error: %q)", result.Success, tt.wantSuccess, result.Error)
			}
			if calls != tt.wantCalls {
				t.Errorf("call counter = %d, want %d", calls, tt.wantCalls)
			}
			if len(tt.backend.queries) != tt.wantCalls {
				t.Errorf("backend saw %d queries, want %d", len(tt.backend.queries), tt.wantCalls)
			}
		})
	}
}

func TestWebSearchTool_NilCounter(t *testing.T) {
	tool := NewWebSearchTool(&fakeBackend{result: "ok"}, nil)
	result, err := tool.Execute(context.Background(), &core.ToolParams{
		Input: json.RawMessage(`{"query": "q"}`),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false, want true with a nil counter")
	}
}
