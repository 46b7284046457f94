package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeCounter struct {
	count int
	err   error
}

func (f fakeCounter) Count(context.Context) (int, error) {
	return f.count, f.err
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		counter        fakeCounter
		expectedStatus int
		expectedState  string
		expectedCount  int
	}{
		{
			name:           "healthy",
			method:         http.MethodGet,
			counter:        fakeCounter{count: 42},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
			expectedCount:  42,
		},
		{
			name:           "empty index is still healthy",
			method:         http.MethodGet,
			counter:        fakeCounter{},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
		},
		{
			name:           "index unavailable",
			method:         http.MethodGet,
			counter:        fakeCounter{err: errors.New("connection refused")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "unhealthy",
		},
		{
			name:           "method not allowed",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.counter, "local")
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedState == "" {
				return
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.expectedState {
				t.Errorf("expected status %q, got %q", tt.expectedState, resp.Status)
			}
			if resp.IndexEntries != tt.expectedCount {
				t.Errorf("expected %d index entries, got %d", tt.expectedCount, resp.IndexEntries)
			}
			if resp.Backend != "local" {
				t.Errorf("expected backend local, got %q", resp.Backend)
			}
			if resp.Status == "unhealthy" && len(resp.Issues) == 0 {
				t.Error("expected issues for unhealthy status")
			}
		})
	}
}
