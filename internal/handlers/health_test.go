package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jwebster45206/quest-engine/pkg/quest/questtest"
	"github.com/jwebster45206/quest-engine/pkg/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))

	tests := []struct {
		name             string
		setupStorage     func() storage.Storage
		expectedStatus   int
		expectedHealth   string
		expectedStorage  string
		expectedCatalogs string
	}{
		{
			name: "all healthy",
			setupStorage: func() storage.Storage {
				return storage.NewMockStorage(questtest.Catalog())
			},
			expectedStatus:   http.StatusOK,
			expectedHealth:   "healthy",
			expectedStorage:  "healthy",
			expectedCatalogs: "healthy",
		},
		{
			name: "unhealthy storage",
			setupStorage: func() storage.Storage {
				mock := storage.NewMockStorage(questtest.Catalog())
				mock.SetPingError(errors.New("connection failed"))
				return mock
			},
			expectedStatus:   http.StatusServiceUnavailable,
			expectedHealth:   "degraded",
			expectedStorage:  "unhealthy",
			expectedCatalogs: "healthy",
		},
		{
			name: "missing catalog",
			setupStorage: func() storage.Storage {
				return storage.NewMockStorage(nil)
			},
			expectedStatus:   http.StatusServiceUnavailable,
			expectedHealth:   "degraded",
			expectedStorage:  "healthy",
			expectedCatalogs: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.setupStorage(), logger)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
			}

			var response HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedHealth, response.Status)
			}
			if response.Service != "quest-engine" {
				t.Errorf("Expected service 'quest-engine', got '%s'", response.Service)
			}
			if got := response.Components["storage"]; got != tt.expectedStorage {
				t.Errorf("Expected storage status '%s', got '%v'", tt.expectedStorage, got)
			}

			switch catalog := response.Components["catalog"].(type) {
			case map[string]any:
				if catalog["status"] != tt.expectedCatalogs {
					t.Errorf("Expected catalog status '%s', got '%v'", tt.expectedCatalogs, catalog["status"])
				}
				if catalog["quests"] != float64(5) {
					t.Errorf("Expected 5 quests, got %v", catalog["quests"])
				}
			default:
				if catalog != tt.expectedCatalogs {
					t.Errorf("Expected catalog status '%s', got '%v'", tt.expectedCatalogs, catalog)
				}
			}

			if time.Since(response.Timestamp) > time.Second {
				t.Errorf("Health check timestamp seems old: %v", response.Timestamp)
			}
		})
	}
}
