package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/stealth-engine/internal/services"
	"github.com/jwebster45206/stealth-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))

	tests := []struct {
		name            string
		setupComponents func(t *testing.T) map[string]services.HealthChecker
		expectedStatus  int
		expectedHealth  string
		expectedRedis   string
		expectedStorage string
	}{
		{
			name: "all healthy",
			setupComponents: func(t *testing.T) map[string]services.HealthChecker {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				return map[string]services.HealthChecker{
					"redis":   services.RedisPinger{Client: client},
					"storage": storage.NewMockStorage(),
				}
			},
			expectedStatus:  http.StatusOK,
			expectedHealth:  "healthy",
			expectedRedis:   "healthy",
			expectedStorage: "healthy",
		},
		{
			name: "redis down",
			setupComponents: func(t *testing.T) map[string]services.HealthChecker {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				mr.Close()
				return map[string]services.HealthChecker{
					"redis":   services.RedisPinger{Client: client},
					"storage": storage.NewMockStorage(),
				}
			},
			expectedStatus:  http.StatusServiceUnavailable,
			expectedHealth:  "degraded",
			expectedRedis:   "unhealthy",
			expectedStorage: "healthy",
		},
		{
			name: "storage down",
			setupComponents: func(t *testing.T) map[string]services.HealthChecker {
				mock := storage.NewMockStorage()
				mock.SetPingError(errors.New("connection failed"))
				return map[string]services.HealthChecker{
					"redis":   pingFunc(func(context.Context) error { return nil }),
					"storage": mock,
				}
			},
			expectedStatus:  http.StatusServiceUnavailable,
			expectedHealth:  "degraded",
			expectedRedis:   "healthy",
			expectedStorage: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.setupComponents(t), logger)

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

			if response.Service != "stealth-engine" {
				t.Errorf("Expected service 'stealth-engine', got '%s'", response.Service)
			}

			if got := response.Components["redis"]; got != tt.expectedRedis {
				t.Errorf("Expected redis status '%s', got '%s'", tt.expectedRedis, got)
			}

			if got := response.Components["storage"]; got != tt.expectedStorage {
				t.Errorf("Expected storage status '%s', got '%s'", tt.expectedStorage, got)
			}

			if timeDiff := time.Since(response.Timestamp); timeDiff > time.Second {
				t.Errorf("Health check timestamp seems old: %v", timeDiff)
			}
		})
	}
}

func TestHealthHandler_NoComponents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := NewHealthHandler(nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var response HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if rr.Code != http.StatusOK || response.Status != "healthy" {
		t.Errorf("Expected healthy 200, got %d %q", rr.Code, response.Status)
	}

	if response.Components == nil {
		t.Error("Components field is nil")
	}
}
