package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/credit-engine/internal/handler"
	"github.com/segyhp/credit-engine/internal/mocks"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Ready(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	slow := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	tests := []struct {
		name           string
		store          handler.Pinger
		cache          handler.Pinger
		expectedStatus int
		expectedBody   string
	}{
		{name: "all dependencies up", store: ok, cache: ok, expectedStatus: http.StatusOK},
		{name: "database down", store: down, cache: ok, expectedStatus: http.StatusServiceUnavailable, expectedBody: "database"},
		{name: "redis times out", store: ok, cache: slow, expectedStatus: http.StatusServiceUnavailable, expectedBody: "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.store, tt.cache, 20*time.Millisecond)

			w := httptest.NewRecorder()
			h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestHealthHandler_ReadyWithMockCache(t *testing.T) {
	snapshots := &mocks.MockSnapshotCache{}
	snapshots.On("Ping", mock.Anything).Return(nil).Once()

	h := handler.NewHealthHandler(pingFunc(func(context.Context) error { return nil }), snapshots, time.Second)

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	snapshots.AssertExpectations(t)
}

func TestHealthHandler_Health(t *testing.T) {
	h := handler.NewHealthHandler(nil, nil, 0)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
