package response_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/credit-engine/pkg/response"
)

func TestError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusConflict, response.ErrorBody{Code: "ILLEGAL_TRANSITION", Message: "nope", EntityID: "abc"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "ILLEGAL_TRANSITION", body.Error.Code)
	assert.Equal(t, "abc", body.Error.EntityID)
}

func TestCreated_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	response.Created(w, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"1"}`, extractData(t, w))
}

func TestLoggingMiddleware(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetOutput(io.Discard)
	response.SetLogger(log)
	t.Cleanup(func() { response.SetLogger(logrus.StandardLogger()) })

	tests := []struct {
		name  string
		code  int
		level logrus.Level
	}{
		{"client error logs info", http.StatusNotFound, logrus.InfoLevel},
		{"server error logs error", http.StatusInternalServerError, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			h := response.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil))

			require.Len(t, hook.AllEntries(), 1)
			entry := hook.LastEntry()
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.code, entry.Data["status"])
			assert.Equal(t, "/api/v1/loans", entry.Data["path"])
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := response.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/loans", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Actor")
}

func extractData(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	return string(body.Data)
}
