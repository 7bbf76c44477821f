package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeHealth reports a fixed status code.
type fakeHealth struct {
	code int
}

func (f *fakeHealth) HealthStatus() int { return f.code }

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantStatus string
	}{
		{name: "subscribed", code: http.StatusOK, wantStatus: "up"},
		{name: "unsubscribed", code: http.StatusServiceUnavailable, wantStatus: "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(":0", &fakeHealth{code: tt.code}, zap.NewNop())

			rec := httptest.NewRecorder()
			s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}
