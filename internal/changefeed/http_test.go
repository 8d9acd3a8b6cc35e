package changefeed

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shop-notifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhook(t *testing.T, checks map[string]ReadyCheck) (*recordingListener, http.Handler) {
	t.Helper()
	l := &recordingListener{}
	src := NewWebhookSource(WebhookOptions{
		Collection:   "pending_shops",
		AcceptEvents: true,
		ReadyChecks:  checks,
	}, logger.NewTestLogger(t))
	return l, src.Router(l)
}

func postEvent(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_Events(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
		delivered  bool
	}{
		{
			name:       "approval",
			path:       "/events/pending_shops/s1",
			body:       `{"before":{"status":"pending"},"after":{"status":"approved","email":"a@x.io","shopName":"Alpha"}}`,
			wantStatus: http.StatusAccepted,
			delivered:  true,
		},
		{
			name:       "body shop id matching path",
			path:       "/events/pending_shops/s1",
			body:       `{"shopId":"s1","before":null,"after":{"status":"pending"}}`,
			wantStatus: http.StatusAccepted,
			delivered:  true,
		},
		{
			name:       "body shop id contradicting path",
			path:       "/events/pending_shops/s1",
			body:       `{"shopId":"s2","after":{"status":"approved"}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EVENT_SCHEMA_INVALID",
		},
		{
			name:       "other collection",
			path:       "/events/shops/s1",
			body:       `{"after":{"status":"approved"}}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "UNKNOWN_COLLECTION",
		},
		{
			name:       "invalid json",
			path:       "/events/pending_shops/s1",
			body:       `{"after":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EVENT_DECODE_FAILED",
		},
		{
			name:       "array body",
			path:       "/events/pending_shops/s1",
			body:       `[]`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EVENT_DECODE_FAILED",
		},
		{
			name:       "schema violation",
			path:       "/events/pending_shops/s1",
			body:       `{"after":{"status":true}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EVENT_SCHEMA_INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, h := newTestWebhook(t, nil)

			rec := postEvent(h, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, resp["code"])
			} else {
				assert.Equal(t, "accepted", resp["status"])
			}

			if tt.delivered {
				events := l.Events()
				require.Len(t, events, 1)
				assert.Equal(t, "s1", events[0].ShopID)
			} else {
				assert.Empty(t, l.Events())
			}
		})
	}
}

func TestWebhook_EventsDisabled(t *testing.T) {
	l := &recordingListener{}
	h := NewWebhookSource(WebhookOptions{Collection: "pending_shops"}, nil).Router(l)

	rec := postEvent(h, "/events/pending_shops/s1", `{"after":{"status":"approved"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, l.Events())
}

func TestWebhook_HealthAndReadiness(t *testing.T) {
	healthy := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return stderrors.New("redis ping failed") }

	t.Run("health", func(t *testing.T) {
		_, h := newTestWebhook(t, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"healthy"`)
	})

	t.Run("ready", func(t *testing.T) {
		_, h := newTestWebhook(t, map[string]ReadyCheck{"redis": healthy})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ready"`)
	})

	t.Run("not ready", func(t *testing.T) {
		_, h := newTestWebhook(t, map[string]ReadyCheck{"redis": down, "mail": healthy})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "redis ping failed", resp.Checks["redis"])
		assert.Equal(t, "ok", resp.Checks["mail"])
	})

	t.Run("metrics", func(t *testing.T) {
		_, h := newTestWebhook(t, nil)
		postEvent(h, "/events/pending_shops/s1", `{"after":{"status":"pending"}}`)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "changefeed_events_received_total")
	})
}

func TestWebhook_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewWebhookSource(WebhookOptions{Address: "127.0.0.1:0", Collection: "pending_shops"}, logger.NewTestLogger(t))

	done := runSource(ctx, src, &recordingListener{})
	cancel()
	assert.NoError(t, <-done)
}
