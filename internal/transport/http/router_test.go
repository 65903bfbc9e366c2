package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/storage/memory"
	"tempinbox/backend/internal/websocket"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.MailboxService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mailbox: config.MailboxConfig{
			Domain:        "temp-inbox.com",
			DefaultTTL:    time.Hour,
			SweepInterval: 60 * time.Second,
		},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{CreatePerMinute: 1000},
	}

	store := memory.NewStore()
	metrics := monitoring.NewTestMetrics()
	svc := service.NewMailboxService(store, cfg, zap.NewNop(), metrics)
	hub := websocket.NewHub(cfg.CORS.AllowedOrigins, store, zap.NewNop(), metrics)
	svc.SetNotifier(hub)

	router := NewRouter(RouterDependencies{
		Config:         cfg,
		MailboxService: svc,
		WebSocketHub:   hub,
		Logger:         zap.NewNop(),
	})
	return router, svc
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func TestRouter_CreateMailbox(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(router, http.MethodPost, "/v1/mailboxes", "")
	require.Equal(t, http.StatusCreated, recorder.Code)

	resp := decodeResponse(t, recorder)
	assert.Equal(t, CodeCreated, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.True(t, strings.HasSuffix(data["address"].(string), "@temp-inbox.com"))
	assert.NotEmpty(t, data["expiresAt"])
}

func TestRouter_GetMailbox(t *testing.T) {
	router, svc := newTestRouter(t)

	mailbox, err := svc.Create()
	require.NoError(t, err)

	recorder := doRequest(router, http.MethodGet, "/v1/mailboxes/"+mailbox.ID, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	resp := decodeResponse(t, recorder)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, mailbox.Address, data["address"])

	t.Run("不存在的邮箱返回404", func(t *testing.T) {
		recorder := doRequest(router, http.MethodGet, "/v1/mailboxes/missing", "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestRouter_ListMessages(t *testing.T) {
	router, svc := newTestRouter(t)

	mailbox, err := svc.Create()
	require.NoError(t, err)

	recorder := doRequest(router, http.MethodGet, "/v1/mailboxes/"+mailbox.ID+"/messages", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	resp := decodeResponse(t, recorder)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])
	assert.NotNil(t, data["messages"])

	t.Run("不存在的邮箱返回404", func(t *testing.T) {
		recorder := doRequest(router, http.MethodGet, "/v1/mailboxes/missing/messages", "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestRouter_RefreshMailbox(t *testing.T) {
	router, svc := newTestRouter(t)

	mailbox, err := svc.Create()
	require.NoError(t, err)

	recorder := doRequest(router, http.MethodPost, "/v1/mailboxes/"+mailbox.ID+"/refresh", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	refreshed, err := svc.Get(mailbox.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), refreshed.ExpiresAt, time.Second)

	t.Run("不存在的邮箱返回404", func(t *testing.T) {
		recorder := doRequest(router, http.MethodPost, "/v1/mailboxes/missing/refresh", "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestRouter_DeleteMailbox(t *testing.T) {
	router, svc := newTestRouter(t)

	mailbox, err := svc.Create()
	require.NoError(t, err)

	recorder := doRequest(router, http.MethodDelete, "/v1/mailboxes/"+mailbox.ID, "")
	require.Equal(t, http.StatusNoContent, recorder.Code)

	_, err = svc.Get(mailbox.ID)
	assert.ErrorIs(t, err, memory.ErrMailboxNotFound)

	t.Run("重复删除返回404", func(t *testing.T) {
		recorder := doRequest(router, http.MethodDelete, "/v1/mailboxes/"+mailbox.ID, "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "ok")
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
}
