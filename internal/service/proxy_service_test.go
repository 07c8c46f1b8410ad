package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func chatRequest(model string) *domain.ChatRequest {
	return &domain.ChatRequest{
		Model: model,
		Messages: []domain.IncomingMessage{
			{Role: strPtr("system"), Content: strPtr("be brief")},
			{Role: strPtr("user"), Content: strPtr("hello")},
		},
	}
}

func newTestProxy(url string) *ProxyService {
	return NewProxyService(llm.NewClient(llm.Config{
		BaseURL: url,
		Model:   "tinyllama",
		Timeout: time.Second,
	}), zap.NewNop())
}

func TestProxyService_ForcesModelAndDisablesStreaming(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"model":"tinyllama","message":{"role":"assistant","content":"hi","images":null},"done":true}`))
	}))
	defer srv.Close()

	result := newTestProxy(srv.URL).Chat(context.Background(), chatRequest("gpt-4"))

	assert.False(t, result.Failed())
	assert.Equal(t, "tinyllama", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, []any{
		map[string]any{"role": "system", "content": "be brief"},
		map[string]any{"role": "user", "content": "hello"},
	}, got["messages"])

	assert.Equal(t, domain.ChatResponse{
		Model:   "tinyllama",
		Message: domain.Message{Role: domain.RoleAssistant, Content: "hi"},
	}, result.Response)
}

func TestProxyService_MissingBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	result := newTestProxy(srv.URL).Chat(context.Background(), chatRequest(""))

	assert.Equal(t, ProxyOK, result.Outcome)
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: NoResponseContent}, result.Response.Message)
}

func TestProxyService_BackendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'tinyllama' not found"}`))
	}))
	defer srv.Close()

	result := newTestProxy(srv.URL).Chat(context.Background(), chatRequest(""))

	assert.Equal(t, ProxyBackendRejected, result.Outcome)
	assert.Equal(t, "tinyllama", result.Response.Model)
	assert.Equal(t, domain.RoleAssistant, result.Response.Message.Role)
	assert.Equal(t, `Error: {"error":"model 'tinyllama' not found"}`, result.Response.Message.Content)
}

func TestProxyService_BackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := newTestProxy(url).Chat(context.Background(), chatRequest(""))

	assert.Equal(t, ProxyBackendUnreachable, result.Outcome)
	assert.Error(t, result.Err)
	assert.Equal(t, "tinyllama", result.Response.Model)
	assert.Contains(t, result.Response.Message.Content, "Error: ")
}

func TestProxyService_MalformedBackendBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	result := newTestProxy(srv.URL).Chat(context.Background(), chatRequest(""))

	assert.Equal(t, ProxyBackendUnreachable, result.Outcome)
	assert.Contains(t, result.Response.Message.Content, "Error: ")
}

func TestProxyService_InvalidMessage(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	req := &domain.ChatRequest{Messages: []domain.IncomingMessage{{Content: strPtr("no role")}}}
	result := newTestProxy(srv.URL).Chat(context.Background(), req)

	assert.False(t, called)
	assert.Equal(t, ProxyInvalidRequest, result.Outcome)
	assert.ErrorIs(t, result.Err, domain.ErrInvalidRequest)
	assert.Contains(t, result.Response.Message.Content, "message 0 has no role")
}

func TestProxyOutcome_String(t *testing.T) {
	assert.Equal(t, "ok", ProxyOK.String())
	assert.Equal(t, "backend_rejected", ProxyBackendRejected.String())
	assert.Equal(t, "backend_unreachable", ProxyBackendUnreachable.String())
}
