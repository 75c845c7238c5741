package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codescope/server/internal/jsonrpc"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := &RateLimiter{
		maxRequests: 2,
		window:      time.Second,
		clients:     make(map[string]*clientWindow),
	}

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("requests within the limit were rejected")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("request over the limit was allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("limit leaked across clients")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q", got)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc123" {
		t.Errorf("context request ID = %q, want abc123", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("response header = %q, want abc123", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no request ID generated")
	}
}

func TestRecoveryReturns500(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_server_error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

// echoProcessor answers every request with a fixed result.
type echoProcessor struct{}

func (echoProcessor) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	if req.Method == "fail" {
		return nil, &jsonrpc.Error{Code: jsonrpc.InternalError, Message: "failed"}
	}
	return map[string]string{"method": req.Method}, nil
}

func TestTransportInlineMessage(t *testing.T) {
	handler := Transport(echoProcessor{})

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", body))

	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, _ := resp.Result.(map[string]any)
	if result["method"] != "ping" {
		t.Errorf("result = %v", resp.Result)
	}
}

func TestTransportInlineError(t *testing.T) {
	handler := Transport(echoProcessor{})

	body := strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"fail"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", body))

	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.InternalError {
		t.Errorf("error = %v, want internal error", resp.Error)
	}
}

func TestTransportInlineParseError(t *testing.T) {
	handler := Transport(echoProcessor{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{not json")))

	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.ParseError {
		t.Errorf("error = %v, want parse error", resp.Error)
	}
}

func TestTransportRejectsOtherMethods(t *testing.T) {
	handler := Transport(echoProcessor{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/mcp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestTransportUnknownSession(t *testing.T) {
	handler := Transport(echoProcessor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp?sessionId=nope", strings.NewReader(`{}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
