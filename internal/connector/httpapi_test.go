package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/devconn/devconn/internal/endpoints"
)

func retryEndpoint(baseURL string, retries int) *endpoints.Endpoint {
	return &endpoints.Endpoint{
		Name:       "catalyst_center",
		Kind:       endpoints.KindCatalystCenter,
		BaseURL:    baseURL,
		AuthMethod: endpoints.AuthBasic,
		Enabled:    true,
		RetryCount: retries,
	}
}

// dropConnection kills the TCP connection before any response bytes are
// written, which the client surfaces as a transport error.
func dropConnection(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
}

func TestAPIClientRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			dropConnection(t, w)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := newAPIClient(retryEndpoint(srv.URL, 3))

	var out map[string]string
	status, err := client.doJSON(context.Background(), http.MethodGet, "/ping", nil, nil, &out)

	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if out["status"] != "ok" {
		t.Errorf("unexpected body: %v", out)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestAPIClientRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		dropConnection(t, w)
	}))
	defer srv.Close()

	client := newAPIClient(retryEndpoint(srv.URL, 2))

	_, err := client.doJSON(context.Background(), http.MethodGet, "/ping", nil, nil, nil)

	if err == nil {
		t.Fatal("expected error once the retry budget is spent")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts for retry count 2, got %d", got)
	}
}

func TestAPIClientDoesNotReplayRespondedRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newAPIClient(retryEndpoint(srv.URL, 3))

	status, err := client.doJSON(context.Background(), http.MethodPost, "/thing", nil, map[string]string{"a": "b"}, nil)

	if err != nil {
		t.Fatalf("a served response is not a transport error: %v", err)
	}
	if status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}
