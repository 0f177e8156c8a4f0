package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"token-market/internal/observability"
)

func TestHTTPClient_GetTreasuryBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "getBalance" {
			t.Errorf("method = %s, want getBalance", req.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]int64{"balance": 500_000_000},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	balance, err := client.GetTreasuryBalance(context.Background(), "Treasury111")
	if err != nil {
		t.Fatalf("GetTreasuryBalance failed: %v", err)
	}
	if balance != 500_000_000 {
		t.Errorf("balance = %d, want 500000000", balance)
	}
}

func TestHTTPClient_GetHolderBalances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"balances": []map[string]any{
					{"address": "addr-a", "balance": 400},
				},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	balances, err := client.GetHolderBalances(context.Background(), []string{"addr-a", "addr-b"})
	if err != nil {
		t.Fatalf("GetHolderBalances failed: %v", err)
	}
	if balances["addr-a"] != 400 {
		t.Errorf("addr-a = %d, want 400", balances["addr-a"])
	}
	if got, ok := balances["addr-b"]; !ok || got != 0 {
		t.Errorf("addr-b = %d (present=%v), want 0 for unknown address", got, ok)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]int64{"balance": 7},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
	)
	balance, err := client.GetTreasuryBalance(context.Background(), "Treasury111")
	if err != nil {
		t.Fatalf("GetTreasuryBalance failed after retries: %v", err)
	}
	if balance != 7 {
		t.Errorf("balance = %d, want 7", balance)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32000, "message": "unknown address"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	_, err := client.GetTreasuryBalance(context.Background(), "Treasury111")
	if err == nil {
		t.Fatal("expected RPC error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (RPC errors are terminal)", calls)
	}
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"11111111111111111111111111111111", true}, // 32 zero bytes, on curve
		{"", false},
		{"not-base58-0OIl!", false},
		{"abc", false}, // too short
	}
	for _, tt := range tests {
		if got := ValidAddress(tt.address); got != tt.want {
			t.Errorf("ValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestHTTPClient_RecordsCallLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]int64{"balance": 1},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	if _, err := client.GetTreasuryBalance(context.Background(), "Treasury111"); err != nil {
		t.Fatalf("GetTreasuryBalance failed: %v", err)
	}

	if testutil.CollectAndCount(observability.DefaultMetrics.OracleCallLatency) == 0 {
		t.Error("oracle call latency was not recorded")
	}
}
