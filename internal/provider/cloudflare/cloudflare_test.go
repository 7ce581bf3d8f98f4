package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	cf "github.com/cloudflare/cloudflare-go"

	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *CloudflareProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := cf.NewWithAPIToken("test-token", cf.BaseURL(srv.URL), cf.UsingRetryPolicy(0, 0, 0))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return &CloudflareProvider{client: client, metrics: metrics.New(false)}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestFindRecordID(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "A" {
			t.Errorf("Expected type=A filter, got %q", got)
		}
		if got := r.URL.Query().Get("name"); got != "home.example.com" {
			t.Errorf("Expected name filter, got %q", got)
		}
		writeJSON(w, http.StatusOK, `{
			"success": true,
			"errors": [],
			"messages": [],
			"result": [{"id": "rec-123", "type": "A", "name": "home.example.com", "content": "198.51.100.1"}]
		}`)
	}))

	id, err := p.FindRecordID(context.Background(), "zone-1", "home.example.com")
	if err != nil {
		t.Fatalf("FindRecordID failed: %v", err)
	}
	if id != "rec-123" {
		t.Errorf("Expected record id rec-123, got %q", id)
	}
}

func TestFindRecordIDNotFound(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": true, "errors": [], "messages": [], "result": []}`)
	}))

	_, err := p.FindRecordID(context.Background(), "zone-1", "missing.example.com")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestFindRecordIDAuthError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"success": false, "errors": [{"code": 9109, "message": "Invalid access token"}], "messages": [], "result": null}`)
	}))

	_, err := p.FindRecordID(context.Background(), "zone-1", "home.example.com")
	if !errors.Is(err, provider.ErrAuth) {
		t.Errorf("Expected auth error, got %v", err)
	}
}

func TestUpdateRecord(t *testing.T) {
	var sawUpdate bool
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUpdate = true
		writeJSON(w, http.StatusOK, `{
			"success": true,
			"errors": [],
			"messages": [],
			"result": {"id": "rec-123", "type": "A", "name": "home.example.com", "content": "203.0.113.5"}
		}`)
	}))

	record := provider.Record{Name: "home.example.com", Proxied: true, TTL: 120}
	err := p.UpdateRecord(context.Background(), "zone-1", "rec-123", record, netip.MustParseAddr("203.0.113.5"))
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if !sawUpdate {
		t.Error("Expected update request to reach the API")
	}
}

func TestUpdateRecordRateLimited(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"success": false, "errors": [{"code": 971, "message": "rate limited"}], "messages": [], "result": null}`)
	}))

	record := provider.Record{Name: "home.example.com", TTL: 120}
	err := p.UpdateRecord(context.Background(), "zone-1", "rec-123", record, netip.MustParseAddr("203.0.113.5"))
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Errorf("Expected rate limit error, got %v", err)
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New("", metrics.New(false)); err == nil {
		t.Fatal("Expected error for empty token")
	}
}
