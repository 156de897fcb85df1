package docstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	reconcile "utilibill/internal/reconcile/domain"
)

func TestFindDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("property"); got != "aribau 1o 1a" {
			t.Fatalf("unexpected property %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"d1","name":"jul-elec.pdf","url":"https://docs.test/d1","period":"2025-07","category":"electricity"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "token-123")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	refs, err := client.Find(context.Background(), "aribau 1o 1a",
		time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), reconcile.CategoryElectricity)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "d1" {
		t.Fatalf("unexpected refs %v", refs)
	}
	if refs[0].Period.Month() != time.July {
		t.Fatalf("unexpected period %s", refs[0].Period)
	}
}

func TestFindNotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	refs, err := client.Find(context.Background(), "unknown",
		time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), reconcile.CategoryWater)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %v", refs)
	}
}
