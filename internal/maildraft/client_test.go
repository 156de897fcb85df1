package maildraft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"utilibill/internal/notification"
)

func TestCreateDraft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/drafts" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			To          string   `json:"to"`
			Subject     string   `json:"subject"`
			DocumentIDs []string `json:"document_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.To != "owner@example.com" || len(req.DocumentIDs) != 2 {
			t.Fatalf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"draft-9","url":"https://mail.test/drafts/draft-9"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "token")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	draft, err := client.CreateDraft(context.Background(), &notification.Payload{
		PropertyKey: "aribau 1o 1a",
		Subject:     "Utility overage Jul-Aug 2025: aribau 1o 1a",
		Body:        "body",
		To:          "owner@example.com",
		Attachments: []notification.DocumentRef{{ID: "d1"}, {ID: "d2"}},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft.ID != "draft-9" || draft.URL == "" {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestCreateDraftRejectsEmptyRecipient(t *testing.T) {
	client, err := NewClient("https://mail.test", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.CreateDraft(context.Background(), &notification.Payload{}); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
}
