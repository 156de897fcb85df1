// Package maildraft is a REST client for the external mail-drafting
// service. It only creates drafts; sending, retries and delivery belong
// to the drafting service.
package maildraft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"utilibill/internal/notification"
)

// Draft identifies one created draft.
type Draft struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the drafting service over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a drafting client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("maildraft: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type draftRequest struct {
	To          string   `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// CreateDraft submits a notification payload and returns the draft
// identifier and its human-viewable URL.
func (c *Client) CreateDraft(ctx context.Context, payload *notification.Payload) (Draft, error) {
	if payload == nil {
		return Draft{}, errors.New("maildraft: nil payload")
	}
	if payload.To == "" {
		return Draft{}, errors.New("maildraft: payload has no recipient")
	}
	request := draftRequest{
		To:      payload.To,
		Cc:      payload.Cc,
		Subject: payload.Subject,
		Body:    payload.Body,
	}
	for _, ref := range payload.Attachments {
		request.DocumentIDs = append(request.DocumentIDs, ref.ID)
	}

	var draft Draft
	if err := c.doJSON(ctx, http.MethodPost, "/api/drafts", request, &draft); err != nil {
		return Draft{}, err
	}
	if draft.ID == "" {
		return Draft{}, errors.New("maildraft: response missing draft id")
	}
	return draft, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("maildraft: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
