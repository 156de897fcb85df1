// Package docstore is a REST client for the external invoice document
// store. It satisfies the notification document lookup port.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"utilibill/internal/notification"
	reconcile "utilibill/internal/reconcile/domain"
)

// Client queries the document store over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a document store client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("docstore: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type documentItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Period   string `json:"period"`
	Category string `json:"category"`
}

type documentsPage struct {
	Data []documentItem `json:"data"`
}

// Find returns documents matching the property, billing period and
// category. A missing property yields an empty slice, not an error.
func (c *Client) Find(ctx context.Context, propertyKey string, period time.Time, category reconcile.Category) ([]notification.DocumentRef, error) {
	if propertyKey == "" {
		return nil, errors.New("docstore: empty property key")
	}
	query := url.Values{}
	query.Set("property", propertyKey)
	query.Set("period", period.Format("2006-01"))
	query.Set("category", string(category))

	var page documentsPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents?"+query.Encode(), nil, &page); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	refs := make([]notification.DocumentRef, 0, len(page.Data))
	for _, item := range page.Data {
		ref := notification.DocumentRef{
			ID:       item.ID,
			Name:     item.Name,
			URL:      item.URL,
			Category: reconcile.Category(item.Category),
		}
		if parsed, err := time.Parse("2006-01", item.Period); err == nil {
			ref.Period = parsed
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

var errNotFound = errors.New("docstore: not found")

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

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("docstore: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
