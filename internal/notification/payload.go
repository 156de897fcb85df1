// Package notification assembles per-property overage notification
// payloads: rendered subject and body, matched invoice documents and the
// recipient list from the property registry.
package notification

import (
	"context"
	"fmt"
	"time"

	reconcile "utilibill/internal/reconcile/domain"
)

// DocumentRef points at one invoice document in the external store.
type DocumentRef struct {
	ID       string
	Name     string
	URL      string
	Period   time.Time
	Category reconcile.Category
}

// DocumentStore looks up invoice documents by property, period and
// category. Implementations are read-only external services.
type DocumentStore interface {
	Find(ctx context.Context, propertyKey string, period time.Time, category reconcile.Category) ([]DocumentRef, error)
}

// Payload is one ready-to-draft notification.
type Payload struct {
	PropertyKey string
	Subject     string
	Body        string
	To          string
	Cc          []string
	Attachments []DocumentRef
	SummaryPDF  []byte
}

// RecipientError reports a registry entry with no primary recipient.
type RecipientError struct {
	PropertyKey string
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("notification: no recipient for %s", e.PropertyKey)
}
