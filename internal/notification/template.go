package notification

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultSubjectTemplate = `Utility overage {{.CycleLabel}}: {{.Property}}`

const DefaultBodyTemplate = `Dear owner,

During the {{.CycleLabel}} billing cycle the property "{{.Property}}" exceeded
its contracted utility allowance.

Total utility cost: {{.TotalCost}} {{.Currency}}
Contracted allowance: {{.Allowance}} {{.Currency}}
Amount over allowance: {{.Overage}} {{.Currency}}

The matching utility invoices for the cycle are attached.
{{ if not .HasAttachments }}
(No invoice documents were available at the time of writing.)
{{ end }}
Kind regards,
Property Management`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Property       string
	CycleLabel     string
	TotalCost      string
	Allowance      string
	Overage        string
	Currency       string
	HasAttachments bool
}

// Template renders notification subject and body.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// NewTemplate parses subject and body templates, falling back to the
// defaults when empty.
func NewTemplate(subject, body string) (*Template, error) {
	if subject == "" {
		subject = DefaultSubjectTemplate
	}
	if body == "" {
		body = DefaultBodyTemplate
	}
	parsedSubject, err := template.New("notification-subject").Parse(subject)
	if err != nil {
		return nil, err
	}
	parsedBody, err := template.New("notification-body").Parse(body)
	if err != nil {
		return nil, err
	}
	return &Template{subject: parsedSubject, body: parsedBody}, nil
}

// Render applies the templates to data.
func (t *Template) Render(data TemplateData) (subject, body string, err error) {
	if t == nil || t.subject == nil || t.body == nil {
		return "", "", errors.New("notification template: nil")
	}
	var subjectBuf, bodyBuf bytes.Buffer
	if err := t.subject.Execute(&subjectBuf, data); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&bodyBuf, data); err != nil {
		return "", "", err
	}
	return subjectBuf.String(), bodyBuf.String(), nil
}
