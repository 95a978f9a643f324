// Package notify renders the customer email templates and hands the result
// to a transport.
package notify

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v2"
)

//go:embed templates.yaml
var defaultTemplates []byte

var ErrUnknownTemplate = errors.New("unknown template")

type templateSource struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Message is a rendered email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Catalog holds the parsed templates keyed by id.
type Catalog struct {
	templates map[string]compiled
	md        goldmark.Markdown
	policy    *bluemonday.Policy
}

// DefaultCatalog parses the embedded templates.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultTemplates)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var sources map[string]templateSource
	if err := yaml.Unmarshal(raw, &sources); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	c := &Catalog{
		templates: make(map[string]compiled, len(sources)),
		md:        goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		policy:    bluemonday.UGCPolicy(),
	}
	for id, src := range sources {
		subject, err := template.New(id + ".subject").Option("missingkey=zero").Parse(src.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", id, err)
		}
		body, err := template.New(id + ".body").Option("missingkey=zero").Parse(src.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", id, err)
		}
		c.templates[id] = compiled{subject: subject, body: body}
	}
	return c, nil
}

// Render fills the template and produces the plain text and HTML parts.
func (c *Catalog) Render(templateID string, data map[string]any) (Message, error) {
	t, ok := c.templates[templateID]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", templateID, err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", templateID, err)
	}

	var html bytes.Buffer
	if err := c.md.Convert(body.Bytes(), &html); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", templateID, err)
	}

	return Message{
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(body.String()),
		HTML:    c.policy.Sanitize(html.String()),
	}, nil
}

// Has reports whether the catalog knows templateID.
func (c *Catalog) Has(templateID string) bool {
	_, ok := c.templates[templateID]
	return ok
}
