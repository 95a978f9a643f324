package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Aklabu/e-commerce/internal/logger"
)

// Mailer renders a template and delivers it through its transport.
type Mailer struct {
	catalog   *Catalog
	transport Transport
	from      string
}

func NewMailer(catalog *Catalog, transport Transport, from string) *Mailer {
	return &Mailer{catalog: catalog, transport: transport, from: from}
}

func (m *Mailer) Send(ctx context.Context, templateID, recipient string, data map[string]any) error {
	if recipient == "" {
		return errors.New("notify: empty recipient")
	}
	msg, err := m.catalog.Render(templateID, data)
	if err != nil {
		return err
	}
	msg.From = m.from
	msg.To = recipient
	return m.transport.Deliver(ctx, msg)
}

type sender interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]any) error
}

// Async sends in the background so request latency does not depend on the
// mail relay. Send only fails for unknown templates.
type Async struct {
	next    sender
	catalog *Catalog
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next *Mailer, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Async{next: next, catalog: next.catalog, timeout: timeout}
}

func (a *Async) Send(ctx context.Context, templateID, recipient string, data map[string]any) error {
	if !a.catalog.Has(templateID) {
		return ErrUnknownTemplate
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := a.next.Send(ctx, templateID, recipient, data); err != nil {
			logger.Log.Error("email delivery failed", "template", templateID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every pending send has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}
