// Package notify mails a digest when shopping-list entries turn critical.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/replenish"
)

// Sender delivers messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier is a pipeline.Listener. Each critical entry is mailed once; an
// entry that is removed and later reopened is mailed again.
type Notifier struct {
	sender Sender
	from   string
	to     []string

	mu       sync.Mutex
	notified map[string]bool
}

// New returns a Notifier that sends through s.
func New(s Sender, from string, to []string) *Notifier {
	return &Notifier{sender: s, from: from, to: to, notified: make(map[string]bool)}
}

// FromConfig builds a Notifier on an SMTP dialer.
func FromConfig(cfg config.NotifyConfig) (*Notifier, error) {
	if cfg.SMTPHost == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("notify: smtp_host, from and to are required")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	d := gomail.NewDialer(cfg.SMTPHost, port, cfg.Username, cfg.Password)
	return New(d, cfg.From, cfg.To), nil
}

// HandleEvent implements pipeline.Listener.
func (n *Notifier) HandleEvent(_ context.Context, ev pipeline.Event) error {
	if len(ev.Shopping) == 0 {
		return nil
	}
	fresh := n.collect(ev.Shopping)
	if len(fresh) == 0 {
		return nil
	}

	if err := n.sender.DialAndSend(n.message(fresh)); err != nil {
		n.forget(fresh)
		return fmt.Errorf("sending critical digest: %w", err)
	}
	return nil
}

// collect records which critical entries have not been mailed yet.
func (n *Notifier) collect(changes []replenish.Change) []model.ShoppingListItem {
	n.mu.Lock()
	defer n.mu.Unlock()

	var fresh []model.ShoppingListItem
	for _, ch := range changes {
		id := ch.Entry.ID
		if ch.Kind == replenish.Removed || ch.Entry.Purchased {
			delete(n.notified, id)
			continue
		}
		if ch.Entry.Priority != model.PriorityCritical || n.notified[id] {
			continue
		}
		n.notified[id] = true
		fresh = append(fresh, ch.Entry)
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Name < fresh[j].Name })
	return fresh
}

func (n *Notifier) forget(entries []model.ShoppingListItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range entries {
		delete(n.notified, e.ID)
	}
}

func (n *Notifier) message(entries []model.ShoppingListItem) *gomail.Message {
	subject := fmt.Sprintf("restock: %s running out", entries[0].Name)
	if len(entries) > 1 {
		subject = fmt.Sprintf("restock: %d items running out", len(entries))
	}

	var b strings.Builder
	b.WriteString("These items are about to run out:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  - %s: buy %g %s\n", e.Name, e.SuggestedQuantity, e.Unit)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", b.String())
	return m
}
