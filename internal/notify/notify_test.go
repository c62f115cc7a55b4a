package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gopkg.in/gomail.v2"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/replenish"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func shoppingEvent(changes ...replenish.Change) pipeline.Event {
	return pipeline.Event{Kind: pipeline.EventShoppingChanged, Shopping: changes}
}

func entry(id, name string, p model.Priority) model.ShoppingListItem {
	return model.ShoppingListItem{ID: id, Name: name, Priority: p, SuggestedQuantity: 2, Unit: "l"}
}

func TestHandleEvent_MailsCriticalOnce(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{}
	n := New(s, "home@example.com", []string{"me@example.com"})

	ev := shoppingEvent(
		replenish.Change{Kind: replenish.Created, Entry: entry("1", "Milk", model.PriorityCritical)},
		replenish.Change{Kind: replenish.Created, Entry: entry("2", "Eggs", model.PriorityHigh)},
	)
	if err := n.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.sent))
	}
	if got := s.sent[0].GetHeader("Subject"); len(got) != 1 || got[0] != "restock: Milk running out" {
		t.Fatalf("Subject = %v", got)
	}
	var buf bytes.Buffer
	if _, err := s.sent[0].WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Milk: buy 2 l") || strings.Contains(buf.String(), "Eggs") {
		t.Fatalf("body = %s", buf.String())
	}

	// quantity update of the same critical entry is not mailed again
	if err := n.HandleEvent(ctx, shoppingEvent(replenish.Change{Kind: replenish.Updated, Entry: entry("1", "Milk", model.PriorityCritical)})); err != nil {
		t.Fatal(err)
	}
	// escalation is
	if err := n.HandleEvent(ctx, shoppingEvent(replenish.Change{Kind: replenish.Updated, Entry: entry("2", "Eggs", model.PriorityCritical)})); err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(s.sent))
	}
}

func TestHandleEvent_RemovedEntryRearms(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{}
	n := New(s, "a@example.com", []string{"b@example.com"})
	e := entry("1", "Milk", model.PriorityCritical)

	_ = n.HandleEvent(ctx, shoppingEvent(replenish.Change{Kind: replenish.Created, Entry: e}))
	_ = n.HandleEvent(ctx, shoppingEvent(replenish.Change{Kind: replenish.Removed, Entry: e}))
	_ = n.HandleEvent(ctx, shoppingEvent(replenish.Change{Kind: replenish.Created, Entry: e}))
	if len(s.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(s.sent))
	}
}

func TestHandleEvent_SendFailureRetriesLater(t *testing.T) {
	ctx := context.Background()
	s := &fakeSender{err: errors.New("connection refused")}
	n := New(s, "a@example.com", []string{"b@example.com"})
	ev := shoppingEvent(replenish.Change{Kind: replenish.Created, Entry: entry("1", "Milk", model.PriorityCritical)})

	if err := n.HandleEvent(ctx, ev); err == nil {
		t.Fatal("expected send error")
	}
	s.err = nil
	if err := n.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.sent))
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig(config.NotifyConfig{Enabled: true}); err == nil {
		t.Fatal("expected error for missing smtp settings")
	}
	n, err := FromConfig(config.NotifyConfig{SMTPHost: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := n.sender.(*gomail.Dialer); !ok {
		t.Fatalf("sender = %T, want *gomail.Dialer", n.sender)
	}
}
