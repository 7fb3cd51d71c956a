package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpalacios/regwatch/internal/models"
)

type recordingSender struct {
	emails []string
	sms    []string
	fail   bool
}

func (r *recordingSender) SendEmail(ctx context.Context, to []string, subject, body string) []SendResult {
	var out []SendResult
	for _, rcpt := range to {
		r.emails = append(r.emails, rcpt)
		var err error
		if r.fail {
			err = errors.New("smtp down")
		}
		out = append(out, SendResult{Recipient: rcpt, Err: err})
	}
	return out
}

func (r *recordingSender) SendSMS(ctx context.Context, to []string, body string) []SendResult {
	var out []SendResult
	for _, rcpt := range to {
		r.sms = append(r.sms, rcpt)
		out = append(out, SendResult{Recipient: rcpt})
	}
	return out
}

func TestDispatchSMSOnlyForUrgent(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, sender)

	informational := models.Event{Tier: "informational", Title: "Rate change"}
	if err := d.Dispatch(context.Background(), informational, []string{"a@example.org"}, []string{"+1555"}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(sender.sms) != 0 {
		t.Error("non-urgent event must never reach SMS")
	}
	if len(sender.emails) != 1 {
		t.Error("email should still deliver")
	}

	urgent := models.Event{Tier: "urgent", Title: "Class I recall"}
	if err := d.Dispatch(context.Background(), urgent, nil, []string{"+1555"}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(sender.sms) != 1 {
		t.Error("urgent event should reach SMS")
	}
}

func TestDispatchReportsFailures(t *testing.T) {
	sender := &recordingSender{fail: true}
	d := NewDispatcher(sender, nil)

	err := d.Dispatch(context.Background(), models.Event{Tier: "urgent"}, []string{"a@x", "b@x"}, nil)
	if err == nil {
		t.Fatal("expected delivery failure to surface")
	}
}

func TestSendDigestBatches(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, nil)

	events := []models.Event{
		{Title: "Alert one", Score: 65},
		{Title: "Alert two", Score: 50},
	}
	if err := d.SendDigest(context.Background(), "state_health", events, []string{"ops@example.org"}); err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if len(sender.emails) != 1 {
		t.Errorf("expected one digest email, got %d", len(sender.emails))
	}
}

func TestSMSBodyTruncation(t *testing.T) {
	long := models.Event{Title: strings.Repeat("x", 200)}
	body := smsBody(long)
	if len(body) > 160 {
		t.Errorf("sms body exceeds 160 chars: %d", len(body))
	}
	if !strings.HasSuffix(body, "...") {
		t.Errorf("truncated body should end with ellipsis: %q", body)
	}
}
