// Package notify delivers scored events to their recipients. The dispatcher
// owns channel policy: email carries everything it is handed, SMS only ever
// carries urgent events regardless of what the caller passes in.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rpalacios/regwatch/internal/models"
)

const urgentTier = "urgent"

// SendResult is the per-recipient delivery outcome.
type SendResult struct {
	Recipient string
	Err       error
}

// EmailSender delivers one message to a list of addresses.
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) []SendResult
}

// SMSSender delivers one short message to a list of phone numbers.
type SMSSender interface {
	SendSMS(ctx context.Context, to []string, body string) []SendResult
}

// Dispatcher routes events to the configured senders. Either sender may be
// nil; the corresponding channel is then skipped.
type Dispatcher struct {
	Email EmailSender
	SMS   SMSSender
}

func NewDispatcher(email EmailSender, sms SMSSender) *Dispatcher {
	return &Dispatcher{Email: email, SMS: sms}
}

// Dispatch delivers a single event. SMS recipients are dropped unless the
// event is urgent; this check is a second line of defense behind the
// pipeline boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.Event, emails, sms []string) error {
	var failures int

	if d.Email != nil && len(emails) > 0 {
		subject := fmt.Sprintf("[%s] %s", strings.ToUpper(event.Tier), event.Title)
		failures += countFailures(d.Email.SendEmail(ctx, emails, subject, emailBody(event)))
	}

	if d.SMS != nil && len(sms) > 0 {
		if event.Tier != urgentTier {
			log.Printf("[Notify] Dropping SMS for non-urgent event %s (tier %s)", event.SourceID, event.Tier)
		} else {
			failures += countFailures(d.SMS.SendSMS(ctx, sms, smsBody(event)))
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d recipient deliveries failed", failures)
	}
	return nil
}

// SendDigest emails a batch of digest-tier events as one message.
func (d *Dispatcher) SendDigest(ctx context.Context, source string, events []models.Event, emails []string) error {
	if d.Email == nil || len(emails) == 0 {
		return fmt.Errorf("no email sender or recipients for digest")
	}

	subject := fmt.Sprintf("Digest: %d events from %s", len(events), source)
	var b strings.Builder
	for i, ev := range events {
		fmt.Fprintf(&b, "%d. %s (score %d)\n", i+1, ev.Title, ev.Score)
		if ev.ExternalURL != "" {
			fmt.Fprintf(&b, "   %s\n", ev.ExternalURL)
		}
	}

	if failures := countFailures(d.Email.SendEmail(ctx, emails, subject, b.String())); failures > 0 {
		return fmt.Errorf("%d digest deliveries failed", failures)
	}
	return nil
}

func emailBody(event models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", event.Title)
	if event.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", event.Summary)
	} else if event.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", event.Description)
	}
	fmt.Fprintf(&b, "Score: %d (%s)\n", event.Score, strings.Join(event.Reasons, "; "))
	if event.ExternalURL != "" {
		fmt.Fprintf(&b, "Link: %s\n", event.ExternalURL)
	}
	return b.String()
}

func smsBody(event models.Event) string {
	body := fmt.Sprintf("URGENT: %s", event.Title)
	if len(body) > 160 {
		body = body[:157] + "..."
	}
	return body
}

func countFailures(results []SendResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			log.Printf("[Notify] Delivery to %s failed: %v", r.Recipient, r.Err)
			n++
		}
	}
	return n
}
