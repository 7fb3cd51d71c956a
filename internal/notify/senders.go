package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// SMTPSender delivers email through a plain SMTP relay.
type SMTPSender struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func (s *SMTPSender) SendEmail(ctx context.Context, to []string, subject, body string) []SendResult {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.From, strings.Join(to, ", "), subject, body)

	results := make([]SendResult, 0, len(to))
	err := smtp.SendMail(s.Addr, s.Auth, s.From, to, []byte(msg))
	for _, rcpt := range to {
		results = append(results, SendResult{Recipient: rcpt, Err: err})
	}
	return results
}

// LogSender writes deliveries to the process log. Used when no real email or
// SMS provider is configured, so local runs still show what would have gone
// out.
type LogSender struct{}

func (LogSender) SendEmail(ctx context.Context, to []string, subject, body string) []SendResult {
	results := make([]SendResult, 0, len(to))
	for _, rcpt := range to {
		log.Printf("[Notify] EMAIL to %s: %s", rcpt, subject)
		results = append(results, SendResult{Recipient: rcpt})
	}
	return results
}

func (LogSender) SendSMS(ctx context.Context, to []string, body string) []SendResult {
	results := make([]SendResult, 0, len(to))
	for _, rcpt := range to {
		log.Printf("[Notify] SMS to %s: %s", rcpt, body)
		results = append(results, SendResult{Recipient: rcpt})
	}
	return results
}
