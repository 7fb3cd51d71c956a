package ai

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fields are the structured identity fields extracted from a raw record.
type Fields struct {
	Issuer         string `json:"issuer"`
	Subject        string `json:"subject"`
	Classification string `json:"classification"`
	Reason         string `json:"reason"`
}

// NormalizeInput carries the raw text an adapter could not map on its own.
type NormalizeInput struct {
	Title       string
	Description string
	Source      string
}

// Normalize extracts the four identity fields from a raw record. It fails
// closed: any malformed or partial response is an error, never a half-filled
// result. Callers treat failure as "use the raw fallback fields".
func (c *Client) Normalize(ctx context.Context, in NormalizeInput) (Fields, error) {
	prompt := fmt.Sprintf(`Extract structured fields from this regulatory record.

SOURCE: %s
TITLE: %s
TEXT: %s

Return a JSON object with exactly these string fields:
{
  "issuer": "<issuing organization name>",
  "subject": "<what the record is about: product, service or rule>",
  "classification": "<the record's category or class as stated>",
  "reason": "<the stated reason for the action>"
}

Rules:
1. Use only information present in the record. Do not invent values.
2. Every field must be a non-empty string; use "unknown" when the record does not state it.
3. RESPOND ONLY WITH JSON.`, in.Source, in.Title, in.Description)

	resp, err := c.complete(ctx, "You extract structured fields from regulatory and safety records.", prompt, true)
	if err != nil {
		return Fields{}, err
	}

	var fields Fields
	if err := json.Unmarshal([]byte(resp), &fields); err != nil {
		return Fields{}, fmt.Errorf("failed to parse normalizer json: %w. Response: %s", err, resp)
	}
	if fields.Issuer == "" || fields.Subject == "" || fields.Classification == "" || fields.Reason == "" {
		return Fields{}, fmt.Errorf("normalizer returned partial fields: %+v", fields)
	}

	return fields, nil
}
