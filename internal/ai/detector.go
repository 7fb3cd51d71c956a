package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Detection holds pattern signals derived from an event's text.
type Detection struct {
	Flags      map[string]bool `json:"flags"`
	Match      map[string]bool `json:"match"`
	Confidence float64         `json:"confidence"`
}

// EmptyDetection is the all-false fallback used when detection fails.
// Confidence 0 means no signal contributed to scoring.
func EmptyDetection() Detection {
	return Detection{
		Flags:      map[string]bool{},
		Match:      map[string]bool{},
		Confidence: 0,
	}
}

// DetectInput carries the candidate event text and the flag/match keys the
// caller wants classified.
type DetectInput struct {
	Title       string
	Description string
	FlagKeys    []string
	MatchKeys   []string
}

// Detect classifies boolean pattern signals on a candidate event. Errors are
// expected to be handled at the adapter boundary by degrading to
// EmptyDetection; detection failure never aborts an event.
func (c *Client) Detect(ctx context.Context, in DetectInput) (Detection, error) {
	prompt := fmt.Sprintf(`Classify boolean signals on this regulatory event.

TITLE: %s
TEXT: %s

For each signal below, answer true only when the text clearly supports it.

FLAG SIGNALS: %s
MATCH SIGNALS: %s

Return a JSON object:
{
  "flags": {"<signal>": true|false, ...},
  "match": {"<signal>": true|false, ...},
  "confidence": <0.0-1.0>
}

RESPOND ONLY WITH JSON.`, in.Title, in.Description,
		strings.Join(in.FlagKeys, ", "), strings.Join(in.MatchKeys, ", "))

	resp, err := c.complete(ctx, "You classify safety signals on regulatory events.", prompt, true)
	if err != nil {
		return EmptyDetection(), err
	}

	var det Detection
	if err := json.Unmarshal([]byte(resp), &det); err != nil {
		return EmptyDetection(), fmt.Errorf("failed to parse detection json: %w. Response: %s", err, resp)
	}
	if det.Flags == nil {
		det.Flags = map[string]bool{}
	}
	if det.Match == nil {
		det.Match = map[string]bool{}
	}

	// Keep only the requested keys; models occasionally invent extras.
	det.Flags = filterKeys(det.Flags, in.FlagKeys)
	det.Match = filterKeys(det.Match, in.MatchKeys)

	return det, nil
}

func filterKeys(m map[string]bool, allowed []string) map[string]bool {
	out := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}
