package webhook

import (
	"encoding/json"
	"regexp"
	"strings"
)

// OutcomeKind tags what a webhook response told us to do next.
type OutcomeKind int

const (
	// KindAccepted means the job was taken but no result or status mechanism
	// was provided; terminal with an informational message only.
	KindAccepted OutcomeKind = iota
	// KindResolved means a direct output reference is available.
	KindResolved
	// KindQueued means the caller must poll StatusURL for a later result.
	KindQueued
	// KindPending is poll-only: a structured status body without an output
	// reference yet.
	KindPending
)

// Outcome is the interpretation of one webhook response.
type Outcome struct {
	Kind      OutcomeKind
	OutputURL string
	StatusURL string
}

// The automation service names its fields inconsistently, so each rule checks
// every known spelling. Rules run in order; the first match wins.
type extractRule func(payload map[string]any) (Outcome, bool)

var extractRules = []extractRule{
	func(payload map[string]any) (Outcome, bool) {
		if url := firstString(payload, "output_url", "OutputURL"); url != "" {
			return Outcome{Kind: KindResolved, OutputURL: url}, true
		}
		return Outcome{}, false
	},
	func(payload map[string]any) (Outcome, bool) {
		if url := firstString(payload, "status_url"); url != "" {
			return Outcome{Kind: KindQueued, StatusURL: url}, true
		}
		return Outcome{}, false
	},
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// interpretPayload maps a decoded JSON object onto an outcome.
func interpretPayload(payload map[string]any) Outcome {
	for _, rule := range extractRules {
		if out, ok := rule(payload); ok {
			return out
		}
	}
	return Outcome{Kind: KindAccepted}
}

// interpretText scans a plain-text body for the first embedded URL.
func interpretText(body string) Outcome {
	if url := urlPattern.FindString(body); url != "" {
		return Outcome{Kind: KindResolved, OutputURL: url}
	}
	return Outcome{Kind: KindAccepted}
}

// Interpret classifies a submission response body. Structured bodies run
// through the extraction rules; anything else is scanned as text. Ambiguity
// degrades to Accepted rather than being treated as fatal.
func Interpret(contentType string, body []byte) Outcome {
	if isJSON(contentType) {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err == nil {
			return interpretPayload(payload)
		}
		return Outcome{Kind: KindAccepted}
	}
	return interpretText(string(body))
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
