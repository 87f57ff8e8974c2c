// Package message renders a fulfilled suggestion request as an outbound message.
package message

import (
	"fmt"
	"strings"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

const (
	// UnknownName is shown for a record without a usable name, including the
	// empty placeholder the worker substitutes for an id the store did not return.
	UnknownName = "Unknown"
	// UnavailableAddress is shown for a record without a usable address.
	UnavailableAddress = "Address unavailable"
)

var (
	nameKeys    = []string{"name", "Name", "business_name"}
	addressKeys = []string{"address", "Address"}
)

// Formatter builds subject and body text. Noun names the kind of thing being
// suggested ("restaurant").
type Formatter struct {
	Noun string
}

// Format returns the message for req listing records in the given order,
// numbered from 1. The output depends only on its inputs.
func (f Formatter) Format(req domain.SuggestionRequest, records []domain.Record) domain.Message {
	subject := fmt.Sprintf("%s %s suggestions", req.Category, f.Noun)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello! Here are my %s %s suggestions", req.Category, f.Noun)
	if req.PartySize != nil && *req.PartySize > 0 {
		fmt.Fprintf(&b, " for %d people", *req.PartySize)
	}
	if t := strings.TrimSpace(req.RequestedTime); t != "" {
		fmt.Fprintf(&b, ", for %s", t)
	}
	b.WriteString(":")

	for i, rec := range records {
		fmt.Fprintf(&b, "\n%d. %s, located at %s",
			i+1,
			firstString(rec, nameKeys, UnknownName),
			firstString(rec, addressKeys, UnavailableAddress),
		)
	}

	return domain.Message{To: req.Destination, Subject: subject, Body: b.String()}
}

// firstString returns the first non-empty value among keys, rendered as text.
func firstString(rec domain.Record, keys []string, fallback string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []string:
			if s := strings.Join(v, ", "); s != "" {
				return s
			}
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				if s, ok := p.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		default:
			return fmt.Sprint(v)
		}
	}
	return fallback
}
