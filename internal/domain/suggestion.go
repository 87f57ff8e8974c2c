package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RecordID is the opaque key the search index returns and the record store is keyed by.
type RecordID string

// Record is a normalized record store entry. Values are string, float64, bool,
// []byte, nil, []any, []string, []float64, [][]byte or map[string]any.
type Record map[string]any

// SuggestionRequest is the unit of work carried by one queue message.
type SuggestionRequest struct {
	Category      string `json:"category" validate:"required"`
	Destination   string `json:"destinationAddress" validate:"required"`
	PartySize     *int   `json:"partySize,omitempty"`
	RequestedTime string `json:"requestedTime,omitempty"`
	Date          string `json:"date,omitempty"`
	City          string `json:"city,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	Type          string `json:"type,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// wireRequest accepts both the keys written by the conversational front end
// and the neutral aliases.
type wireRequest struct {
	Cuisine            string  `json:"cuisine"`
	Category           string  `json:"category"`
	Email              string  `json:"email"`
	DestinationAddress string  `json:"destinationAddress"`
	Guests             flexInt `json:"guests"`
	PartySizeSnake     flexInt `json:"party_size"`
	PartySize          flexInt `json:"partySize"`
	Time               string  `json:"time"`
	DiningTime         string  `json:"dining_time"`
	RequestedTime      string  `json:"requestedTime"`
	Date               string  `json:"date"`
	City               string  `json:"city"`
	SessionID          string  `json:"sessionId"`
	RequestID          string  `json:"requestId"`
	Type               string  `json:"type"`
	Timestamp          string  `json:"timestamp"`
}

// flexInt decodes a JSON number or a numeric string. Anything else leaves it unset.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if n, err := strconv.Atoi(s); err == nil {
		f.v = &n
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil && fl == float64(int(fl)) {
		n := int(fl)
		f.v = &n
	}
	return nil
}

// DecodeSuggestionRequest parses a queue message body. The category is
// case-folded; the request is not validated.
func DecodeSuggestionRequest(body []byte) (SuggestionRequest, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return SuggestionRequest{}, errors.Join(ErrUndecodableBody, err)
	}
	return SuggestionRequest{
		Category:      strings.ToLower(strings.TrimSpace(firstNonEmpty(w.Cuisine, w.Category))),
		Destination:   strings.TrimSpace(firstNonEmpty(w.Email, w.DestinationAddress)),
		PartySize:     firstInt(w.Guests, w.PartySizeSnake, w.PartySize),
		RequestedTime: firstNonEmpty(w.Time, w.DiningTime, w.RequestedTime),
		Date:          w.Date,
		City:          w.City,
		SessionID:     w.SessionID,
		RequestID:     w.RequestID,
		Type:          w.Type,
		Timestamp:     w.Timestamp,
	}, nil
}

// Validate checks the fields required before any index or store call.
func (r SuggestionRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var out []error
	for _, fe := range verrs {
		switch fe.Field() {
		case "Category":
			out = append(out, ErrMissingCategory)
		case "Destination":
			out = append(out, ErrMissingDestination)
		default:
			out = append(out, fe)
		}
	}
	return errors.Join(out...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...flexInt) *int {
	for _, v := range vals {
		if v.v != nil {
			return v.v
		}
	}
	return nil
}

// InFlightMessage is one dequeue attempt. ReceiptHandle is the only handle that
// can delete the entry or change its visibility.
type InFlightMessage struct {
	MessageID     string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
	SentAt        time.Time
}

// Message is a formatted outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// CycleResult aggregates one polling cycle.
type CycleResult struct {
	InvocationID string        `json:"invocationId,omitempty"`
	Received     int           `json:"received"`
	Processed    int           `json:"processed"`
	Errors       int           `json:"errors"`
	Duration     time.Duration `json:"durationNs"`
	FinishedAt   time.Time     `json:"finishedAt"`
}
