package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// The worker classifies them into a Kind via KindOf before logging.
var (
	ErrMissingCategory    = errors.New("category is required")
	ErrMissingDestination = errors.New("destination address is required")
	ErrUndecodableBody    = errors.New("message body is not a suggestion request")
	ErrNoMatches          = errors.New("no records match the requested category")
	ErrInvalidAddress     = errors.New("destination address is not deliverable by this notifier")
)

// Kind is the classification of a fulfillment failure.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNoMatch        Kind = "no_match"
	KindIndexTransport Kind = "index_transport"
	KindStoreTransport Kind = "store_transport"
	KindDelivery       Kind = "delivery"
	KindUnknown        Kind = "unknown"
)

// Retryable reports whether redelivery of the message can be expected to help.
// The worker treats every kind the same way (the message is left on the queue);
// the flag only feeds logs and metrics.
func (k Kind) Retryable() bool {
	return k != KindValidation
}

// FulfillmentError is the result type every pipeline stage returns on failure.
type FulfillmentError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *FulfillmentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }

// KindOf returns the classification carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *FulfillmentError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func ValidationError(op string, err error) error {
	return &FulfillmentError{Kind: KindValidation, Op: op, Err: err}
}

func NoMatchError(category string) error {
	return &FulfillmentError{Kind: KindNoMatch, Op: "sample " + category, Err: ErrNoMatches}
}

func IndexTransportError(op string, err error) error {
	return &FulfillmentError{Kind: KindIndexTransport, Op: op, Err: err}
}

func StoreTransportError(op string, err error) error {
	return &FulfillmentError{Kind: KindStoreTransport, Op: op, Err: err}
}

func DeliveryError(op string, err error) error {
	return &FulfillmentError{Kind: KindDelivery, Op: op, Err: err}
}
