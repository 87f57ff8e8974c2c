// Package notifier delivers formatted suggestion messages to recipients.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Notifier abstracts delivery to an external notification service.
// Mocking this interface in tests gives full control over provider behaviour
// without making real calls. Implementations do not retry: any rejection is
// returned as a delivery error and the queue redelivers the request.
type Notifier interface {
	Send(ctx context.Context, msg domain.Message) error
}

// deliveryError wraps err as a delivery failure, prefixing the provider's
// error code when the SDK exposes one.
func deliveryError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		err = fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return domain.DeliveryError(op, err)
}

func checkAddress(op, to, tag string) error {
	if err := validate.Var(to, "required,"+tag); err != nil {
		return domain.DeliveryError(op, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, to))
	}
	return nil
}
