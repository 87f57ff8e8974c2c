package notifier

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier sends SMS through Amazon SNS. SMS has no subject line, so the
// subject is sent as the first line of the text.
type SNSNotifier struct {
	api     snsAPI
	timeout time.Duration
}

func NewSNSNotifier(api snsAPI, timeout time.Duration) *SNSNotifier {
	return &SNSNotifier{api: api, timeout: timeout}
}

func (n *SNSNotifier) Send(ctx context.Context, msg domain.Message) error {
	if err := checkAddress("sns publish", msg.To, "e164"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err := n.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.To),
		Message:     aws.String(msg.Subject + "\n" + msg.Body),
	})
	if err != nil {
		return deliveryError("sns publish", err)
	}
	return nil
}

var _ Notifier = (*SNSNotifier)(nil)
