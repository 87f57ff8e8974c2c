package notifier

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends plain-text email through Amazon SES v2.
type SESNotifier struct {
	api     sesAPI
	sender  string
	timeout time.Duration
}

func NewSESNotifier(api sesAPI, sender string, timeout time.Duration) *SESNotifier {
	return &SESNotifier{api: api, sender: sender, timeout: timeout}
}

func (n *SESNotifier) Send(ctx context.Context, msg domain.Message) error {
	if err := checkAddress("ses send", msg.To, "email"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err := n.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return deliveryError("ses send", err)
	}
	return nil
}

var _ Notifier = (*SESNotifier)(nil)
