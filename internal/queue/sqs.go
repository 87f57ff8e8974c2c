package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// sqsAPI is the subset of *sqs.Client the adapter calls.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQS consumes a single Amazon SQS queue.
type SQS struct {
	api      sqsAPI
	queueURL string
	wait     time.Duration
	timeout  time.Duration
}

// NewSQS wraps client for queueURL. wait is the long-poll duration (0 for a
// short poll); timeout bounds each call on top of the long poll.
func NewSQS(client sqsAPI, queueURL string, wait, timeout time.Duration) *SQS {
	return &SQS{api: client, queueURL: queueURL, wait: wait, timeout: timeout}
}

func (q *SQS) ReceiveOne(ctx context.Context, visibility time.Duration) (*domain.InFlightMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout+q.wait)
	defer cancel()

	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(q.wait / time.Second),
		VisibilityTimeout:   int32(visibility / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	return toInFlight(out.Messages[0]), nil
}

func (q *SQS) Delete(ctx context.Context, receipt string) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", classifyReceiptErr(err))
	}
	return nil
}

func (q *SQS) ExtendVisibility(ctx context.Context, receipt string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	_, err := q.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: int32(timeout / time.Second),
	})
	if err != nil {
		return fmt.Errorf("sqs change visibility: %w", classifyReceiptErr(err))
	}
	return nil
}

// classifyReceiptErr folds the several ways SQS reports a stale receipt into
// ErrReceiptExpired, keeping the original error in the chain.
func classifyReceiptErr(err error) error {
	var invalid *types.ReceiptHandleIsInvalid
	var notInflight *types.MessageNotInflight
	if errors.As(err, &invalid) || errors.As(err, &notInflight) {
		return errors.Join(ErrReceiptExpired, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidParameterValue" &&
		strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "receipt handle") {
		return errors.Join(ErrReceiptExpired, err)
	}
	return err
}

func toInFlight(m types.Message) *domain.InFlightMessage {
	msg := &domain.InFlightMessage{
		MessageID:     aws.ToString(m.MessageId),
		Body:          aws.ToString(m.Body),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		ReceiveCount:  1,
	}
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			msg.ReceiveCount = n
		}
	}
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.SentAt = time.UnixMilli(ms).UTC()
		}
	}
	return msg
}

var _ Queue = (*SQS)(nil)
