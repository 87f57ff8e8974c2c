package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

type fakeSQS struct {
	receiveOut *sqs.ReceiveMessageOutput
	receiveErr error
	receiveIn  *sqs.ReceiveMessageInput

	deleteErr error
	deleted   []string

	changeErr error
	changeIn  *sqs.ChangeMessageVisibilityInput
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveIn = in
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if f.receiveOut == nil {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return f.receiveOut, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(_ context.Context, in *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.changeIn = in
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func TestSQS_ReceiveOne(t *testing.T) {
	fake := &fakeSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String(`{"cuisine":"italian"}`),
		ReceiptHandle: aws.String("rh-1"),
		Attributes: map[string]string{
			"ApproximateReceiveCount": "3",
			"SentTimestamp":           "1700000000000",
		},
	}}}}
	q := NewSQS(fake, "https://sqs.local/q", 0, time.Second)

	msg, err := q.ReceiveOne(context.Background(), 45*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.MessageID != "m-1" || msg.ReceiptHandle != "rh-1" || msg.ReceiveCount != 3 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.SentAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("SentAt = %v", msg.SentAt)
	}
	if fake.receiveIn.MaxNumberOfMessages != 1 || fake.receiveIn.VisibilityTimeout != 45 {
		t.Errorf("receive input = %+v", fake.receiveIn)
	}
}

func TestSQS_ReceiveEmpty(t *testing.T) {
	q := NewSQS(&fakeSQS{}, "q", 0, time.Second)
	msg, err := q.ReceiveOne(context.Background(), time.Second)
	if err != nil || msg != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", msg, err)
	}
}

func TestSQS_ReceiveMissingAttributesDefaultsCount(t *testing.T) {
	fake := &fakeSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId: aws.String("m"), ReceiptHandle: aws.String("rh"), Body: aws.String("{}"),
	}}}}
	msg, err := NewSQS(fake, "q", 0, time.Second).ReceiveOne(context.Background(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ReceiveCount != 1 || !msg.SentAt.IsZero() {
		t.Fatalf("unexpected defaults %+v", msg)
	}
}

func TestSQS_DeleteInvalidReceipt(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"receipt handle is invalid", &types.ReceiptHandleIsInvalid{Message: aws.String("bad")}},
		{"expired receipt", &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "Value rh for parameter ReceiptHandle is invalid. Reason: The receipt handle has expired."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewSQS(&fakeSQS{deleteErr: tt.err}, "q", 0, time.Second)
			err := q.Delete(context.Background(), "rh")
			if !errors.Is(err, ErrReceiptExpired) {
				t.Fatalf("got %v, want ErrReceiptExpired", err)
			}
		})
	}
}

func TestSQS_DeleteOtherError(t *testing.T) {
	boom := errors.New("throttled")
	q := NewSQS(&fakeSQS{deleteErr: boom}, "q", 0, time.Second)
	err := q.Delete(context.Background(), "rh")
	if errors.Is(err, ErrReceiptExpired) || !errors.Is(err, boom) {
		t.Fatalf("unexpected classification: %v", err)
	}
}

func TestSQS_ExtendVisibility(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQS(fake, "q", 0, time.Second)
	if err := q.ExtendVisibility(context.Background(), "rh", 45*time.Second); err != nil {
		t.Fatal(err)
	}
	if fake.changeIn.VisibilityTimeout != 45 || aws.ToString(fake.changeIn.ReceiptHandle) != "rh" {
		t.Fatalf("change input = %+v", fake.changeIn)
	}

	fake.changeErr = &types.MessageNotInflight{}
	if err := q.ExtendVisibility(context.Background(), "rh", time.Second); !errors.Is(err, ErrReceiptExpired) {
		t.Fatalf("got %v, want ErrReceiptExpired", err)
	}
}
