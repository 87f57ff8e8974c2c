package bootstrap

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/api/handler"
	"github.com/notifyhub/suggestion-worker/internal/config"
	"github.com/notifyhub/suggestion-worker/internal/notifier"
	"github.com/notifyhub/suggestion-worker/internal/queue"
)

func TestNewQueue(t *testing.T) {
	q := NewQueue(&config.Config{QueueBackend: config.QueueBackendMemory}, aws.Config{})
	assert.IsType(t, &queue.Memory{}, q)
	_, ok := q.(handler.Enqueuer)
	assert.True(t, ok, "memory queue must be reachable through the local enqueue route")

	q = NewQueue(&config.Config{QueueBackend: config.QueueBackendSQS, QueueURL: "https://sqs.local/q"}, aws.Config{Region: "us-east-1"})
	assert.IsType(t, &queue.SQS{}, q)
	_, ok = q.(handler.Enqueuer)
	assert.False(t, ok)
}

func TestNewNotifier(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}
	tests := []struct {
		backend string
		want    any
	}{
		{config.NotifierSES, &notifier.SESNotifier{}},
		{config.NotifierSNS, &notifier.SNSNotifier{}},
		{config.NotifierWebhook, &notifier.WebhookNotifier{}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			n, err := NewNotifier(&config.Config{Notifier: tt.backend}, awsCfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, n)
		})
	}

	_, err := NewNotifier(&config.Config{Notifier: "pigeon"}, awsCfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewLedger_Disabled(t *testing.T) {
	l, closeFn := NewLedger(context.Background(), &config.Config{}, zap.NewNop())
	assert.Nil(t, l)
	closeFn()
}
