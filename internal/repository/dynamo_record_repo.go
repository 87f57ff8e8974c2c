package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

const (
	// dynamoBatchLimit is the BatchGetItem key limit per request.
	dynamoBatchLimit = 100
	// unprocessedRetries bounds the re-requests of UnprocessedKeys per chunk.
	unprocessedRetries = 3
)

// dynamoAPI is the subset of *dynamodb.Client the repository calls.
type dynamoAPI interface {
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	dynamodb.ScanAPIClient
}

// DynamoOptions configures a DynamoDB-backed repository.
type DynamoOptions struct {
	Table             string
	KeyName           string
	CategoryAttribute string
	Timeout           time.Duration
	// Backoff is the first wait before retrying unprocessed keys; it doubles per retry.
	Backoff time.Duration
}

// DynamoRecordRepository reads records from a DynamoDB table.
type DynamoRecordRepository struct {
	api    dynamoAPI
	opts   DynamoOptions
	logger *zap.Logger
}

// NewDynamoRecordRepository returns a repository reading table opts.Table.
// The returned value also implements CategoryScanner.
func NewDynamoRecordRepository(api dynamoAPI, opts DynamoOptions, logger *zap.Logger) *DynamoRecordRepository {
	if opts.Backoff == 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	return &DynamoRecordRepository{api: api, opts: opts, logger: logger.Named("dynamodb")}
}

func (r *DynamoRecordRepository) BatchGet(ctx context.Context, ids []domain.RecordID) (map[domain.RecordID]domain.Record, error) {
	out := make(map[domain.RecordID]domain.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	unique := dedupe(ids)
	for start := 0; start < len(unique); start += dynamoBatchLimit {
		end := min(start+dynamoBatchLimit, len(unique))
		if err := r.getChunk(ctx, unique[start:end], out); err != nil {
			return nil, domain.StoreTransportError("batch get "+r.opts.Table, err)
		}
	}
	return out, nil
}

func (r *DynamoRecordRepository) getChunk(ctx context.Context, ids []domain.RecordID, out map[domain.RecordID]domain.Record) error {
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = map[string]types.AttributeValue{
			r.opts.KeyName: &types.AttributeValueMemberS{Value: string(id)},
		}
	}
	request := map[string]types.KeysAndAttributes{
		r.opts.Table: {Keys: keys, ConsistentRead: aws.Bool(false)},
	}

	backoff := r.opts.Backoff
	for attempt := 0; ; attempt++ {
		resp, err := r.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("batch get item: %w", err)
		}
		for _, item := range resp.Responses[r.opts.Table] {
			rec := NormalizeItem(item)
			if id, ok := rec[r.opts.KeyName].(string); ok {
				out[domain.RecordID(id)] = rec
			}
		}

		pending, ok := resp.UnprocessedKeys[r.opts.Table]
		if !ok || len(pending.Keys) == 0 {
			return nil
		}
		if attempt == unprocessedRetries {
			return fmt.Errorf("%d keys still unprocessed after %d retries", len(pending.Keys), unprocessedRetries)
		}

		r.logger.Debug("retrying unprocessed keys",
			zap.Int("keys", len(pending.Keys)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		request = map[string]types.KeysAndAttributes{r.opts.Table: pending}
	}
}

func (r *DynamoRecordRepository) ScanCategories(ctx context.Context, fn func(domain.RecordID, []string) error) error {
	p := dynamodb.NewScanPaginator(r.api, &dynamodb.ScanInput{
		TableName:            aws.String(r.opts.Table),
		ProjectionExpression: aws.String("#id, #cat"),
		ExpressionAttributeNames: map[string]string{
			"#id":  r.opts.KeyName,
			"#cat": r.opts.CategoryAttribute,
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("scan %s: %w", r.opts.Table, err)
		}
		for _, item := range page.Items {
			id, _ := Normalize(item[r.opts.KeyName]).(string)
			if err := fn(domain.RecordID(id), stringValues(Normalize(item[r.opts.CategoryAttribute]))); err != nil {
				return err
			}
		}
	}
	return nil
}

var (
	_ RecordRepository = (*DynamoRecordRepository)(nil)
	_ CategoryScanner  = (*DynamoRecordRepository)(nil)
)
