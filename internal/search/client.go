// Package search talks to the OpenSearch domain holding the category index.
package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
	"github.com/notifyhub/suggestion-worker/internal/logging"
)

const errorExcerptBytes = 200

// Config describes the index and how to reach it.
type Config struct {
	Endpoint       string
	Index          string
	IDField        string
	CategoryField  string
	Region         string
	SigningService string

	ConnectTimeout time.Duration
	Timeout        time.Duration
	BulkTimeout    time.Duration

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client samples record ids by category. Every request is signed afresh with
// the current credentials; no session is held between calls.
type Client struct {
	cfg     Config
	http    *http.Client
	creds   aws.CredentialsProvider
	signer  *v4.Signer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New builds a Client. A nil creds provider sends unsigned requests, which is
// what a local OpenSearch container expects.
func New(cfg Config, creds aws.CredentialsProvider, logger *zap.Logger) *Client {
	if cfg.BulkTimeout == 0 {
		cfg.BulkTimeout = time.Minute
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		creds:  creds,
		signer: v4.NewSigner(),
		logger: logger.Named("search"),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "opensearch",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

type sampleQuery struct {
	Size   int            `json:"size"`
	Query  map[string]any `json:"query"`
	Source []string       `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SampleByCategory returns up to count ids whose category field holds
// category, in the random order the index scored them. Zero hits is not an
// error; the caller decides what an empty sample means.
func (c *Client) SampleByCategory(ctx context.Context, category string, count int) ([]domain.RecordID, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	op := "search " + c.cfg.Index

	body, err := json.Marshal(sampleQuery{
		Size: count,
		Query: map[string]any{
			"function_score": map[string]any{
				"query":        map[string]any{"term": map[string]any{c.cfg.CategoryField: category}},
				"random_score": map[string]any{},
			},
		},
		Source: []string{c.cfg.IDField, c.cfg.CategoryField},
	})
	if err != nil {
		return nil, domain.IndexTransportError(op, fmt.Errorf("marshal query: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := c.guarded(ctx, http.MethodPost, "/"+c.cfg.Index+"/_search", "application/json", body)
	if err != nil {
		return nil, domain.IndexTransportError(op, err)
	}

	var res searchResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, domain.IndexTransportError(op, fmt.Errorf("decode response: %w", err))
	}

	ids := make([]domain.RecordID, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		if id, ok := idFromSource(h.Source, c.cfg.IDField); ok {
			ids = append(ids, id)
		}
	}

	c.logger.Debug("index sampled",
		zap.String("category", category),
		zap.Int("size", count),
		zap.Int64("total", parseTotal(res.Hits.Total)),
		zap.Int("hits", len(res.Hits.Hits)),
		zap.Int("ids", len(ids)),
	)
	return ids, nil
}

func idFromSource(src map[string]any, field string) (domain.RecordID, bool) {
	switch v := src[field].(type) {
	case string:
		if v == "" {
			return "", false
		}
		return domain.RecordID(v), true
	case float64:
		return domain.RecordID(fmt.Sprintf("%.0f", v)), true
	default:
		return "", false
	}
}

// parseTotal accepts both the legacy integer and the {"value": n} form.
func parseTotal(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	return 0
}

// StatusError is a non-2xx answer from the index.
type StatusError struct {
	Status  int
	Excerpt string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opensearch status %d: %s", e.Status, e.Excerpt)
}

// guarded runs do through the circuit breaker. Only transport failures and
// 5xx answers count against the breaker.
func (c *Client) guarded(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var statusErr *StatusError
	out, err := c.breaker.Execute(func() (interface{}, error) {
		raw, err := c.do(ctx, method, path, contentType, body)
		if errors.As(err, &statusErr) && statusErr.Status < 500 {
			return nil, nil
		}
		return raw, err
	})
	if err != nil {
		return nil, err
	}
	if statusErr != nil {
		return nil, statusErr
	}
	raw, _ := out.([]byte)
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	if err := c.sign(ctx, req, body); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Excerpt: logging.Truncate(string(raw), errorExcerptBytes)}
	}
	return raw, nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, body []byte) error {
	if c.creds == nil {
		return nil
	}
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), c.cfg.SigningService, c.cfg.Region, time.Now()); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	return nil
}
