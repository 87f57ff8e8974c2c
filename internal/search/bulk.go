package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/notifyhub/suggestion-worker/internal/logging"
)

// Document is one entry of a bulk index request.
type Document struct {
	ID     string
	Source map[string]any
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Bulk indexes docs in a single _bulk request and waits for the refresh so
// the documents are searchable when it returns. It bypasses the circuit
// breaker; only the seeder calls it.
func (c *Client) Bulk(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: c.cfg.Index, ID: d.ID}}); err != nil {
			return 0, fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(d.Source); err != nil {
			return 0, fmt.Errorf("encode document %s: %w", d.ID, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.BulkTimeout)
	defer cancel()

	raw, err := c.do(ctx, "POST", "/_bulk?refresh=wait_for", "application/x-ndjson", buf.Bytes())
	if err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}

	var res bulkResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	if res.Errors {
		return 0, fmt.Errorf("bulk index: %s", firstBulkError(res))
	}
	return len(docs), nil
}

func firstBulkError(res bulkResponse) string {
	for _, item := range res.Items {
		for _, result := range item {
			if result.Error != nil {
				return logging.Truncate(result.Error.Type+": "+result.Error.Reason, errorExcerptBytes)
			}
		}
	}
	return "response reported errors"
}
