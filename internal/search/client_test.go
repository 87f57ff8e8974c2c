package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:        endpoint,
		Index:           "restaurants",
		IDField:         "business_id",
		CategoryField:   "CuisineSet",
		Region:          "us-east-1",
		SigningService:  "es",
		ConnectTimeout:  time.Second,
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}
}

func TestSampleByCategory_QueryAndIDs(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restaurants/_search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"hits":{"total":{"value":17,"relation":"eq"},"hits":[
			{"_source":{"business_id":"b-2","CuisineSet":["italian"]}},
			{"_source":{"CuisineSet":["italian"]}},
			{"_source":{"business_id":"b-1"}}
		]}}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil, zap.NewNop())
	ids, err := c.SampleByCategory(context.Background(), "  Italian ", 3)
	require.NoError(t, err)
	assert.Equal(t, []domain.RecordID{"b-2", "b-1"}, ids)

	assert.EqualValues(t, 3, got["size"])
	assert.Equal(t, []any{"business_id", "CuisineSet"}, got["_source"])
	fs := got["query"].(map[string]any)["function_score"].(map[string]any)
	assert.Equal(t, map[string]any{"CuisineSet": "italian"}, fs["query"].(map[string]any)["term"])
	assert.Equal(t, map[string]any{}, fs["random_score"])
}

func TestSampleByCategory_ZeroHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"hits":{"total":0,"hits":[]}}`)
	}))
	defer srv.Close()

	ids, err := New(testConfig(srv.URL), nil, zap.NewNop()).SampleByCategory(context.Background(), "klingon", 3)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSampleByCategory_ErrorStatusIsIndexTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, strings.Repeat("x", 1000))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL), nil, zap.NewNop()).SampleByCategory(context.Background(), "thai", 3)
	require.Error(t, err)
	assert.Equal(t, domain.KindIndexTransport, domain.KindOf(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.LessOrEqual(t, len(se.Excerpt), errorExcerptBytes+len("…"))
}

func TestSampleByCategory_TimeoutIsIndexTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		io.WriteString(w, `{"hits":{"total":0,"hits":[]}}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	start := time.Now()
	_, err := New(cfg, nil, zap.NewNop()).SampleByCategory(context.Background(), "italian", 3)

	require.Error(t, err)
	assert.Equal(t, domain.KindIndexTransport, domain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSampleByCategory_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil, zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := c.SampleByCategory(context.Background(), "thai", 3)
		require.Error(t, err)
	}

	_, err := c.SampleByCategory(context.Background(), "thai", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, domain.KindIndexTransport, domain.KindOf(err))
	assert.EqualValues(t, 2, calls.Load())
}

func TestSampleByCategory_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil, zap.NewNop())
	for i := 0; i < 4; i++ {
		_, err := c.SampleByCategory(context.Background(), "thai", 3)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.EqualValues(t, 4, calls.Load())
}

func TestSampleByCategory_SignsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 "), auth)
		assert.Contains(t, auth, "/us-east-1/es/aws4_request")
		assert.NotEmpty(t, r.Header.Get("X-Amz-Date"))
		io.WriteString(w, `{"hits":{"hits":[]}}`)
	}))
	defer srv.Close()

	creds := credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", "")
	_, err := New(testConfig(srv.URL), creds, zap.NewNop()).SampleByCategory(context.Background(), "thai", 1)
	require.NoError(t, err)
}

func TestParseTotal(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{`12`, 12},
		{`{"value":7,"relation":"gte"}`, 7},
		{``, 0},
		{`"nope"`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTotal(json.RawMessage(tt.raw)))
		})
	}
}

func TestBulk(t *testing.T) {
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "wait_for", r.URL.Query().Get("refresh"))
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		lines = strings.Split(strings.TrimRight(string(body), "\n"), "\n")
		io.WriteString(w, `{"errors":false,"items":[]}`)
	}))
	defer srv.Close()

	n, err := New(testConfig(srv.URL), nil, zap.NewNop()).Bulk(context.Background(), []Document{
		{ID: "b-1", Source: map[string]any{"business_id": "b-1", "CuisineSet": []string{"thai"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"index":{"_index":"restaurants","_id":"b-1"}}`, lines[0])
	assert.JSONEq(t, `{"business_id":"b-1","CuisineSet":["thai"]}`, lines[1])
}

func TestBulk_ReportsItemErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors":true,"items":[{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL), nil, zap.NewNop()).Bulk(context.Background(), []Document{{ID: "x", Source: map[string]any{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}
