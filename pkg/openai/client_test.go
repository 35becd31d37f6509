package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
)

var since = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func TestCompletionUsage_Paginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/organization/usage/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-admin", r.Header.Get("Authorization"))
		assert.Equal(t, fmt.Sprint(since.Unix()), r.URL.Query().Get("start_time"))
		if r.URL.Query().Get("page") == "" {
			fmt.Fprint(w, `{"data":[{"results":[{"input_tokens":100,"output_tokens":50,"num_model_requests":3,"model":"gpt-4o"}]}],"has_more":true,"next_page":"p2"}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"results":[{"input_tokens":10,"output_tokens":5,"num_model_requests":1,"model":"gpt-4o-mini"},{"input_tokens":1,"output_tokens":1,"num_model_requests":1,"model":"gpt-4o"}]}],"has_more":false}`)
	}))
	defer srv.Close()

	u, err := NewClient("sk-admin", WithBaseURL(srv.URL)).CompletionUsage(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, int64(111), u.InputTokens)
	assert.Equal(t, int64(56), u.OutputTokens)
	assert.Equal(t, int64(5), u.Requests)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, u.Models)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organization/costs", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"results":[{"amount":{"value":1.25,"currency":"usd"}}]},{"results":[{"amount":{"value":0.10,"currency":"usd"}}]}],"has_more":false}`)
	}))
	defer srv.Close()

	total, err := NewClient("sk-admin", WithBaseURL(srv.URL)).Costs(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, "1.35", total.StringFixed(2))
}

func TestUsage_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key"}}`)
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL)).CompletionUsage(context.Background(), since)
	require.Error(t, err)
	assert.Equal(t, model.KindUnauthorized, resilience.Classify(err))
	assert.Contains(t, err.Error(), "openai: completion usage")
}
