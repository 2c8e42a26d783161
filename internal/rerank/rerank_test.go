package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCohere(t *testing.T, handler http.HandlerFunc) *CohereReranker {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := NewCohereReranker(CohereConfig{APIKey: "co-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return r
}

func TestCohereReranker_Rerank(t *testing.T) {
	r := newCohere(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/rerank", req.URL.Path)
		assert.Equal(t, "Bearer co-key", req.Header.Get("Authorization"))

		var body cohereRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "rerank-english-v3.0", body.Model)
		assert.Equal(t, "sky color", body.Query)
		assert.Equal(t, []string{"grass is green", "sky is blue", "sea is wide"}, body.Documents)
		assert.Equal(t, 2, body.TopN)

		w.Write([]byte(`{"id":"x","results":[{"index":1,"relevance_score":0.98},{"index":0,"relevance_score":0.12}]}`))
	})

	results, err := r.Rerank(context.Background(), "sky color",
		[]string{"grass is green", "sky is blue", "sea is wide"}, 2)

	require.NoError(t, err)
	assert.Equal(t, []Result{{Index: 1, RelevanceScore: 0.98}, {Index: 0, RelevanceScore: 0.12}}, results)
}

func TestCohereReranker_TopNClampedToDocuments(t *testing.T) {
	r := newCohere(t, func(w http.ResponseWriter, req *http.Request) {
		var body cohereRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, 1, body.TopN)

		w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.5}]}`))
	})

	results, err := r.Rerank(context.Background(), "q", []string{"only"}, 3)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestCohereReranker_NoDocuments(t *testing.T) {
	r := newCohere(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("no request expected")
	})

	_, err := r.Rerank(context.Background(), "q", nil, 3)

	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestCohereReranker_OutOfRangeIndex(t *testing.T) {
	r := newCohere(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.9}]}`))
	})

	_, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 2)

	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestCohereReranker_APIError(t *testing.T) {
	r := newCohere(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api token"}`))
	})

	_, err := r.Rerank(context.Background(), "q", []string{"a"}, 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api token")
	assert.Contains(t, err.Error(), "401")
}

func TestPassthrough(t *testing.T) {
	results, err := Passthrough{}.Rerank(context.Background(), "q", []string{"a", "b", "c", "d"}, 3)

	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.Greater(t, results[0].RelevanceScore, results[1].RelevanceScore)

	_, err = Passthrough{}.Rerank(context.Background(), "q", nil, 3)
	assert.ErrorIs(t, err, ErrNoDocuments)
}
