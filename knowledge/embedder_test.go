package knowledge

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicewise/slicewise/llm"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(128)
	a, err := e.Embed(context.Background(), []string{"tall thin vase with supports"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"tall thin vase with supports"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocalEmbedder_Normalized(t *testing.T) {
	e := NewLocalEmbedder(128)
	vecs, err := e.Embed(context.Background(), []string{"brim adhesion bed"})
	require.NoError(t, err)
	var norm float64
	for _, v := range vecs[0] {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestLocalEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewLocalEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"PLA material bed adhesion brim",
		"brim improves bed adhesion for PLA",
		"quaternion rotation matrix eigenvalue decomposition",
	})
	require.NoError(t, err)
	related := CosineSimilarity(vecs[0], vecs[1])
	unrelated := CosineSimilarity(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestCosineSimilarity_EdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-12)
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer ek", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// return vectors out of order to exercise index mapping
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	e := NewOpenAIEmbedder("ek", srv.URL, "text-embedding-3-small")
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vecs[0])
	assert.Equal(t, []float64{0, 1}, vecs[1])
}

func TestOpenAIEmbedder_MapsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	t.Cleanup(srv.Close)

	e := NewOpenAIEmbedder("bad", srv.URL, "")
	_, err := e.Embed(context.Background(), []string{"x"})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder("k", "http://unused.invalid", "")
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float64{0.25, -1.5, 3.14159, 0}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
