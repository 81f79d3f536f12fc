package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestMaximalMarginalRelevance_PrefersDiversity(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},         // identical to the query
		{0.99, 0.01},   // nearly identical to the first candidate
		{0.5, 0.5},     // relevant but different direction
	}

	selected := maximalMarginalRelevance(query, candidates, 2, 0.5)
	assert.Equal(t, []int{0, 2}, selected)
}

func TestMaximalMarginalRelevance_PureRelevance(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.5, 0.5},
		{1, 0},
		{0.9, 0.1},
	}

	// lambda = 1 ignores diversity entirely
	selected := maximalMarginalRelevance(query, candidates, 3, 1)
	assert.Equal(t, []int{1, 2, 0}, selected)
}

func TestMaximalMarginalRelevance_Bounds(t *testing.T) {
	assert.Nil(t, maximalMarginalRelevance([]float32{1}, nil, 3, 0.5))
	assert.Nil(t, maximalMarginalRelevance([]float32{1}, [][]float32{{1}}, 0, 0.5))

	selected := maximalMarginalRelevance([]float32{1}, [][]float32{{1}, {2}}, 10, 0.5)
	assert.Len(t, selected, 2)
}
