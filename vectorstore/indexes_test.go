package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHNSWIndex_Defaults(t *testing.T) {
	idx := &HNSWIndex{}
	assert.Equal(t, "hnsw", idx.IndexType())
	assert.Equal(t, "(m = 16, ef_construction = 64)", idx.IndexOptions())
	assert.Equal(t, CosineDistance, idx.Base().strategy())
}

func TestHNSWIndex_Custom(t *testing.T) {
	idx := &HNSWIndex{M: 32, EfConstruction: 128}
	assert.Equal(t, "(m = 32, ef_construction = 128)", idx.IndexOptions())
}

func TestIVFFlatIndex(t *testing.T) {
	idx := &IVFFlatIndex{}
	assert.Equal(t, "ivfflat", idx.IndexType())
	assert.Equal(t, "(lists = 100)", idx.IndexOptions())

	idx.Lists = 200
	assert.Equal(t, "(lists = 200)", idx.IndexOptions())
}

func TestIVFIndex(t *testing.T) {
	idx := &IVFIndex{}
	assert.Equal(t, "ivf", idx.IndexType())
	assert.Equal(t, "(lists = 100, quantizer = sq8)", idx.IndexOptions())
}

func TestScaNNIndex(t *testing.T) {
	idx := &ScaNNIndex{NumLeaves: 10}
	assert.Equal(t, "ScaNN", idx.IndexType())
	assert.Equal(t, "(num_leaves = 10, quantizer = sq8)", idx.IndexOptions())
}

func TestQueryOptions(t *testing.T) {
	assert.Equal(t, []string{"hnsw.ef_search = 40"}, HNSWQueryOptions{}.ParameterSettings())
	assert.Equal(t, []string{"hnsw.ef_search = 100"}, HNSWQueryOptions{EfSearch: 100}.ParameterSettings())
	assert.Equal(t, []string{"ivfflat.probes = 1"}, IVFFlatQueryOptions{}.ParameterSettings())
	assert.Equal(t, []string{"ivf.probes = 5"}, IVFQueryOptions{Probes: 5}.ParameterSettings())
	assert.Equal(t,
		[]string{"scann.num_leaves_to_search = 1", "scann.pre_reordering_num_neighbors = 50"},
		ScaNNQueryOptions{}.ParameterSettings())
}

func TestDistanceStrategies(t *testing.T) {
	assert.Equal(t, "<=>", CosineDistance.Operator)
	assert.Equal(t, "cosine_distance", CosineDistance.SearchFunction)
	assert.Equal(t, "vector_cosine_ops", CosineDistance.IndexFunction)

	assert.Equal(t, "<->", Euclidean.Operator)
	assert.Equal(t, "<#>", InnerProduct.Operator)

	assert.Equal(t, "cosine", ScaNNCosineDistance.IndexFunction)
	assert.Equal(t, "dot_product", ScaNNInnerProduct.IndexFunction)
}
