package vectorstore

import "fmt"

// DefaultIndexNameSuffix is appended to the table name when an index is
// created without an explicit name.
const DefaultIndexNameSuffix = "langchainvectorindex"

// DistanceStrategy binds together the operator, SQL distance function and
// index operator class for one vector distance metric.
type DistanceStrategy struct {
	// Operator is the pgvector comparison operator, e.g. "<=>".
	Operator string
	// SearchFunction is the SQL function returning the distance.
	SearchFunction string
	// IndexFunction is the operator class used when building an index.
	IndexFunction string
}

var (
	// Euclidean is L2 distance.
	Euclidean = DistanceStrategy{Operator: "<->", SearchFunction: "l2_distance", IndexFunction: "vector_l2_ops"}
	// CosineDistance is cosine distance, the default strategy.
	CosineDistance = DistanceStrategy{Operator: "<=>", SearchFunction: "cosine_distance", IndexFunction: "vector_cosine_ops"}
	// InnerProduct is negative inner product.
	InnerProduct = DistanceStrategy{Operator: "<#>", SearchFunction: "ip_distance", IndexFunction: "vector_ip_ops"}

	// ScaNN index operator classes use their own names.
	ScaNNEuclidean      = DistanceStrategy{Operator: "<->", SearchFunction: "l2_distance", IndexFunction: "l2"}
	ScaNNCosineDistance = DistanceStrategy{Operator: "<=>", SearchFunction: "cosine_distance", IndexFunction: "cosine"}
	ScaNNInnerProduct   = DistanceStrategy{Operator: "<#>", SearchFunction: "ip_distance", IndexFunction: "dot_product"}
)

// Index describes a vector index to create on the embedding column.
type Index interface {
	// IndexType is the access method name, e.g. "hnsw".
	IndexType() string
	// IndexOptions renders the WITH clause parameters.
	IndexOptions() string
	// Base returns the shared index attributes.
	Base() *BaseIndex
}

// BaseIndex holds attributes shared by every index type.
type BaseIndex struct {
	// Name overrides the generated "<table><suffix>" index name.
	Name string
	// DistanceStrategy defaults to CosineDistance.
	DistanceStrategy DistanceStrategy
	// PartialPredicate restricts the index with a WHERE clause.
	PartialPredicate string
}

func (b *BaseIndex) strategy() DistanceStrategy {
	if b.DistanceStrategy.Operator == "" {
		return CosineDistance
	}
	return b.DistanceStrategy
}

// HNSWIndex is a hierarchical navigable small world graph index.
type HNSWIndex struct {
	BaseIndex
	// M is the maximum connections per layer, default 16.
	M int
	// EfConstruction is the candidate list size used at build time,
	// default 64.
	EfConstruction int
}

func (i *HNSWIndex) IndexType() string { return "hnsw" }

func (i *HNSWIndex) IndexOptions() string {
	m, ef := i.M, i.EfConstruction
	if m == 0 {
		m = 16
	}
	if ef == 0 {
		ef = 64
	}
	return fmt.Sprintf("(m = %d, ef_construction = %d)", m, ef)
}

func (i *HNSWIndex) Base() *BaseIndex { return &i.BaseIndex }

// IVFFlatIndex is an inverted file index with flat quantization.
type IVFFlatIndex struct {
	BaseIndex
	// Lists is the number of inverted lists, default 100.
	Lists int
}

func (i *IVFFlatIndex) IndexType() string { return "ivfflat" }

func (i *IVFFlatIndex) IndexOptions() string {
	lists := i.Lists
	if lists == 0 {
		lists = 100
	}
	return fmt.Sprintf("(lists = %d)", lists)
}

func (i *IVFFlatIndex) Base() *BaseIndex { return &i.BaseIndex }

// IVFIndex is AlloyDB's inverted file index with scalar quantization.
type IVFIndex struct {
	BaseIndex
	// Lists is the number of inverted lists, default 100.
	Lists int
	// Quantizer defaults to "sq8". It is the only supported value.
	Quantizer string
}

func (i *IVFIndex) IndexType() string { return "ivf" }

func (i *IVFIndex) IndexOptions() string {
	lists := i.Lists
	if lists == 0 {
		lists = 100
	}
	quantizer := i.Quantizer
	if quantizer == "" {
		quantizer = "sq8"
	}
	return fmt.Sprintf("(lists = %d, quantizer = %s)", lists, quantizer)
}

func (i *IVFIndex) Base() *BaseIndex { return &i.BaseIndex }

// ScaNNIndex is AlloyDB's ScaNN tree index. Requires the alloydb_scann
// extension.
type ScaNNIndex struct {
	BaseIndex
	// NumLeaves is the number of tree leaves, default 5.
	NumLeaves int
	// Quantizer defaults to "sq8". It is the only supported value.
	Quantizer string
}

func (i *ScaNNIndex) IndexType() string { return "ScaNN" }

func (i *ScaNNIndex) IndexOptions() string {
	leaves := i.NumLeaves
	if leaves == 0 {
		leaves = 5
	}
	quantizer := i.Quantizer
	if quantizer == "" {
		quantizer = "sq8"
	}
	return fmt.Sprintf("(num_leaves = %d, quantizer = %s)", leaves, quantizer)
}

func (i *ScaNNIndex) Base() *BaseIndex { return &i.BaseIndex }

// ExactNearestNeighbor disables approximate search. Applying it drops any
// existing vector index so queries scan exhaustively.
type ExactNearestNeighbor struct {
	BaseIndex
}

func (i *ExactNearestNeighbor) IndexType() string { return "exactnearestneighbor" }

func (i *ExactNearestNeighbor) IndexOptions() string { return "" }

func (i *ExactNearestNeighbor) Base() *BaseIndex { return &i.BaseIndex }

// QueryOptions tune an index at query time. The settings are applied with
// SET LOCAL inside the search transaction.
type QueryOptions interface {
	// ParameterSettings returns "name = value" assignments.
	ParameterSettings() []string
}

// HNSWQueryOptions tunes hnsw index scans.
type HNSWQueryOptions struct {
	// EfSearch is the candidate list size, default 40.
	EfSearch int
}

func (o HNSWQueryOptions) ParameterSettings() []string {
	ef := o.EfSearch
	if ef == 0 {
		ef = 40
	}
	return []string{fmt.Sprintf("hnsw.ef_search = %d", ef)}
}

// IVFFlatQueryOptions tunes ivfflat index scans.
type IVFFlatQueryOptions struct {
	// Probes is the number of lists probed, default 1.
	Probes int
}

func (o IVFFlatQueryOptions) ParameterSettings() []string {
	probes := o.Probes
	if probes == 0 {
		probes = 1
	}
	return []string{fmt.Sprintf("ivfflat.probes = %d", probes)}
}

// IVFQueryOptions tunes ivf index scans.
type IVFQueryOptions struct {
	// Probes is the number of lists probed, default 1.
	Probes int
}

func (o IVFQueryOptions) ParameterSettings() []string {
	probes := o.Probes
	if probes == 0 {
		probes = 1
	}
	return []string{fmt.Sprintf("ivf.probes = %d", probes)}
}

// ScaNNQueryOptions tunes ScaNN index scans.
type ScaNNQueryOptions struct {
	// NumLeavesToSearch is the number of leaves probed, default 1.
	NumLeavesToSearch int
	// PreReorderingNumNeighbors is the candidate count before exact
	// re-ranking, default 50.
	PreReorderingNumNeighbors int
}

func (o ScaNNQueryOptions) ParameterSettings() []string {
	leaves := o.NumLeavesToSearch
	if leaves == 0 {
		leaves = 1
	}
	candidates := o.PreReorderingNumNeighbors
	if candidates == 0 {
		candidates = 50
	}
	return []string{
		fmt.Sprintf("scann.num_leaves_to_search = %d", leaves),
		fmt.Sprintf("scann.pre_reordering_num_neighbors = %d", candidates),
	}
}
