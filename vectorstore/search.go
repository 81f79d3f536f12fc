package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/smallnest/alloydbpg/log"
)

// inlineEmbedder is implemented by embedders that can render the query
// embedding as a SQL expression evaluated inside the database.
type inlineEmbedder interface {
	QueryInlineSQL(text string) string
}

// SearchResult pairs a document with its raw distance to the query.
type SearchResult struct {
	Document schema.Document
	Distance float64
}

// SimilaritySearch returns the numDocuments closest documents to the query.
// A vectorstores.WithScoreThreshold option drops documents whose relevance
// score falls below the threshold; vectorstores.WithFilters accepts a SQL
// predicate string appended as a WHERE clause.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	filter, err := filterClause(opts.Filters)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	if inline, ok := s.pickEmbedder(opts).(inlineEmbedder); ok {
		results, err = s.queryInline(ctx, inline.QueryInlineSQL(query), numDocuments, filter)
	} else {
		var embedding []float32
		embedding, err = s.pickEmbedder(opts).EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		results, err = s.queryVector(ctx, embedding, numDocuments, filter)
	}
	if err != nil {
		return nil, err
	}
	return s.toDocuments(results, opts.ScoreThreshold)
}

// SimilaritySearchByVector returns the k closest documents to the embedding.
func (s *Store) SimilaritySearchByVector(ctx context.Context, embedding []float32, k int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	filter, err := filterClause(opts.Filters)
	if err != nil {
		return nil, err
	}
	results, err := s.queryVector(ctx, embedding, k, filter)
	if err != nil {
		return nil, err
	}
	return s.toDocuments(results, opts.ScoreThreshold)
}

// SimilaritySearchWithScores returns the k closest documents with their raw
// distances.
func (s *Store) SimilaritySearchWithScores(ctx context.Context, query string, k int, options ...vectorstores.Option) ([]SearchResult, error) {
	opts := applyOptions(options)
	filter, err := filterClause(opts.Filters)
	if err != nil {
		return nil, err
	}
	embedding, err := s.pickEmbedder(opts).EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.queryVector(ctx, embedding, k, filter)
}

// MaxMarginalRelevanceSearch returns k documents selected for a balance of
// query relevance and mutual diversity. FetchK candidates are retrieved and
// re-ranked client side.
func (s *Store) MaxMarginalRelevanceSearch(ctx context.Context, query string, k int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	filter, err := filterClause(opts.Filters)
	if err != nil {
		return nil, err
	}

	embedding, err := s.pickEmbedder(opts).EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := s.queryVectorWithEmbeddings(ctx, embedding, s.fetchK, filter)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.embedding
	}
	selected := maximalMarginalRelevance(embedding, vectors, k, s.lambdaMult)

	docs := make([]schema.Document, 0, len(selected))
	for _, idx := range selected {
		docs = append(docs, candidates[idx].result.Document)
	}
	return docs, nil
}

type candidate struct {
	result    SearchResult
	embedding []float32
}

func (s *Store) queryVector(ctx context.Context, embedding []float32, k int, filter string) ([]SearchResult, error) {
	candidates, err := s.query(ctx, vectorExpr{vector: embedding}, k, filter)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results, nil
}

func (s *Store) queryInline(ctx context.Context, embeddingSQL string, k int, filter string) ([]SearchResult, error) {
	candidates, err := s.query(ctx, vectorExpr{sql: embeddingSQL}, k, filter)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results, nil
}

func (s *Store) queryVectorWithEmbeddings(ctx context.Context, embedding []float32, k int, filter string) ([]candidate, error) {
	return s.query(ctx, vectorExpr{vector: embedding}, k, filter)
}

// vectorExpr is either a client-side vector bound as $1 or a SQL expression
// computing the embedding in the database.
type vectorExpr struct {
	vector []float32
	sql    string
}

func (s *Store) query(ctx context.Context, expr vectorExpr, k int, filter string) ([]candidate, error) {
	if k <= 0 {
		k = s.k
	}

	columns := []string{s.idColumn, s.contentColumn, s.embeddingColumn}
	columns = append(columns, s.metadataColumns...)
	if s.metadataJSONColumn != "" {
		columns = append(columns, s.metadataJSONColumn)
	}
	quoted := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = fmt.Sprintf("%q", name)
	}

	embeddingRef := "$1"
	var args []any
	if expr.sql != "" {
		embeddingRef = expr.sql
	} else {
		args = append(args, pgvector.NewVector(expr.vector))
	}

	where := ""
	if filter != "" {
		where = " WHERE " + filter
	}

	stmt := fmt.Sprintf("SELECT %s, %s(%q, %s) AS distance FROM %q.%q%s ORDER BY %q %s %s LIMIT %d",
		strings.Join(quoted, ", "),
		s.distanceStrategy.SearchFunction, s.embeddingColumn, embeddingRef,
		s.schemaName, s.tableName, where,
		s.embeddingColumn, s.distanceStrategy.Operator, embeddingRef, k)

	rows, err := s.queryRows(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var candidates []candidate
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read search row: %w", err)
		}
		c, err := s.scanCandidate(fields, values)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search rows: %w", err)
	}
	return candidates, nil
}

// queryRows runs the search, wrapping it in a transaction when index query
// options need SET LOCAL.
func (s *Store) queryRows(ctx context.Context, stmt string, args ...any) (rowsCloser, error) {
	if len(s.indexQueryOptions) == 0 {
		return s.pool.Query(ctx, stmt, args...)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin search transaction: %w", err)
	}
	for _, opt := range s.indexQueryOptions {
		for _, setting := range opt.ParameterSettings() {
			if _, err := tx.Exec(ctx, "SET LOCAL "+setting); err != nil {
				_ = tx.Rollback(ctx)
				return nil, fmt.Errorf("failed to apply query option %q: %w", setting, err)
			}
		}
	}
	rows, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &txRows{Rows: rows, tx: tx, ctx: ctx}, nil
}

func (s *Store) scanCandidate(fields []pgFieldDescription, values []any) (candidate, error) {
	byName := make(map[string]any, len(values))
	for i, field := range fields {
		if i < len(values) {
			byName[string(field.Name)] = values[i]
		}
	}

	doc := schema.Document{Metadata: map[string]any{}}
	if content, ok := byName[s.contentColumn].(string); ok {
		doc.PageContent = content
	}
	if id, ok := byName[s.idColumn]; ok && id != nil {
		doc.Metadata[s.idColumn] = fmt.Sprintf("%v", id)
	}
	for _, name := range s.metadataColumns {
		if value, ok := byName[name]; ok && value != nil {
			doc.Metadata[name] = value
		}
	}
	if s.metadataJSONColumn != "" {
		mergeJSONMetadata(doc.Metadata, byName[s.metadataJSONColumn])
	}

	distance, err := toFloat64(byName["distance"])
	if err != nil {
		return candidate{}, err
	}

	embedding, err := parseVector(byName[s.embeddingColumn])
	if err != nil {
		return candidate{}, err
	}

	return candidate{
		result:    SearchResult{Document: doc, Distance: distance},
		embedding: embedding,
	}, nil
}

func (s *Store) toDocuments(results []SearchResult, threshold float32) ([]schema.Document, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("vectorstore: score threshold must be in [0, 1], got %v", threshold)
	}
	docs := make([]schema.Document, 0, len(results))
	for _, r := range results {
		score := s.relevanceScore(r.Distance)
		if threshold > 0 && score < float64(threshold) {
			continue
		}
		doc := r.Document
		doc.Score = float32(score)
		docs = append(docs, doc)
	}
	return docs, nil
}

// relevanceScore normalizes a raw distance into [0, 1], larger is more
// similar.
func (s *Store) relevanceScore(distance float64) float64 {
	switch s.distanceStrategy.SearchFunction {
	case CosineDistance.SearchFunction:
		return 1 - distance
	case InnerProduct.SearchFunction:
		if distance > 0 {
			return 1 - distance
		}
		return -distance
	default:
		return 1 - distance/math.Sqrt2
	}
}

func filterClause(filters any) (string, error) {
	switch f := filters.(type) {
	case nil:
		return "", nil
	case string:
		return f, nil
	default:
		return "", fmt.Errorf("vectorstore: unsupported filter type %T, expected a SQL predicate string", filters)
	}
}

func mergeJSONMetadata(metadata map[string]any, value any) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			metadata[key] = val
		}
	case []byte:
		decodeJSONMetadata(metadata, v)
	case string:
		decodeJSONMetadata(metadata, []byte(v))
	}
}

func decodeJSONMetadata(metadata map[string]any, raw []byte) {
	if len(raw) == 0 {
		return
	}
	extra := map[string]any{}
	if err := json.Unmarshal(raw, &extra); err != nil {
		log.Warn("failed to decode metadata JSON: %v", err)
		return
	}
	for key, val := range extra {
		metadata[key] = val
	}
}

// parseVector accepts the representations pgx hands back for a vector
// column.
func parseVector(value any) ([]float32, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case pgvector.Vector:
		return v.Slice(), nil
	case []float32:
		return v, nil
	case string:
		trimmed := strings.Trim(strings.TrimSpace(v), "[]")
		if trimmed == "" {
			return nil, nil
		}
		parts := strings.Split(trimmed, ",")
		vec := make([]float32, len(parts))
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
			if err != nil {
				return nil, fmt.Errorf("failed to parse embedding value %q: %w", part, err)
			}
			vec[i] = float32(f)
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("unsupported embedding column type %T", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported distance column type %T", value)
	}
}
