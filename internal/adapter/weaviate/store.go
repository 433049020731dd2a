package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"coursemind/internal/retrieval"
	"coursemind/internal/vector"
)

// hardSearchLimit caps the over-fetch so a large top_k cannot turn into an
// unbounded pull.
const hardSearchLimit = 200

// chunkNamespace seeds deterministic object IDs so re-inserting the same
// source chunk overwrites instead of duplicating.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("coursemind.chunk"))

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func chunkID(sourceID string, sequenceIndex int) strfmt.UUID {
	id := uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", sourceID, sequenceIndex)))
	return strfmt.UUID(id.String())
}

// InsertBatch writes chunks with their vectors in one batch call. Object IDs
// are derived from (sourceId, sequenceIndex), making the insert idempotent.
func (s *Store) InsertBatch(ctx context.Context, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(chunks))
	for _, c := range chunks {
		objects = append(objects, &models.Object{
			Class: vector.ClassName,
			ID:    chunkID(c.SourceID, c.SequenceIndex),
			Properties: map[string]interface{}{
				"content":        c.Content,
				"sourceId":       c.SourceID,
				"sourceTitle":    c.SourceTitle,
				"sourceType":     c.SourceType,
				"sequenceIndex":  c.SequenceIndex,
				"timestampStart": c.Position.TimestampStart,
				"timestampEnd":   c.Position.TimestampEnd,
				"pageNumber":     c.Position.PageNumber,
			},
			Vector: c.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search runs a nearVector query ranked by certainty. It over-fetches
// (top_k x 3, capped) so the confidence tiers downstream have enough
// candidates without a second round trip.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, sourceType string) ([]retrieval.SearchResult, error) {
	limit := topK * 3
	if limit > hardSearchLimit {
		limit = hardSearchLimit
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)

	query := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(chunkFields(true)...)

	if sourceType != "" {
		query = query.WithWhere(filters.Where().
			WithPath([]string{"sourceType"}).
			WithOperator(filters.Equal).
			WithValueString(sourceType))
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}
	return parseResults(res.Data), nil
}

// ChunksBySource returns the chunks of one source whose sequenceIndex lies in
// [fromSeq, toSeq], ordered by sequenceIndex.
func (s *Store) ChunksBySource(ctx context.Context, sourceID string, fromSeq, toSeq int) ([]retrieval.SearchResult, error) {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"sourceId"}).
				WithOperator(filters.Equal).
				WithValueString(sourceID),
			filters.Where().
				WithPath([]string{"sequenceIndex"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueInt(int64(fromSeq)),
			filters.Where().
				WithPath([]string{"sequenceIndex"}).
				WithOperator(filters.LessThanEqual).
				WithValueInt(int64(toSeq)),
		})

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithSort(graphql.Sort{Path: []string{"sequenceIndex"}, Order: graphql.Asc}).
		WithLimit(hardSearchLimit).
		WithFields(chunkFields(false)...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}
	return parseResults(res.Data), nil
}

func (s *Store) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"sourceId"}).
			WithOperator(filters.Equal).
			WithValueString(sourceID)).
		Do(ctx)
	return err
}

func (s *Store) CountBySource(ctx context.Context, sourceID string) (int, error) {
	where := filters.Where().
		WithPath([]string{"sourceId"}).
		WithOperator(filters.Equal).
		WithValueString(sourceID)

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if agg, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := agg[vector.ClassName].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

func chunkFields(withScore bool) []graphql.Field {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "sourceId"},
		{Name: "sourceTitle"},
		{Name: "sourceType"},
		{Name: "sequenceIndex"},
		{Name: "timestampStart"},
		{Name: "timestampEnd"},
		{Name: "pageNumber"},
	}
	if withScore {
		fields = append(fields, graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}})
	}
	return fields
}

func parseResults(data map[string]models.JSONObject) []retrieval.SearchResult {
	var results []retrieval.SearchResult

	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return results
	}
	rows, ok := get[vector.ClassName].([]interface{})
	if !ok {
		return results
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}

		var r retrieval.SearchResult
		if v, ok := props["content"].(string); ok {
			r.Content = v
		}
		if v, ok := props["sourceId"].(string); ok {
			r.SourceID = v
		}
		if v, ok := props["sourceTitle"].(string); ok {
			r.SourceTitle = v
		}
		if v, ok := props["sourceType"].(string); ok {
			r.SourceType = v
		}
		if v, ok := props["sequenceIndex"].(float64); ok {
			r.SequenceIndex = int(v)
		}
		if v, ok := props["timestampStart"].(string); ok {
			r.Position.TimestampStart = v
		}
		if v, ok := props["timestampEnd"].(string); ok {
			r.Position.TimestampEnd = v
		}
		if v, ok := props["pageNumber"].(float64); ok {
			r.Position.PageNumber = int(v)
		}

		// Certainty comes back as float64 or string depending on server
		// version.
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch score := additional["certainty"].(type) {
			case float64:
				r.Score = float32(score)
			case string:
				var f float64
				fmt.Sscanf(score, "%f", &f)
				r.Score = float32(f)
			}
		}

		results = append(results, r)
	}
	return results
}
