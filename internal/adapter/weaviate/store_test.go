package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "coursemind/internal/adapter/weaviate"
	"coursemind/internal/text"
	"coursemind/internal/vector"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func handleMeta(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path == "/v1/meta" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"version": "1.19.0"}`))
		return true
	}
	return false
}

func TestStore_InsertBatch(t *testing.T) {
	var gotObjects []map[string]interface{}

	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		for _, o := range body["objects"].([]interface{}) {
			gotObjects = append(gotObjects, o.(map[string]interface{}))
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunks := []vector.Chunk{
		{
			Content:       "first chunk",
			SourceID:      "vid-1",
			SourceTitle:   "Intro",
			SourceType:    "video",
			SequenceIndex: 0,
			Position:      text.Position{TimestampStart: "00:00:01", TimestampEnd: "00:00:30"},
			Vector:        []float32{0.1, 0.2},
		},
		{
			Content:       "second chunk",
			SourceID:      "vid-1",
			SourceTitle:   "Intro",
			SourceType:    "video",
			SequenceIndex: 1,
			Vector:        []float32{0.3, 0.4},
		},
	}

	err := store.InsertBatch(context.Background(), chunks)
	assert.NoError(t, err)
	assert.Len(t, gotObjects, 2)

	props := gotObjects[0]["properties"].(map[string]interface{})
	assert.Equal(t, "first chunk", props["content"])
	assert.Equal(t, "vid-1", props["sourceId"])
	assert.Equal(t, "00:00:01", props["timestampStart"])

	// Deterministic IDs: the same (sourceId, sequenceIndex) always maps to
	// the same object.
	assert.NotEmpty(t, gotObjects[0]["id"])
	assert.NotEqual(t, gotObjects[0]["id"], gotObjects[1]["id"])
}

func TestStore_InsertBatch_DeterministicIDs(t *testing.T) {
	var ids [][]interface{}

	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		var batch []interface{}
		for _, o := range body["objects"].([]interface{}) {
			batch = append(batch, o.(map[string]interface{})["id"])
		}
		ids = append(ids, batch)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunk := []vector.Chunk{{Content: "c", SourceID: "vid-1", SequenceIndex: 3, Vector: []float32{0.1}}}

	assert.NoError(t, store.InsertBatch(context.Background(), chunk))
	assert.NoError(t, store.InsertBatch(context.Background(), chunk))
	assert.Equal(t, ids[0], ids[1])
}

func TestStore_InsertBatch_Empty(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		t.Fatal("no request expected for an empty batch")
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	assert.NoError(t, store.InsertBatch(context.Background(), nil))
}

func TestStore_Search(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{
							"content":        "found content",
							"sourceId":       "vid-1",
							"sourceTitle":    "Intro",
							"sourceType":     "video",
							"sequenceIndex":  2.0,
							"timestampStart": "00:01:00",
							"timestampEnd":   "00:01:30",
							"_additional": map[string]interface{}{
								"certainty": 0.95,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Search(context.Background(), []float32{0.1, 0.2}, 10, "")
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "found content", results[0].Content)
	assert.Equal(t, float32(0.95), results[0].Score)
	assert.Equal(t, "vid-1", results[0].SourceID)
	assert.Equal(t, 2, results[0].SequenceIndex)
	assert.Equal(t, "00:01:00", results[0].Position.TimestampStart)
}

func TestStore_Search_CertaintyAsString(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{
							"content": "c",
							"_additional": map[string]interface{}{
								"certainty": "0.42",
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Search(context.Background(), []float32{0.1}, 5, "")
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, float32(0.42), results[0].Score)
}

func TestStore_ChunksBySource(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{"content": "a", "sequenceIndex": 1.0},
						map[string]interface{}{"content": "b", "sequenceIndex": 2.0},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunks, err := store.ChunksBySource(context.Background(), "vid-1", 1, 3)
	assert.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].SequenceIndex)
	assert.Equal(t, 2, chunks[1].SequenceIndex)
}

func TestStore_DeleteBySource(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeleteBySource(context.Background(), "vid-1")
	assert.NoError(t, err)
}

func TestStore_CountBySource(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if handleMeta(w, r) {
			return
		}
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{
								"count": 42.0,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountBySource(context.Background(), "vid-1")
	assert.NoError(t, err)
	assert.Equal(t, 42, count)
}
