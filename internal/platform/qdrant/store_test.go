package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

func TestUpsertAssignsStoreIDsAndKeepsOriginalID(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/docs/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/docs/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "completed"}), nil
	})
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", seq)
	}

	meta := map[string]any{"content": "Berlin", "document_id": "d1"}
	ids, err := s.Upsert(context.Background(), "docs", []Point{
		{OriginalID: "d1_chunk_0", Vector: []float32{1, 2, 3}, Payload: meta},
		{OriginalID: "d1_chunk_1", Vector: []float32{4, 5, 6}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("ids: want two distinct ids got=%v", ids)
	}

	points, ok := captured["points"].([]any)
	if !ok || len(points) != 2 {
		t.Fatalf("points: want 2 got=%v", captured["points"])
	}
	first := points[0].(map[string]any)
	if first["id"] != ids[0] {
		t.Fatalf("point id: want=%q got=%v", ids[0], first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload[PayloadOriginalIDKey] != "d1_chunk_0" {
		t.Fatalf("original_id: want=%q got=%v", "d1_chunk_0", payload[PayloadOriginalIDKey])
	}
	if payload["content"] != "Berlin" {
		t.Fatalf("content: want=%q got=%v", "Berlin", payload["content"])
	}
	if _, mutated := meta[PayloadOriginalIDKey]; mutated {
		t.Fatalf("input payload mutated")
	}
}

func TestSearchDecodesHitsInScoreOrder(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/docs/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": "b", "score": 0.2, "payload": map[string]any{"content": "low", "original_id": "d2_chunk_0"}},
			{"id": 7, "score": 0.9, "payload": map[string]any{"content": "high", "original_id": "d1_chunk_0"}},
		}), nil
	})

	hits, err := s.Search(context.Background(), "docs", []float32{0.1, 0.2}, 5, map[string]any{"document_id": "d1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if captured["limit"] != float64(5) || captured["with_payload"] != true {
		t.Fatalf("request: got=%v", captured)
	}
	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter: want object got=%T", captured["filter"])
	}
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != "document_id" {
		t.Fatalf("filter key: got=%v", cond["key"])
	}
	if len(hits) != 2 || hits[0].ID != "7" || hits[0].OriginalID != "d1_chunk_0" {
		t.Fatalf("hits: got=%+v", hits)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("hits not ordered by score: %+v", hits)
	}
}

func TestSearchOmitsFilterWhenAbsent(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["filter"]; ok {
			t.Fatalf("filter must be omitted, got=%v", body["filter"])
		}
		return okResponse(t, []any{}), nil
	})
	if _, err := s.Search(context.Background(), "docs", []float32{1}, 1, nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestDeletePointsRequiresExactlyOneSelector(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected, got %s %s", r.Method, r.URL.Path)
		return nil, nil
	})
	ctx := context.Background()
	if err := s.DeletePoints(ctx, "docs", nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("neither: want ErrInvalidArgument got=%v", err)
	}
	err := s.DeletePoints(ctx, "docs", []string{"a"}, map[string]any{"document_id": "d1"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("both: want ErrInvalidArgument got=%v", err)
	}
}

func TestDeletePointsByFilter(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/docs/points/delete" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		return okResponse(t, map[string]any{"status": "completed"}), nil
	})
	native := MatchFilter("document_id", "d1")
	if err := s.DeletePoints(context.Background(), "docs", nil, native); err != nil {
		t.Fatalf("DeletePoints: %v", err)
	}
	if _, ok := captured["filter"].(map[string]any)["must"]; !ok {
		t.Fatalf("native filter not passed through: got=%v", captured)
	}
	if _, ok := captured["points"]; ok {
		t.Fatalf("points must be absent for filter delete")
	}
}

func TestDeleteCollectionIgnoresNotFound(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodDelete {
			t.Fatalf("method: got=%s", r.Method)
		}
		return statusResponse(http.StatusNotFound, `{"status":{"error":"Not found"}}`), nil
	})
	if err := s.DeleteCollection(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
}

func TestEnsureCollectionCreatesOnlyWhenMissing(t *testing.T) {
	var creates int32
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		switch r.Method {
		case http.MethodGet:
			if atomic.LoadInt32(&creates) > 0 {
				return okResponse(t, map[string]any{"status": "green"}), nil
			}
			return statusResponse(http.StatusNotFound, `{"status":{"error":"Not found"}}`), nil
		case http.MethodPut:
			atomic.AddInt32(&creates, 1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			vectors := body["vectors"].(map[string]any)
			if vectors["size"] != float64(3584) || vectors["distance"] != "Cosine" {
				t.Fatalf("vectors config: got=%v", vectors)
			}
			time.Sleep(10 * time.Millisecond)
			return okResponse(t, true), nil
		}
		t.Fatalf("unexpected %s", r.Method)
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.EnsureCollection(context.Background(), "docs", 3584); err != nil {
				t.Errorf("EnsureCollection: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&creates); got != 1 {
		t.Fatalf("creates: want=1 got=%d", got)
	}
	if err := s.EnsureCollection(context.Background(), "docs", 3584); err != nil {
		t.Fatalf("EnsureCollection existing: %v", err)
	}
	if got := atomic.LoadInt32(&creates); got != 1 {
		t.Fatalf("creates after existing: want=1 got=%d", got)
	}
}

func TestCollectionExistsNeverErrors(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})
	if s.CollectionExists(context.Background(), "docs") {
		t.Fatalf("CollectionExists: want=false on transport failure")
	}
}

func TestListCollectionsSorted(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		return okResponse(t, map[string]any{"collections": []map[string]any{{"name": "zeta"}, {"name": "global_documents"}}}), nil
	})
	names, err := s.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if strings.Join(names, ",") != "global_documents,zeta" {
		t.Fatalf("names: got=%v", names)
	}
}

func TestCollectionInfoNotFound(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return statusResponse(http.StatusNotFound, `{"status":{"error":"Collection missing"}}`), nil
	})
	_, err := s.CollectionInfo(context.Background(), "missing")
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("CollectionInfo: want ErrCollectionNotFound got=%v", err)
	}
}

func TestNon2xxSurfacesStoreError(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return statusResponse(http.StatusBadRequest, `{"status":{"error":"Wrong input: vector dimension error"}}`), nil
	})
	_, err := s.Search(context.Background(), "docs", []float32{1}, 3, nil)
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("want StoreError got=%T (%v)", err, err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Code != StoreErrorRequestFailed {
		t.Fatalf("store error: got=%+v", se)
	}
	if !strings.Contains(se.Message, "vector dimension error") {
		t.Fatalf("raw message not carried: %q", se.Message)
	}
}

func TestClassifyHTTPCallError(t *testing.T) {
	err := classifyHTTPCallError("search", "docs", context.DeadlineExceeded)
	var se *StoreError
	if !errors.As(err, &se) || se.Code != StoreErrorTimeout {
		t.Fatalf("deadline: want timeout got=%v", err)
	}
	err = classifyHTTPCallError("search", "docs", fmt.Errorf("boom"))
	if !errors.As(err, &se) || se.Code != StoreErrorTransportFailed {
		t.Fatalf("boom: want transport_failed got=%v", err)
	}
}

func TestHealthUsesReadyz(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/readyz" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		return statusResponse(http.StatusOK, "all shards are ready"), nil
	})
	if err := s.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("api-key") != "secret" {
			t.Fatalf("api-key header missing")
		}
		return okResponse(t, map[string]any{"collections": []any{}}), nil
	})
	s.cfg.APIKey = "secret"
	if _, err := s.ListCollections(context.Background()); err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
}

func newTestVectorStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *vectorStore {
	t.Helper()
	return &vectorStore{
		log:      newTestLogger(t),
		cfg:      Config{URL: "http://qdrant.local"},
		baseURL:  "http://qdrant.local",
		distance: DefaultDistance,
		http:     &http.Client{Transport: roundTripFunc(roundTrip)},
		newID:    func() string { return "11111111-1111-1111-1111-111111111111" },
	}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return statusResponse(http.StatusOK, string(raw))
}

func statusResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
