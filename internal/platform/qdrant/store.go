package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

// PayloadOriginalIDKey holds the caller's id for a point; the store assigns
// its own UUID on every upsert.
const PayloadOriginalIDKey = "original_id"

type Point struct {
	OriginalID string
	Vector     []float32
	Payload    map[string]any
}

type SearchHit struct {
	ID         string
	OriginalID string
	Score      float64
	Payload    map[string]any
}

// VectorStore is the contract the retrieval service relies on.
type VectorStore interface {
	// CollectionExists reports false on any failure.
	CollectionExists(ctx context.Context, name string) bool
	// EnsureCollection creates name with cosine distance when it is missing.
	// The dimension of an existing collection is not checked.
	EnsureCollection(ctx context.Context, name string, dim int) error
	// Upsert writes points under freshly generated ids and returns them in input order.
	Upsert(ctx context.Context, collection string, points []Point) ([]string, error)
	Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any) ([]SearchHit, error)
	// DeletePoints takes store ids or a filter, exactly one of them.
	DeletePoints(ctx context.Context, collection string, ids []string, filter map[string]any) error
	// DeleteCollection treats a missing collection as success.
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, name string) (map[string]any, error)
	Health(ctx context.Context) error
}

type vectorStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
	creating singleflight.Group
	newID    func() string
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	distance := strings.TrimSpace(cfg.Distance)
	if distance == "" {
		distance = DefaultDistance
	}
	s := &vectorStore{
		log:      log.With("service", "QdrantVectorStore"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		distance: distance,
		http:     &http.Client{Timeout: cfg.Timeout},
		newID:    func() string { return uuid.NewString() },
	}
	s.log.Info("Qdrant vector store configured", "url", s.baseURL, "distance", s.distance, "timeout", cfg.Timeout.String())
	return s, nil
}

func (s *vectorStore) CollectionExists(ctx context.Context, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if err := s.doJSON(ctx, "collection_exists", name, http.MethodGet, collectionPath(name, ""), nil, nil); err != nil {
		var se *StoreError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			s.log.Debug("Collection existence probe failed", "collection", name, "error", err)
		}
		return false
	}
	return true
}

func (s *vectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	const op = "ensure_collection"
	if strings.TrimSpace(name) == "" {
		return invalidArg(op, "collection name is required")
	}
	if dim <= 0 {
		return invalidArg(op, "vector dimension must be positive, got %d", dim)
	}
	_, err, _ := s.creating.Do(name, func() (any, error) {
		if s.CollectionExists(ctx, name) {
			return nil, nil
		}
		body := map[string]any{
			"vectors": map[string]any{"size": dim, "distance": s.distance},
		}
		err := s.doJSON(ctx, op, name, http.MethodPut, collectionPath(name, ""), body, nil)
		var se *StoreError
		if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("Created collection", "collection", name, "vector_dim", dim, "distance", s.distance)
		return nil, nil
	})
	return err
}

func (s *vectorStore) Upsert(ctx context.Context, collection string, points []Point) ([]string, error) {
	const op = "upsert"
	if strings.TrimSpace(collection) == "" {
		return nil, invalidArg(op, "collection name is required")
	}
	if len(points) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(points))
	wire := make([]map[string]any, 0, len(points))
	for i, p := range points {
		if len(p.Vector) == 0 {
			return nil, invalidArg(op, "point %d (%q) has an empty vector", i, p.OriginalID)
		}
		payload := clonePayload(p.Payload)
		payload[PayloadOriginalIDKey] = p.OriginalID
		id := s.newID()
		ids = append(ids, id)
		wire = append(wire, map[string]any{"id": id, "vector": p.Vector, "payload": payload})
	}
	req := map[string]any{"points": wire}
	if err := s.doJSON(ctx, op, collection, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

type searchResultItem struct {
	ID      jsonID         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *vectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any) ([]SearchHit, error) {
	const op = "search"
	if strings.TrimSpace(collection) == "" {
		return nil, invalidArg(op, "collection name is required")
	}
	if len(vector) == 0 {
		return nil, invalidArg(op, "query vector is required")
	}
	if limit <= 0 {
		return nil, invalidArg(op, "limit must be positive, got %d", limit)
	}
	nativeFilter, err := BuildFilter(filter)
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) && se.Code == StoreErrorUnsupportedFilter {
			s.log.Warn("Search filter unsupported", "collection", collection, "error", err)
		}
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if nativeFilter != nil {
		req["filter"] = nativeFilter
	}
	var raw []searchResultItem
	if err := s.doJSON(ctx, op, collection, http.MethodPost, collectionPath(collection, "/points/search"), req, &raw); err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(raw))
	for _, item := range raw {
		payload := item.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		original, _ := payload[PayloadOriginalIDKey].(string)
		hits = append(hits, SearchHit{
			ID:         string(item.ID),
			OriginalID: original,
			Score:      item.Score,
			Payload:    payload,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

func (s *vectorStore) DeletePoints(ctx context.Context, collection string, ids []string, filter map[string]any) error {
	const op = "delete_points"
	if strings.TrimSpace(collection) == "" {
		return invalidArg(op, "collection name is required")
	}
	hasIDs, hasFilter := len(ids) > 0, len(filter) > 0
	switch {
	case !hasIDs && !hasFilter:
		return invalidArg(op, "either ids or filter must be provided")
	case hasIDs && hasFilter:
		return invalidArg(op, "ids and filter are mutually exclusive")
	}
	req := map[string]any{}
	if hasIDs {
		req["points"] = ids
	} else {
		nativeFilter, err := BuildFilter(filter)
		if err != nil {
			return err
		}
		req["filter"] = nativeFilter
	}
	return s.doJSON(ctx, op, collection, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
}

func (s *vectorStore) DeleteCollection(ctx context.Context, name string) error {
	const op = "delete_collection"
	if strings.TrimSpace(name) == "" {
		return invalidArg(op, "collection name is required")
	}
	err := s.doJSON(ctx, op, name, http.MethodDelete, collectionPath(name, ""), nil, nil)
	var se *StoreError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *vectorStore) ListCollections(ctx context.Context) ([]string, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.doJSON(ctx, "list_collections", "", http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Collections))
	for _, c := range result.Collections {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *vectorStore) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	const op = "collection_info"
	if strings.TrimSpace(name) == "" {
		return nil, invalidArg(op, "collection name is required")
	}
	var info map[string]any
	err := s.doJSON(ctx, op, name, http.MethodGet, collectionPath(name, ""), nil, &info)
	var se *StoreError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		se.Cause = ErrCollectionNotFound
		return nil, se
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *vectorStore) Health(ctx context.Context) error {
	return s.doRaw(ctx, "health", http.MethodGet, "/readyz")
}

func collectionPath(name, suffix string) string {
	return "/collections/" + url.PathEscape(name) + suffix
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
