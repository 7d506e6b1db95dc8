// Package retrieval indexes documents into the vector store and answers
// similarity queries over them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/qdrant"
	"github.com/BigPharmacist/ChatApp/internal/rag/chunker"
)

const (
	DefaultLimit      = 5
	DefaultCollection = "global_documents"
)

var ErrInvalidArgument = errors.New("invalid argument")

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

type Service struct {
	log    *logger.Logger
	store  qdrant.VectorStore
	embed  Embedder
	cfg    Config
	tracer trace.Tracer
}

func NewService(log *logger.Logger, store qdrant.VectorStore, embed Embedder, cfg Config) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	return &Service{
		log:    log.With("service", "RetrievalService"),
		store:  store,
		embed:  embed,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/BigPharmacist/ChatApp/internal/rag/retrieval"),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Index embeds every document in one batch and upserts the result. Nothing is
// written when embedding fails. A failed upsert may still have landed points.
func (s *Service) Index(ctx context.Context, collection string, docs []Document) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.Index", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("documents", len(docs)),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(collection) == "" || len(docs) == 0 {
		return 0, invalid("collection and documents are required")
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return 0, invalid("document %d has no id", i)
		}
		texts[i] = d.Content
	}

	if err := s.store.EnsureCollection(ctx, collection, s.embed.Dimension()); err != nil {
		return 0, err
	}
	s.log.Info("Generating embeddings", "collection", collection, "documents", len(docs))
	vectors, err := s.embed.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	points := make([]qdrant.Point, len(docs))
	for i, d := range docs {
		payload := make(map[string]any, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			payload[k] = v
		}
		payload[payloadContentKey] = d.Content
		points[i] = qdrant.Point{OriginalID: d.ID, Vector: vectors[i], Payload: payload}
	}
	if _, err := s.store.Upsert(ctx, collection, points); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Query embeds queryText and returns the closest chunks, best first.
func (s *Service) Query(ctx context.Context, collection, queryText string, limit int, filter map[string]any) (results []Result, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.Query", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", limit),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(collection) == "" || strings.TrimSpace(queryText) == "" {
		return nil, invalid("collection and query are required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	vec, err := s.embed.EmbedOne(ctx, queryText)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Search(ctx, collection, vec, limit, filter)
	if err != nil {
		return nil, err
	}
	results = make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}
	return results, nil
}

func toResult(h qdrant.SearchHit) Result {
	id := h.OriginalID
	if id == "" {
		id = h.ID
	}
	content, _ := h.Payload[payloadContentKey].(string)
	meta := make(map[string]any, len(h.Payload))
	for k, v := range h.Payload {
		if k != payloadContentKey {
			meta[k] = v
		}
	}
	return Result{ID: id, Score: h.Score, Content: content, Metadata: meta}
}

// Delete removes chunks by their document chunk ids or by a payload filter.
// Store-generated point ids are never exposed, so ids are matched against
// the original_id payload field.
func (s *Service) Delete(ctx context.Context, collection string, ids []string, filter map[string]any) error {
	if strings.TrimSpace(collection) == "" {
		return invalid("collection is required")
	}
	switch {
	case len(ids) > 0 && len(filter) > 0:
		return invalid("ids and filter are mutually exclusive")
	case len(ids) > 0:
		filter = qdrant.MatchAnyFilter(qdrant.PayloadOriginalIDKey, ids)
	case len(filter) == 0:
		return invalid("either ids or filter must be provided")
	}
	return s.store.DeletePoints(ctx, collection, nil, filter)
}

func (s *Service) DeleteCollection(ctx context.Context, collection string) error {
	if strings.TrimSpace(collection) == "" {
		return invalid("collection is required")
	}
	return s.store.DeleteCollection(ctx, collection)
}

func (s *Service) ListCollections(ctx context.Context) ([]string, error) {
	return s.store.ListCollections(ctx)
}

func (s *Service) CollectionInfo(ctx context.Context, collection string) (map[string]any, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, invalid("collection is required")
	}
	return s.store.CollectionInfo(ctx, collection)
}

// Health checks store readiness and reports how many collections exist.
func (s *Service) Health(ctx context.Context) (int, error) {
	if err := s.store.Health(ctx); err != nil {
		return 0, err
	}
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// PrepareDocument chunks doc with the service's chunk settings.
func (s *Service) PrepareDocument(doc SourceDocument) []Document {
	return PrepareDocument(doc.Content, doc.ID, sourceMetadata(doc), s.cfg.ChunkSize, s.cfg.ChunkOverlap)
}

// IndexDocument chunks and indexes a whole document.
func (s *Service) IndexDocument(ctx context.Context, collection string, doc SourceDocument) (int, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return 0, invalid("document id is required")
	}
	chunks := s.PrepareDocument(doc)
	if len(chunks) == 0 {
		return 0, invalid("document %q has no content", doc.ID)
	}
	return s.Index(ctx, collection, chunks)
}

// ReindexDocument drops the document's chunks and indexes its current content.
// The two steps are not atomic; on failure the caller retries.
func (s *Service) ReindexDocument(ctx context.Context, collection string, doc SourceDocument) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.ReindexDocument", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("document_id", doc.ID),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(collection) == "" || strings.TrimSpace(doc.ID) == "" {
		return 0, invalid("collection and document id are required")
	}
	if s.store.CollectionExists(ctx, collection) {
		if err := s.store.DeletePoints(ctx, collection, nil, qdrant.MatchFilter(MetaDocumentID, doc.ID)); err != nil {
			return 0, err
		}
	}
	chunks := s.PrepareDocument(doc)
	if len(chunks) == 0 {
		s.log.Warn("Reindexed document has no content", "collection", collection, "document_id", doc.ID)
		return 0, nil
	}
	return s.Index(ctx, collection, chunks)
}

// ReindexAll drops the collection and indexes docs one after another. It
// stops at the first failure; the report says how far it got.
func (s *Service) ReindexAll(ctx context.Context, collection string, docs []SourceDocument) (report ReindexReport, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.ReindexAll", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("documents", len(docs)),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(collection) == "" {
		return report, invalid("collection is required")
	}
	if err := s.store.DeleteCollection(ctx, collection); err != nil {
		return report, err
	}
	if err := s.store.EnsureCollection(ctx, collection, s.embed.Dimension()); err != nil {
		return report, err
	}
	for _, doc := range docs {
		chunks := s.PrepareDocument(doc)
		if len(chunks) == 0 {
			continue
		}
		n, err := s.Index(ctx, collection, chunks)
		if err != nil {
			report.FailedID = doc.ID
			s.log.Error("Reindex stopped", "collection", collection, "document_id", doc.ID,
				"indexed_documents", report.Documents, "error", err)
			return report, err
		}
		report.Documents++
		report.Chunks += n
	}
	s.log.Info("Reindexed collection", "collection", collection, "documents", report.Documents, "chunks", report.Chunks)
	return report, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
