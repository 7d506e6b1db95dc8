package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BigPharmacist/ChatApp/internal/http/response"
	"github.com/BigPharmacist/ChatApp/internal/platform/apierr"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
	"github.com/BigPharmacist/ChatApp/internal/platform/qdrant"
	"github.com/BigPharmacist/ChatApp/internal/rag/retrieval"
)

type RetrievalService interface {
	Index(ctx context.Context, collection string, docs []retrieval.Document) (int, error)
	Query(ctx context.Context, collection, query string, limit int, filter map[string]any) ([]retrieval.Result, error)
	Delete(ctx context.Context, collection string, ids []string, filter map[string]any) error
	DeleteCollection(ctx context.Context, collection string) error
	ListCollections(ctx context.Context) ([]string, error)
	CollectionInfo(ctx context.Context, collection string) (map[string]any, error)
	Health(ctx context.Context) (int, error)
	IndexDocument(ctx context.Context, collection string, doc retrieval.SourceDocument) (int, error)
	ReindexDocument(ctx context.Context, collection string, doc retrieval.SourceDocument) (int, error)
	ReindexAll(ctx context.Context, collection string, docs []retrieval.SourceDocument) (retrieval.ReindexReport, error)
}

type RAGHandler struct {
	log *logger.Logger
	rag RetrievalService
}

func NewRAGHandler(log *logger.Logger, rag RetrievalService) *RAGHandler {
	return &RAGHandler{log: log.With("handler", "RAGHandler"), rag: rag}
}

type indexRequest struct {
	Collection string               `json:"collection"`
	Documents  []retrieval.Document `json:"documents"`
}

type queryRequest struct {
	Collection string         `json:"collection"`
	Query      string         `json:"query"`
	Limit      int            `json:"limit"`
	Filter     map[string]any `json:"filter"`
}

type deleteRequest struct {
	Collection string         `json:"collection"`
	IDs        []string       `json:"ids"`
	Filter     map[string]any `json:"filter"`
}

type documentRequest struct {
	Collection string                   `json:"collection"`
	Document   retrieval.SourceDocument `json:"document"`
}

type reindexAllRequest struct {
	Collection string                     `json:"collection"`
	Documents  []retrieval.SourceDocument `json:"documents"`
}

// POST /index
func (h *RAGHandler) Index(c *gin.Context) {
	var req indexRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Collection) == "" || len(req.Documents) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("collection and documents are required"))
		return
	}
	n, err := h.rag.Index(c.Request.Context(), req.Collection, req.Documents)
	if err != nil {
		h.fail(c, "index_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "indexed": n, "collection": req.Collection})
}

// POST /query
func (h *RAGHandler) Query(c *gin.Context) {
	var req queryRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Collection) == "" || strings.TrimSpace(req.Query) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("collection and query are required"))
		return
	}
	results, err := h.rag.Query(c.Request.Context(), req.Collection, req.Query, req.Limit, req.Filter)
	if err != nil {
		h.fail(c, "query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

// POST /delete
func (h *RAGHandler) Delete(c *gin.Context) {
	var req deleteRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Collection) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("collection is required"))
		return
	}
	if err := h.rag.Delete(c.Request.Context(), req.Collection, req.IDs, req.Filter); err != nil {
		h.fail(c, "delete_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}

// DELETE /collections/:name
func (h *RAGHandler) DeleteCollection(c *gin.Context) {
	name := c.Param("name")
	if err := h.rag.DeleteCollection(c.Request.Context(), name); err != nil {
		h.fail(c, "delete_collection_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "deleted": name})
}

// GET /collections
func (h *RAGHandler) ListCollections(c *gin.Context) {
	names, err := h.rag.ListCollections(c.Request.Context())
	if err != nil {
		h.fail(c, "list_collections_failed", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.RespondOK(c, gin.H{"collections": names})
}

// GET /collections/:name
func (h *RAGHandler) CollectionInfo(c *gin.Context) {
	info, err := h.rag.CollectionInfo(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "collection_info_failed", err)
		return
	}
	response.RespondOK(c, info)
}

// POST /documents/index
func (h *RAGHandler) IndexDocument(c *gin.Context) {
	var req documentRequest
	if !bindJSON(c, &req) {
		return
	}
	collection := collectionOrDefault(req.Collection)
	n, err := h.rag.IndexDocument(c.Request.Context(), collection, req.Document)
	if err != nil {
		h.fail(c, "index_document_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "indexed": n, "collection": collection, "document_id": req.Document.ID})
}

// POST /documents/reindex
func (h *RAGHandler) ReindexDocument(c *gin.Context) {
	var req documentRequest
	if !bindJSON(c, &req) {
		return
	}
	collection := collectionOrDefault(req.Collection)
	n, err := h.rag.ReindexDocument(c.Request.Context(), collection, req.Document)
	if err != nil {
		h.fail(c, "reindex_document_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "indexed": n, "collection": collection, "document_id": req.Document.ID})
}

// POST /documents/reindex-all
func (h *RAGHandler) ReindexAll(c *gin.Context) {
	var req reindexAllRequest
	if !bindJSON(c, &req) {
		return
	}
	collection := collectionOrDefault(req.Collection)
	report, err := h.rag.ReindexAll(c.Request.Context(), collection, req.Documents)
	if err != nil {
		apiErr := classifyRAGError("reindex_failed", err)
		c.JSON(apiErr.Status, gin.H{"error": err.Error(), "code": apiErr.Code, "collection": collection, "report": report})
		return
	}
	response.RespondOK(c, gin.H{
		"success":    true,
		"collection": collection,
		"documents":  report.Documents,
		"chunks":     report.Chunks,
	})
}

func (h *RAGHandler) fail(c *gin.Context, code string, err error) {
	apiErr := classifyRAGError(code, err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.Error("RAG request failed", "path", c.FullPath(), "error", err)
	}
	response.RespondAPIError(c, apiErr, http.StatusInternalServerError)
}

// classifyRAGError maps retrieval and store failures onto HTTP statuses;
// anything unrecognised is a 500 under fallbackCode.
func classifyRAGError(fallbackCode string, err error) *apierr.Error {
	switch {
	case errors.Is(err, retrieval.ErrInvalidArgument), errors.Is(err, qdrant.ErrInvalidArgument):
		return apierr.BadRequest("invalid_request", err)
	case errors.Is(err, qdrant.ErrCollectionNotFound):
		return apierr.NotFound("collection_not_found", errors.New("Collection not found"))
	case errors.Is(err, openai.ErrMissingAPIKey):
		return apierr.Internal("not_configured", err)
	}
	return apierr.Internal(fallbackCode, err)
}

func collectionOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return retrieval.DefaultCollection
	}
	return name
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}
