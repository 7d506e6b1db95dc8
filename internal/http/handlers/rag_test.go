package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
	"github.com/BigPharmacist/ChatApp/internal/platform/qdrant"
	"github.com/BigPharmacist/ChatApp/internal/rag/retrieval"
)

func TestClassifyRAGError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", fmt.Errorf("wrap: %w", retrieval.ErrInvalidArgument), http.StatusBadRequest, "invalid_request"},
		{"store invalid", qdrant.ErrInvalidArgument, http.StatusBadRequest, "invalid_request"},
		{"missing collection", &qdrant.StoreError{Code: qdrant.StoreErrorRequestFailed, Cause: qdrant.ErrCollectionNotFound}, http.StatusNotFound, "collection_not_found"},
		{"missing key", fmt.Errorf("embed: %w", openai.ErrMissingAPIKey), http.StatusInternalServerError, "not_configured"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "query_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRAGError("query_failed", tc.err)
			if got.Status != tc.wantStatus || got.Code != tc.wantCode {
				t.Fatalf("want=%d/%s got=%d/%s", tc.wantStatus, tc.wantCode, got.Status, got.Code)
			}
		})
	}
}

func TestClassifyRAGErrorHidesStoreDetailOnNotFound(t *testing.T) {
	got := classifyRAGError("x", qdrant.ErrCollectionNotFound)
	if got.Error() != "Collection not found" {
		t.Fatalf("got=%q", got.Error())
	}
}
