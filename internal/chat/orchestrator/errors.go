package orchestrator

import (
	"errors"
	"fmt"

	"github.com/BigPharmacist/ChatApp/internal/platform/httpx"
)

var (
	ErrToolLoopExceeded   = errors.New("Maximum tool iterations reached")
	ErrNoAssistantMessage = errors.New("No response received from the model")
)

// UpstreamError is a non-2xx answer from the model provider.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Model API error (%d): %s", e.Status, httpx.Truncate(e.Body, 2048))
}

func (e *UpstreamError) HTTPStatusCode() int { return e.Status }
