package qdrant

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned before any request is sent.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCollectionNotFound is returned by CollectionInfo for a 404.
	ErrCollectionNotFound = errors.New("collection not found")
)

type StoreErrorCode string

const (
	StoreErrorValidation        StoreErrorCode = "validation_failed"
	StoreErrorUnsupportedFilter StoreErrorCode = "unsupported_filter"
	StoreErrorEncodeFailed      StoreErrorCode = "encode_failed"
	StoreErrorDecodeFailed      StoreErrorCode = "decode_failed"
	StoreErrorTransportFailed   StoreErrorCode = "transport_failed"
	StoreErrorTimeout           StoreErrorCode = "timeout"
	StoreErrorRequestFailed     StoreErrorCode = "request_failed"
)

// StoreError describes a failed vector store call. StatusCode and Message
// carry the store's HTTP status and raw response text when one was received.
type StoreError struct {
	Code       StoreErrorCode
	Operation  string
	Collection string
	StatusCode int
	Message    string
	Cause      error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "qdrant operation failed"
	}
	head := fmt.Sprintf("qdrant %s failed (code=%s status=%d", e.Operation, e.Code, e.StatusCode)
	if e.Collection != "" {
		head += fmt.Sprintf(" collection=%s", e.Collection)
	}
	head += ")"
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", head, e.Message, e.Cause)
	case e.Message != "":
		return head + ": " + e.Message
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", head, e.Cause)
	default:
		return head
	}
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// HTTPStatusCode exposes the upstream status to httpx retry classification.
func (e *StoreError) HTTPStatusCode() int { return e.StatusCode }

func storeErr(op, collection string, code StoreErrorCode, msg string, cause error) *StoreError {
	return &StoreError{Code: code, Operation: op, Collection: collection, Message: msg, Cause: cause}
}

func invalidArg(op, format string, args ...any) error {
	return fmt.Errorf("qdrant %s: %w: %s", op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}
