package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/BigPharmacist/ChatApp/internal/platform/ctxutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/httpx"
)

const maxErrorBodyBytes = 1024

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

// jsonID accepts both UUID strings and integer point ids.
type jsonID string

func (id *jsonID) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*id = jsonID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*id = jsonID(n.String())
	return nil
}

func (s *vectorStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
	return req, nil
}

func (s *vectorStore) doJSON(ctx context.Context, op, collection, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return storeErr(op, collection, StoreErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return storeErr(op, collection, StoreErrorTransportFailed, "build request failed", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, collection, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if readErr != nil {
		return storeErr(op, collection, StoreErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StoreError{
			Code:       StoreErrorRequestFailed,
			Operation:  op,
			Collection: collection,
			StatusCode: resp.StatusCode,
			Message:    httpx.Truncate(strings.TrimSpace(string(raw)), maxErrorBodyBytes),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return storeErr(op, collection, StoreErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if msg := parseEnvelopeStatus(env.Status); msg != "" {
		return &StoreError{
			Code:       StoreErrorRequestFailed,
			Operation:  op,
			Collection: collection,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return storeErr(op, collection, StoreErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

// doRaw is for endpoints that answer with plain text instead of the envelope.
func (s *vectorStore) doRaw(ctx context.Context, op, method, path string) error {
	req, err := s.newRequest(ctx, method, path, nil)
	if err != nil {
		return storeErr(op, "", StoreErrorTransportFailed, "build request failed", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "", err)
	}
	defer resp.Body.Close()
	raw := httpx.ReadBody(resp.Body, maxErrorBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StoreError{
			Code:       StoreErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}
	return nil
}

func classifyHTTPCallError(op, collection string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return storeErr(op, collection, StoreErrorTimeout, "qdrant request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return storeErr(op, collection, StoreErrorTimeout, "qdrant request timed out", err)
	}
	return storeErr(op, collection, StoreErrorTransportFailed, "qdrant request failed", err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.EqualFold(asString, "ok") || strings.EqualFold(asString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", asString)
	}
	var asObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && strings.TrimSpace(asObject.Error) != "" {
		return strings.TrimSpace(asObject.Error)
	}
	return "qdrant status=" + status
}
