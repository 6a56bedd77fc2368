package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes caps how much of an embeddings response is read. A batch
// of 64 vectors at 3072 dimensions is well under 8 MiB of JSON.
const maxResponseBytes = 32 << 20

// apiResponse is a decoded backend response that may carry an error message.
type apiResponse interface {
	errorMessage() string
}

// postJSON sends in as a JSON POST to url and decodes the reply into out.
// A non-2xx status becomes a *StatusError carrying the backend's own message
// when the body has one.
func postJSON(ctx context.Context, hc *http.Client, backend, url string, header http.Header, in any, out apiResponse) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s embedder: marshal request: %w", backend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s embedder: create request: %w", backend, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s embedder: request failed: %w", backend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s embedder: read response: %w", backend, err)
	}

	decodeErr := json.Unmarshal(raw, out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Backend: backend, Code: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
		if decodeErr == nil {
			if msg := out.errorMessage(); msg != "" {
				se.Message = msg
			}
		}
		return se
	}
	if decodeErr != nil {
		return fmt.Errorf("%s embedder: decode response: %w", backend, decodeErr)
	}
	return nil
}

// getOK issues a GET and expects 200; used by readiness probes.
func getOK(ctx context.Context, hc *http.Client, backend, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s embedder: create request: %w", backend, err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s embedder: request failed: %w", backend, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Backend: backend, Code: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return nil
}

func orDefaultClient(hc *http.Client) *http.Client {
	if hc == nil {
		return &http.Client{}
	}
	return hc
}
