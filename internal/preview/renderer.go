// Package preview turns component source into an instrumented HTML document
// by way of an external render service, debouncing re-renders while the
// source is being typed.
package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Props are the context values sent along with the source.
type Props struct {
	VendorID   string `json:"vendorId"`
	VendorName string `json:"vendorName"`
}

// Renderer compiles component source to a complete HTML document.
type Renderer interface {
	Render(ctx context.Context, code string, props Props) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, code string, props Props) (string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, code string, props Props) (string, error) {
	return f(ctx, code, props)
}

type renderRequest struct {
	Code  string `json:"code"`
	Props Props  `json:"props"`
}

type renderResponse struct {
	Success bool   `json:"success"`
	HTML    string `json:"html"`
	Error   string `json:"error,omitempty"`
}

// maxResponseBytes bounds the rendered document size.
const maxResponseBytes = 8 << 20

// HTTPRenderer posts source to a render service over HTTP.
type HTTPRenderer struct {
	url    string
	client *http.Client
}

// NewHTTPRenderer creates a renderer for the service at url.
func NewHTTPRenderer(url string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, code string, props Props) (string, error) {
	body, err := json.Marshal(renderRequest{Code: code, Props: props})
	if err != nil {
		return "", apperrors.NewInternalError(apperrors.ErrCodeInternalError, "encode render request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewNetworkError(apperrors.ErrCodeRenderFailed, "build render request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", apperrors.NewNetworkError(apperrors.ErrCodeRenderFailed, "render service unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", apperrors.NewNetworkError(apperrors.ErrCodeRenderFailed, "read render response", err)
	}

	var out renderResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", apperrors.NewRenderError(apperrors.ErrCodeRenderFailed,
			fmt.Sprintf("render service returned %d", resp.StatusCode), err)
	}

	if !out.Success || out.HTML == "" {
		msg := out.Error
		if msg == "" {
			msg = "render service reported failure"
		}
		return "", apperrors.NewRenderError(apperrors.ErrCodeRenderFailed, msg, nil).
			WithContext("status", resp.StatusCode)
	}

	return out.HTML, nil
}
