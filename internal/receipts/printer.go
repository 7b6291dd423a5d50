package receipts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// Document is one rendered receipt handed to the printer service.
type Document struct {
	Kind string
	ID   string
	Body string
}

// Printer delivers rendered receipts.
type Printer interface {
	Print(ctx context.Context, doc Document) error
}

// NopPrinter discards receipts. It is used when printing is disabled.
type NopPrinter struct{}

func (NopPrinter) Print(context.Context, Document) error { return nil }

// HTTPPrinter posts receipts as text/plain to the printer service.
type HTTPPrinter struct {
	httpClient *http.Client
	endpoint   string
}

// Option configures optional client behavior.
type Option func(*HTTPPrinter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPPrinter) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewHTTPPrinter builds a printer client for endpoint.
func NewHTTPPrinter(endpoint string, timeout time.Duration, opts ...Option) (*HTTPPrinter, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("receipt printer url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &HTTPPrinter{
		endpoint:   trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *HTTPPrinter) Print(ctx context.Context, doc Document) error {
	if p == nil {
		return pkgerrors.New(pkgerrors.CodeExternalService, "receipt printer not configured")
	}
	url := fmt.Sprintf("%s/receipts/%s", p.endpoint, doc.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(doc.Body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "build receipt request")
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Receipt-ID", doc.ID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "send receipt to printer")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Newf(pkgerrors.CodeExternalService, "receipt printer returned %d", resp.StatusCode).
			WithDetails(map[string]any{
				"status": resp.StatusCode,
				"body":   strings.TrimSpace(string(body)),
			})
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
	return nil
}
