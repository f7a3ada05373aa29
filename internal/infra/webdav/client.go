// Package webdav pushes and pulls backup payloads to a WebDAV
// collection (Nextcloud and friends), the remote sync target of the
// tracker.
package webdav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("webdav")

// Client talks to one WebDAV collection with basic auth. All calls go
// through the circuit breaker and retry policy; concurrent requests are
// capped by the bulkhead so a hung remote can't pile up goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a WebDAV client rooted at baseURL.
func NewClient(httpClient *http.Client, baseURL, username, password string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:     logger,
	}
}

// Enabled reports whether a remote endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

func (c *Client) do(ctx context.Context, method, name string, body []byte) ([]byte, int, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, name)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("webdav: request failed",
			zap.String("method", method),
			zap.String("name", name),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	c.logger.Debug("webdav: request done",
		zap.String("method", method),
		zap.String("name", name),
		zap.Int("status", resp.StatusCode),
	)
	return data, resp.StatusCode, nil
}

// Put uploads a backup object, creating the collection on first use.
func (c *Client) Put(ctx context.Context, name string, data []byte) error {
	ctx, span := tracer.Start(ctx, "WebDAV.Put")
	defer span.End()
	span.SetAttributes(attribute.String("webdav.object", name), attribute.Int("webdav.bytes", len(data)))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, status, err := c.do(ctx, http.MethodPut, name, data)
			if err != nil {
				return err
			}
			// Missing parent collection: create it and retry once.
			if status == http.StatusConflict {
				if _, _, err := c.do(ctx, "MKCOL", "", nil); err != nil {
					return err
				}
				_, status, err = c.do(ctx, http.MethodPut, name, data)
				if err != nil {
					return err
				}
			}
			if status < 200 || status >= 300 {
				return fmt.Errorf("webdav put returned status %d", status)
			}
			return nil
		})
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return &domain.ErrCircuitOpen{Service: "webdav"}
		}
		return &domain.ErrExternalService{Service: "webdav", Err: err}
	}
	return nil
}

// Get downloads a backup object.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "WebDAV.Get")
	defer span.End()
	span.SetAttributes(attribute.String("webdav.object", name))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var data []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, status, err := c.do(ctx, http.MethodGet, name, nil)
			if err != nil {
				return err
			}
			if status == http.StatusNotFound {
				return &domain.ErrNotFound{Resource: "backup", ID: name}
			}
			if status < 200 || status >= 300 {
				return fmt.Errorf("webdav get returned status %d", status)
			}
			data = body
			return nil
		})
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, err
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "webdav"}
		}
		return nil, &domain.ErrExternalService{Service: "webdav", Err: err}
	}
	return data, nil
}
