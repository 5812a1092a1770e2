package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 8 << 20

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrInvalidJSON      = errors.New("invalid JSON payload")
)

var tracer = otel.Tracer("carbon_dashboard/fetcher")

// Client issues GET requests against upstream REST APIs and hands back the
// raw payload as a gjson document, leaving the schema to the caller.
type Client struct {
	http *http.Client
}

// NewClient creates a Client whose requests give up after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// FetchJSON requests endpoint with params appended to its query string.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	ctx, span := tracer.Start(ctx, "GET "+u.Host)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.host", u.Host),
		attribute.String("http.path", u.Path),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return gjson.Result{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return gjson.Result{}, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, u.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		span.RecordError(err)
		return gjson.Result{}, fmt.Errorf("read body from %s: %w", u.Host, err)
	}
	if !gjson.ValidBytes(body) {
		span.SetStatus(codes.Error, "invalid json")
		return gjson.Result{}, fmt.Errorf("%w from %s", ErrInvalidJSON, u.Host)
	}
	return gjson.ParseBytes(body), nil
}
