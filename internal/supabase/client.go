// Package supabase talks to a Supabase project over PostgREST and the
// Storage API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx answer from the project.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

var ErrCircuitOpen = errors.New("supabase circuit open")

type Options struct {
	Name        string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
	HTTPClient  *http.Client
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
}

type response struct {
	status int
	body   []byte
}

func NewClient(baseURL, key string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	maxFailures := opts.MaxFailures
	cb := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    hc,
		breaker: cb,
	}
}

// Select runs GET on the query and decodes the row array into out.
func (c *Client) Select(ctx context.Context, q *Query, out any) error {
	return c.rest(ctx, http.MethodGet, q, nil, out)
}

// Update PATCHes every row matching q and decodes the written rows into out.
// An empty result means no row matched the filters.
func (c *Client) Update(ctx context.Context, q *Query, patch any, out any) error {
	return c.rest(ctx, http.MethodPatch, q, patch, out)
}

// Insert POSTs row (object or array) and decodes the written rows into out.
func (c *Client) Insert(ctx context.Context, table string, row any, out any) error {
	return c.rest(ctx, http.MethodPost, From(table), row, out)
}

func (c *Client) Delete(ctx context.Context, q *Query, out any) error {
	return c.rest(ctx, http.MethodDelete, q, nil, out)
}

func (c *Client) rest(ctx context.Context, method string, q *Query, body any, out any) error {
	path := "/rest/v1/" + q.Table()
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", q.Table(), err)
		}
		payload = b
	}

	headers := http.Header{}
	headers.Set("apikey", c.key)
	headers.Set("Authorization", "Bearer "+c.key)
	headers.Set("Accept", "application/json")
	if method != http.MethodGet {
		headers.Set("Content-Type", "application/json")
		headers.Set("Prefer", "return=representation")
	}

	resp, err := c.do(ctx, method, path, headers, payload)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", q.Table(), err)
	}
	return nil
}

// Upload PUTs an object into bucket and returns its public URL.
func (c *Client) Upload(ctx context.Context, bucket, name, contentType string, data []byte) (string, error) {
	path := fmt.Sprintf("/storage/v1/object/%s/%s", bucket, name)
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.key)
	headers.Set("apikey", c.key)
	headers.Set("Content-Type", contentType)

	if _, err := c.do(ctx, http.MethodPut, path, headers, data); err != nil {
		return "", err
	}
	return c.PublicURL(bucket, name), nil
}

func (c *Client) PublicURL(bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, name)
}

// do sends the request through the breaker. Transport errors and 5xx count
// as failures; 4xx answers are returned as *APIError without tripping it.
func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body []byte) (*response, error) {
	resp, err := c.breaker.Execute(func() (*response, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
		if err != nil {
			return nil, err
		}
		req.Header = headers

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if res.StatusCode >= 500 {
			return nil, &APIError{Method: method, Path: path, Status: res.StatusCode, Body: string(data)}
		}
		return &response{status: res.StatusCode, body: data}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, &APIError{Method: method, Path: path, Status: resp.status, Body: string(resp.body)}
	}
	return resp, nil
}
