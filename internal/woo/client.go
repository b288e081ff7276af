// Package woo talks to the WooCommerce REST API and maps its payloads onto
// the internal record shapes.
package woo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a paginated WooCommerce REST client. Server-side (5xx) and
// transport failures are retried with bounded exponential backoff; 4xx
// responses are returned immediately since repeating them cannot help.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	pageSize       int
	maxRetries     int
	retryBase      time.Duration
	httpClient     *http.Client
}

// ClientConfig collects the knobs for constructing a Client.
type ClientConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	PageSize       int
	Timeout        time.Duration
}

// NewClient constructs a new client.
func NewClient(cfg ClientConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		pageSize:       pageSize,
		maxRetries:     3,
		retryBase:      500 * time.Millisecond,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// PageSize reports the page length used for pagination; a response shorter
// than this ends the walk.
func (c *Client) PageSize() int {
	return c.pageSize
}

// ListParams scopes a paginated list call.
type ListParams struct {
	Page          int
	ModifiedAfter *time.Time
}

// ListOrders fetches one page of orders.
func (c *Client) ListOrders(ctx context.Context, params ListParams) ([]Order, error) {
	var out []Order
	if err := c.getList(ctx, "/orders", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, params ListParams) ([]Product, error) {
	var out []Product
	if err := c.getList(ctx, "/products", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCoupons fetches one page of coupons.
func (c *Client) ListCoupons(ctx context.Context, params ListParams) ([]Coupon, error) {
	var out []Coupon
	if err := c.getList(ctx, "/coupons", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusError is a non-2xx response from the Woo API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("woo api status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth repeating.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

func (c *Client) getList(ctx context.Context, path string, params ListParams, dest any) error {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(c.pageSize))
	query.Set("page", strconv.Itoa(page))
	if params.ModifiedAfter != nil {
		query.Set("modified_after", params.ModifiedAfter.UTC().Format(time.RFC3339))
	}

	endpoint := c.baseURL + path + "?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.retryBase) * math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.doJSON(ctx, endpoint, dest)
		if err == nil {
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return err
		}
	}
	return fmt.Errorf("woo: %s after %d attempts: %w", path, c.maxRetries+1, lastErr)
}

func (c *Client) doJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return json.Unmarshal(body, dest)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
