// Package catalog reads products from a fakestore-compatible REST API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL = "https://fakestoreapi.com"
	DefaultTimeout = 5 * time.Second
	MaxListLimit   = 20
)

type Outcome string

const (
	Success        Outcome = "success"
	NotFound       Outcome = "not_found"
	Timeout        Outcome = "timeout"
	TransportError Outcome = "transport_error"
	Unavailable    Outcome = "unavailable"
)

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

type ProductResult struct {
	Outcome Outcome
	Product Product
	Err     error
}

type ListResult struct {
	Outcome  Outcome
	Products []Product
	Err      error
}

// Options configure a Client. Client credentials are used only when all three are set.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	ClientID     string
	ClientSecret string
	TokenURL     string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

func (o Options) oauthEnabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.TokenURL != ""
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.oauthEnabled() {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		authed := cc.Client(ctx)
		authed.Timeout = opts.Timeout
		hc = authed
		logger.Info("catalog client credentials enabled", zap.String("token_url", opts.TokenURL))
	}
	return &Client{httpClient: hc, baseURL: base, logger: logger}
}

// ClampLimit keeps a listing size within 1..MaxListLimit.
func ClampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

// List fetches up to limit products.
func (c *Client) List(ctx context.Context, limit int) ListResult {
	limit = ClampLimit(limit)
	u := url.URL{Path: "/products"}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var products []Product
	if err := c.getJSON(ctx, u.String(), &products); err != nil {
		if errors.Is(err, errEmptyBody) {
			return ListResult{Outcome: Success}
		}
		return ListResult{Outcome: c.fail("list", err), Err: err}
	}
	// some deployments ignore the limit parameter
	if len(products) > limit {
		products = products[:limit]
	}
	return ListResult{Outcome: Success, Products: products}
}

// Get fetches one product. An empty or null body counts as not found.
func (c *Client) Get(ctx context.Context, id int) ProductResult {
	var p *Product
	err := c.getJSON(ctx, "/products/"+strconv.Itoa(id), &p)
	switch {
	case err == nil && p == nil, errors.Is(err, errEmptyBody):
		return ProductResult{Outcome: NotFound}
	case err != nil:
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return ProductResult{Outcome: NotFound}
		}
		return ProductResult{Outcome: c.fail("get", err), Err: err}
	}
	return ProductResult{Outcome: Success, Product: *p}
}

// ---- Helpers ----

var errEmptyBody = errors.New("catalog: empty response body")

type statusError struct {
	path string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("catalog api %s failed with %d: %s", e.path, e.code, e.body)
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{path: path, code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func (c *Client) fail(op string, err error) Outcome {
	outcome := classify(err)
	c.logger.Warn("catalog call failed",
		zap.String("op", op),
		zap.String("outcome", string(outcome)),
		zap.Error(err))
	return outcome
}

func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	var se *statusError
	var re *oauth2.RetrieveError
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se), errors.As(err, &re), errors.As(err, &syn), errors.As(err, &typ):
		return Unavailable
	}
	return TransportError
}
