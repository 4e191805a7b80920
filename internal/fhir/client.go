package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
)

const contentType = "application/fhir+json"

// Outcome is the result of a create, update or delete call
type Outcome struct {
	StatusCode int
	Created    bool
	Location   string
	Body       []byte
}

// OK reports a 200 response
func (o *Outcome) OK() bool {
	return o != nil && o.StatusCode == http.StatusOK
}

// ServerMessage returns the response body as text
func (o *Outcome) ServerMessage() string {
	if o == nil {
		return ""
	}
	return strings.TrimSpace(string(o.Body))
}

// ResponseRewriter may replace a successful response body before it is decoded
type ResponseRewriter func(body []byte) []byte

// Client talks to a FHIR R4 REST endpoint
type Client struct {
	baseURL string
	target  string
	http    *http.Client
	rewrite ResponseRewriter
	logger  *slog.Logger
}

type Option func(*Client)

// WithResponseRewriter installs a hook applied to every successful response body
func WithResponseRewriter(fn ResponseRewriter) Option {
	return func(c *Client) { c.rewrite = fn }
}

// NewClient creates a client for baseURL. target names the remote system in logs and metrics
func NewClient(baseURL, target string, httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		target:  target,
		http:    httpClient,
		logger:  logger.With("target", target),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient builds a transport with separate connect and read timeouts
func NewHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	return &http.Client{Transport: transport}
}

// Search runs a type-level search. A 404 is treated as an empty result
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (*Bundle, error) {
	u := c.baseURL + "/" + resourceType
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	status, body, err := c.do(ctx, http.MethodGet, resourceType, u, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return &Bundle{ResourceType: "Bundle", Type: "searchset"}, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %s failed with status %d: %s", resourceType, status, strings.TrimSpace(string(body)))
	}

	var bundle Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode %s search bundle: %w", resourceType, err)
	}
	return &bundle, nil
}

// Create posts a new resource
func (c *Client) Create(ctx context.Context, resourceType string, resource any) (*Outcome, error) {
	return c.write(ctx, http.MethodPost, resourceType, c.baseURL+"/"+resourceType, resource)
}

// Update replaces the resource with the given id
func (c *Client) Update(ctx context.Context, resourceType, id string, resource any) (*Outcome, error) {
	if id == "" {
		return nil, fmt.Errorf("cannot update %s without an id", resourceType)
	}
	return c.write(ctx, http.MethodPut, resourceType, c.baseURL+"/"+resourceType+"/"+url.PathEscape(id), resource)
}

// Delete removes the resource with the given id
func (c *Client) Delete(ctx context.Context, resourceType, id string) (*Outcome, error) {
	if id == "" {
		return nil, fmt.Errorf("cannot delete %s without an id", resourceType)
	}
	return c.write(ctx, http.MethodDelete, resourceType, c.baseURL+"/"+resourceType+"/"+url.PathEscape(id), nil)
}

func (c *Client) write(ctx context.Context, method, resourceType, u string, resource any) (*Outcome, error) {
	var payload []byte
	if resource != nil {
		b, err := json.Marshal(resource)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", resourceType, err)
		}
		payload = b
	}

	status, body, location, err := c.doWithLocation(ctx, method, resourceType, u, payload)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		StatusCode: status,
		Created:    status == http.StatusCreated,
		Location:   location,
		Body:       body,
	}, nil
}

func (c *Client) do(ctx context.Context, method, resourceType, u string, payload []byte) (int, []byte, error) {
	status, body, _, err := c.doWithLocation(ctx, method, resourceType, u, payload)
	return status, body, err
}

func (c *Client) doWithLocation(ctx context.Context, method, resourceType, u string, payload []byte) (int, []byte, string, error) {
	start := time.Now()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Accept", contentType)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	metrics.RemoteCallDuration.WithLabelValues(c.target, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteCalls.WithLabelValues(c.target, method, resourceType, "error").Inc()
		return 0, nil, "", fmt.Errorf("%s %s failed: %w", method, resourceType, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RemoteCalls.WithLabelValues(c.target, method, resourceType, "error").Inc()
		return 0, nil, "", fmt.Errorf("failed to read %s response: %w", resourceType, err)
	}

	metrics.RemoteCalls.WithLabelValues(c.target, method, resourceType, strconv.Itoa(resp.StatusCode)).Inc()

	if c.rewrite != nil && resp.StatusCode < 300 && len(body) > 0 {
		body = c.rewrite(body)
	}

	c.logger.Debug("FHIR call completed",
		"method", method,
		"resource", resourceType,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp.StatusCode, body, resp.Header.Get("Location"), nil
}
