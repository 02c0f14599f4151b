// Package catalog is a client for the remote catalog service that stores
// products and authenticates administrators.
package catalog

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/catalog-admin/internal/domain/auth"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Compile-time checks.
var (
	_ product.Repository = (*Client)(nil)
	_ auth.Authenticator = (*Client)(nil)
)

// Config holds the connection settings for Client.
type Config struct {
	// BaseURL is the catalog service root, e.g. https://api.example.com/v2.
	BaseURL string
	// APIPath is the per-tenant path segment in product routes.
	APIPath string
	// Timeout bounds every request. Zero means no client timeout.
	Timeout time.Duration
	// Transport is the underlying round tripper, http.DefaultTransport if nil.
	Transport http.RoundTripper

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Client talks to the remote catalog service. It holds no credential: every
// authenticated call takes the caller's credential explicitly.
type Client struct {
	base    *url.URL
	apiPath string
	http    *http.Client

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewClient validates cfg and builds an instrumented client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.APIPath == "" || strings.Contains(cfg.APIPath, "/") {
		return nil, errors.Errorf("invalid API path %q", cfg.APIPath)
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	meter := mp.Meter("github.com/xenking/catalog-admin/internal/catalog")
	requests, err := meter.Int64Counter("catalog.client.requests",
		metric.WithDescription("Requests issued to the catalog service"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create requests counter")
	}
	duration, err := meter.Float64Histogram("catalog.client.duration",
		metric.WithDescription("Catalog service request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return &Client{
		base:    base,
		apiPath: cfg.APIPath,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithMeterProvider(mp),
				otelhttp.WithTracerProvider(tp),
			),
		},
		requests: requests,
		duration: duration,
	}, nil
}

// SignIn exchanges administrator credentials for a session token. Every
// failure response is reported as ErrUnauthorized.
func (c *Client) SignIn(ctx context.Context, username, password string) (auth.Credential, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeSignIn(e, username, password)

	var resp signInResponse
	err := c.do(ctx, "sign-in", http.MethodPost, c.base.JoinPath("admin", "signin"), nil, e.Bytes(),
		func(d *jx.Decoder) error {
			var err error
			resp, err = decodeSignIn(d)
			return err
		})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return auth.Credential{}, errors.Wrapf(ErrUnauthorized, "sign in: %s", se.Error())
		}
		return auth.Credential{}, err
	}
	if resp.Token == "" {
		return auth.Credential{}, errors.Wrap(ErrUnauthorized, "sign in: empty token")
	}
	return auth.Credential{Token: resp.Token, Expires: resp.Expires}, nil
}

// CheckSession asks the catalog service whether cred is still valid. A
// rejected credential is reported as ErrUnauthorized.
func (c *Client) CheckSession(ctx context.Context, cred auth.Credential) error {
	err := c.do(ctx, "check-session", http.MethodPost, c.base.JoinPath("api", "user", "check"), &cred, nil, nil)
	var se *StatusError
	if errors.As(err, &se) && !errors.Is(err, ErrUnauthorized) {
		return errors.Wrapf(ErrUnauthorized, "check session: %s", se.Error())
	}
	return err
}

// List returns the whole product collection.
func (c *Client) List(ctx context.Context, cred auth.Credential) ([]product.Product, error) {
	var products []product.Product
	err := c.do(ctx, "list-products", http.MethodGet, c.apiURL("products"), &cred, nil,
		func(d *jx.Decoder) error {
			var err error
			products, err = decodeProductList(d)
			return err
		})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Create stores a new product. The ID of p is ignored.
func (c *Client) Create(ctx context.Context, cred auth.Credential, p product.Product) error {
	p.ID = ""
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeData(e, p)

	return c.do(ctx, "create-product", http.MethodPost, c.apiURL("product"), &cred, e.Bytes(), nil)
}

// Update replaces the product addressed by p.ID.
func (c *Client) Update(ctx context.Context, cred auth.Credential, p product.Product) error {
	if p.ID == "" {
		return errors.Wrap(product.ErrNotFound, "update: empty id")
	}
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeData(e, p)

	return c.do(ctx, "update-product", http.MethodPut, c.apiURL("product", p.ID), &cred, e.Bytes(), nil)
}

// Delete removes the product with the given id.
func (c *Client) Delete(ctx context.Context, cred auth.Credential, id string) error {
	if id == "" {
		return errors.Wrap(product.ErrNotFound, "delete: empty id")
	}
	return c.do(ctx, "delete-product", http.MethodDelete, c.apiURL("product", id), &cred, nil, nil)
}

// Ping reports whether the catalog service answers HTTP at all. Any status
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping catalog")
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) apiURL(elem ...string) *url.URL {
	return c.base.JoinPath(append([]string{"api", c.apiPath, "admin"}, elem...)...)
}

// do issues one request. A nil cred sends no Authorization header; the token
// is sent as-is, without a scheme prefix. out, when set, decodes a success
// body.
func (c *Client) do(
	ctx context.Context,
	op, method string,
	u *url.URL,
	cred *auth.Credential,
	body []byte,
	out func(d *jx.Decoder) error,
) error {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return errors.Wrapf(err, "%s: create request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != nil {
		req.Header.Set("Authorization", cred.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.record(ctx, op, status, time.Since(start))
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "%s: read body", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Message: decodeMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := out(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "%s: decode", op)
	}
	return nil
}

func (c *Client) record(ctx context.Context, op string, status int, took time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("catalog.op", op),
		attribute.Int("http.status_code", status),
	)
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, took.Seconds(), attrs)
}
