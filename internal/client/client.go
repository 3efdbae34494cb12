// Package client talks to the portfolio REST API. It is shared by the
// server-rendered site and the command line client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/web"
)

// TokenHeader carries the authentication token on every request.
const TokenHeader = "x-auth-token"

// TokenSource supplies a stored token; an empty token sends no header.
type TokenSource interface {
	Token() string
}

var tokenKey = web.NewContextKey[string]("api token")

// WithToken attaches a token to ctx. It takes precedence over the client's TokenSource.
func WithToken(ctx context.Context, token string) context.Context {
	return tokenKey.With(ctx, token)
}

var forwardedForKey = web.NewContextKey[string]("forwarded for")

// WithForwardedFor sends ip as X-Forwarded-For on requests made with ctx, so
// the API can tell the clients of a proxying caller apart.
func WithForwardedFor(ctx context.Context, ip string) context.Context {
	return forwardedForKey.With(ctx, ip)
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New builds a client for an API rooted at baseURL, e.g. http://localhost:3000/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, xerrors.New(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, xerrors.Newf("client: base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FileField is one file part of a multipart form.
type FileField struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Form is a multipart body: text fields plus optional files.
type Form struct {
	Fields url.Values
	Files  []FileField
}

func (c *Client) token(ctx context.Context) string {
	if token, ok := tokenKey.From(ctx); ok {
		return token
	}
	if c.tokens != nil {
		return c.tokens.Token()
	}
	return ""
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return xerrors.New(err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return xerrors.New(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) doForm(ctx context.Context, method, path string, form Form, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, values := range form.Fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				return xerrors.New(err)
			}
		}
	}
	for _, f := range form.Files {
		part, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return xerrors.New(err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return xerrors.New(err)
		}
	}
	if err := mw.Close(); err != nil {
		return xerrors.New(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), &buf)
	if err != nil {
		return xerrors.New(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if ip, ok := forwardedForKey.From(req.Context()); ok && ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	if token := c.token(req.Context()); token != "" {
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.New(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Newf("client: decoding %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		ErrorMessage string            `json:"errorMessage"`
		ErrorDetails map[string]string `json:"errorDetails"`
		Message      string            `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Message = payload.ErrorMessage
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		apiErr.Details = payload.ErrorDetails
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
