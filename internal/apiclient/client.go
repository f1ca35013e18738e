// ABOUTME: HTTP transport for the catalog backend: cookie jar, timeout, JSON bodies
// ABOUTME: Classifies failures into the Error taxonomy and logs unexpected ones

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/2389/brewdesk/internal/catalog"
)

// Defaults applied by New.
const (
	DefaultTimeout = 10 * time.Second
	DefaultPerPage = 100
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	PerPage int
	// Paths overrides the collection path of a kind ("/outlets").
	Paths map[catalog.Kind]string
	// HTTPClient is copied; its Jar and Timeout are filled in when unset.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the backend REST API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	perPage int
	paths   map[catalog.Kind]string
	logger  *slog.Logger
}

// New creates a client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", opts.BaseURL)
	}

	hc := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	} else if hc.Timeout == 0 {
		hc.Timeout = DefaultTimeout
	}

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	paths := make(map[catalog.Kind]string, len(catalog.Kinds))
	for _, k := range catalog.Kinds {
		paths[k] = k.Path()
	}
	for k, p := range opts.Paths {
		if !k.Valid() {
			return nil, fmt.Errorf("path override: %w: %q", catalog.ErrUnknownKind, string(k))
		}
		paths[k] = "/" + strings.Trim(p, "/")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: base,
		http:    hc,
		perPage: perPage,
		paths:   paths,
		logger:  logger.With("component", "apiclient"),
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) kindPath(k catalog.Kind) (string, error) {
	p, ok := c.paths[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", catalog.ErrUnknownKind, string(k))
	}
	return p, nil
}

// quietOnUnauthorized lists paths whose 401 answers are part of normal flow.
var quietOnUnauthorized = []string{"/admin/check", "/admin/login"}

func expected(path string, status int) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	for _, p := range quietOnUnauthorized {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// do sends one request. body is JSON-encoded when non-nil; a 2xx response is
// decoded into out when out is non-nil and the body is not empty.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: ErrValidation, Method: method, Path: path, Err: fmt.Errorf("marshaling request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &Error{Kind: ErrTransport, Method: method, Path: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := &Error{Kind: ErrTransport, Method: method, Path: path, Err: err}
		if ctx.Err() == nil {
			c.logger.Error("request failed", "method", method, "path", path, "error", err)
		}
		return apiErr
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &Error{
			Kind:   classify(resp.StatusCode),
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			Detail: parseDetail(raw),
		}
		if !expected(path, resp.StatusCode) {
			c.logger.Error("unexpected response",
				"method", method,
				"path", path,
				"status", resp.StatusCode,
				"body", string(raw))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("reading response failed", "method", method, "path", path, "error", err)
		return &Error{Kind: ErrTransport, Status: resp.StatusCode, Method: method, Path: path, Err: fmt.Errorf("reading response: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("decoding response failed", "method", method, "path", path, "error", err)
		return &Error{Kind: ErrTransport, Status: resp.StatusCode, Method: method, Path: path, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
