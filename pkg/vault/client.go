package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getgrowly/vault-lifecycle/pkg/logging"
)

const (
	// DefaultAddress is used when neither WithAddress nor VAULT_ADDR is set.
	DefaultAddress = "http://127.0.0.1:8200"
	// AddressEnv is the environment variable consulted for the address.
	AddressEnv = "VAULT_ADDR"
	// TokenHeader carries the client token.
	TokenHeader = "X-Vault-Token"
	// RequestIDHeader tags every request for log correlation.
	RequestIDHeader = "X-Request-Id"

	// MethodList is the non-standard verb Vault uses to list keys under a path.
	MethodList = "LIST"

	defaultTimeout = 30 * time.Second
	userAgent      = "vault-lifecycle/1.0"
	logSubsystem   = "Vault"
)

// Request describes a single call. Body must already be JSON encoded.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// Client is the transport shared by every endpoint service. It is safe to
// reuse and never changes after NewClient returns.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    http.Header
}

// NewClient creates a new Vault client.
//
// The address is taken from WithAddress, then VAULT_ADDR, then
// DefaultAddress.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &clientOptions{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("vault: option error: %w", err)
		}
	}

	baseURL := DefaultAddress
	if env := os.Getenv(AddressEnv); env != "" {
		baseURL = env
	}
	if cfg.address != "" {
		baseURL = cfg.address
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", userAgent)
	if cfg.token != "" {
		headers.Set(TokenHeader, cfg.token)
	}
	for key, values := range cfg.headers {
		headers[key] = append([]string(nil), values...)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
		if cfg.timeout > 0 {
			httpClient.Timeout = cfg.timeout
		}
		if cfg.tlsConfig != nil {
			httpClient.Transport = &http.Transport{TLSClientConfig: cfg.tlsConfig}
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
	}, nil
}

// Address returns the resolved base address.
func (c *Client) Address() string {
	return c.baseURL
}

// Header returns a copy of the default headers.
func (c *Client) Header() http.Header {
	return c.headers.Clone()
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodHead, Path: path})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Put issues a PUT request with an encoded body, which may be nil.
func (c *Client) Put(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Options issues an OPTIONS request.
func (c *Client) Options(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodOptions, Path: path})
}

// List issues a LIST request.
func (c *Client) List(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: MethodList, Path: path})
}

// Do sends req and classifies the outcome. Responses with status >= 400 are
// returned as *Error of kind KindClient or KindServer with the body attached;
// failures to obtain a response are *Error of kind KindTransport. Nothing is
// retried here.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	url := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	requestID := uuid.NewString()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	for key, values := range req.Header {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	httpReq.Header.Set(RequestIDHeader, requestID)

	logging.Info(logSubsystem, "%s %q", req.Method, url)
	if logging.Enabled(logging.LevelDebug) {
		logging.Debug(logSubsystem, "Request %s:\n%s\n%s\n%s", requestID, url, req.Method, dumpHeaders(httpReq.Header))
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		verr := newTransportError(err)
		observeRequest(req.Method, outcomeTransport, time.Since(start))
		logging.Error(logSubsystem, err, "%s", verr.Message)
		return nil, verr
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		verr := newTransportError(fmt.Errorf("failed to read response body: %w", err))
		observeRequest(req.Method, outcomeTransport, time.Since(start))
		return nil, verr
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       respBody,
	}
	if logging.Enabled(logging.LevelDebug) {
		logging.Debug(logSubsystem, "Response %s:\n%s", requestID, redactBody(respBody))
	}

	if resp.StatusCode >= 400 {
		verr := newStatusError(resp)
		if verr.Kind == KindServer {
			observeRequest(req.Method, outcomeServerError, time.Since(start))
		} else {
			observeRequest(req.Method, outcomeClientError, time.Since(start))
		}
		logging.Error(logSubsystem, nil, "something went wrong when calling vault (%d - %s)", resp.StatusCode, resp.reason())
		if logging.Enabled(logging.LevelDebug) {
			logging.Debug(logSubsystem, "Response %s:\n%d\n%s\n%s", requestID, resp.StatusCode, dumpHeaders(resp.Header), redactBody(resp.Body))
		}
		return nil, verr
	}

	observeRequest(req.Method, outcomeSuccess, time.Since(start))
	return resp, nil
}

// EncodeBody JSON-encodes a request body for the verb helpers.
func EncodeBody(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

func dumpHeaders(h http.Header) string {
	redacted := h.Clone()
	if redacted.Get(TokenHeader) != "" {
		redacted.Set(TokenHeader, logging.Secret("").String())
	}
	out, err := json.Marshal(redacted)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// secretFields are response keys whose values never reach the log.
var secretFields = map[string]bool{
	"root_token":           true,
	"keys":                 true,
	"keys_base64":          true,
	"recovery_keys":        true,
	"recovery_keys_base64": true,
	"client_token":         true,
	"secret_id":            true,
	"key":                  true,
	"token":                true,
	"password":             true,
	"plaintext":            true,
}

// redactBody renders a response body for debug output with every secret
// field masked. The top-level "data" object holds logical secrets and is
// masked as a whole. Bodies that are not JSON are reduced to their size.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	if obj, ok := v.(map[string]any); ok {
		if _, ok := obj["data"]; ok {
			obj["data"] = logging.Secret("").String()
		}
	}

	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	return string(out)
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			if secretFields[key] {
				val[key] = logging.Secret("").String()
				continue
			}
			val[key] = redactValue(child)
		}
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
	}
	return v
}
