package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/util"
)

const (
	DefaultTimeout = 20 * time.Second

	// UserAgent mimics a desktop Chrome; some endpoints reject unknown agents.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodyBytes = 1 << 20
)

// Client is the shared transport of every game adapter. Each call gets its
// own deadline on top of the http.Client timeout.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	verbose    bool
}

// NewClient creates a client with its own http.Client.
func NewClient(timeout time.Duration) *Client {
	return NewClientWithHTTP(timeout, nil)
}

// NewClientWithHTTP lets tests and callers inject the http.Client.
func NewClientWithHTTP(timeout time.Duration, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient, timeout: timeout}
}

// SetVerbose enables logging of truncated response bodies.
func (c *Client) SetVerbose(v bool) {
	c.verbose = v
}

// Request describes one upstream call. Body, when set, is sent as JSON.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   any
}

// Envelope is the JSON wrapper shared by the upstream APIs. Which code field
// is populated depends on the service.
type Envelope struct {
	Retcode *int            `json:"retcode"`
	Code    *int            `json:"code"`
	Status  *int            `json:"status"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// AppCode returns the application-level result code.
func (e Envelope) AppCode() (int, bool) {
	switch {
	case e.Retcode != nil:
		return *e.Retcode, true
	case e.Code != nil:
		return *e.Code, true
	case e.Status != nil:
		return *e.Status, true
	}
	return 0, false
}

// Text returns the upstream message, whichever field carries it.
func (e Envelope) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

// Err converts a non-zero application code into an UpstreamApplicationError.
func (e Envelope) Err(op string) error {
	code, _ := e.AppCode()
	if code == 0 {
		return nil
	}
	return checkin.ApplicationError(op, code, e.Text())
}

// DecodeData unmarshals the data payload into v.
func (e Envelope) DecodeData(op string, v any) error {
	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return checkin.MalformedResponseError(op, "missing data payload", nil)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return checkin.MalformedResponseError(op, "unexpected data payload", err)
	}
	return nil
}

// Do sends the request and returns the decoded envelope. The application
// code is not checked; callers decide what a non-zero code means.
func (c *Client) Do(ctx context.Context, op string, r Request) (Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target, err := url.Parse(r.URL)
	if err != nil {
		return Envelope{}, checkin.ConfigurationError(fmt.Sprintf("%s: invalid url %q", op, r.URL), err)
	}
	if len(r.Query) > 0 {
		q := target.Query()
		for k, values := range r.Query {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return Envelope{}, fmt.Errorf("%s: failed to encode body: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Envelope{}, checkin.TransportError(op, err)
	}
	defer resp.Body.Close()

	if err := statusError(op, resp); err != nil {
		return Envelope{}, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Envelope{}, checkin.TransportError(op, err)
	}
	if c.verbose {
		log.Printf("📥 %s %s -> %d: %s", method, target.Path, resp.StatusCode, util.TruncateBytes(raw))
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, checkin.MalformedResponseError(op, "response is not JSON", err)
	}
	if _, ok := env.AppCode(); !ok {
		return Envelope{}, checkin.MalformedResponseError(op, "response carries no result code", nil)
	}
	return env, nil
}

// statusError classifies non-2xx responses: 429 and 5xx are transport
// failures (429 carries the requested delay), 401/403 mark the session
// stale, other 4xx are application errors keyed by the HTTP status.
func statusError(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e := checkin.TransportError(op, fmt.Errorf("HTTP %d", resp.StatusCode))
		e.Message = "rate limited"
		e.RetryAfter = ParseRetryDelay(resp)
		return e
	case resp.StatusCode >= 500:
		return checkin.TransportError(op, fmt.Errorf("HTTP %d", resp.StatusCode))
	default:
		e := checkin.ApplicationError(op, resp.StatusCode, strings.TrimSpace("HTTP "+http.StatusText(resp.StatusCode)))
		e.Stale = resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
		return e
	}
}
