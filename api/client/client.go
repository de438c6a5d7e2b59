package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/vocdoni/mixvote/api"
	"github.com/vocdoni/mixvote/log"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries is the number of attempts made when the connection to
	// the server fails. Responses with an error status are not retried.
	DefaultRetries = 3
	// DefaultRetryDelay is the pause between two attempts.
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Second

	maxLoggedBody = 512
)

// HTTPclient is the mixvote API HTTP client.
type HTTPclient struct {
	c          *http.Client
	host       *url.URL
	retries    int
	retryDelay time.Duration
}

// New connects to the API host, checks it answers the ping endpoint and
// returns the handle
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if hostURL.Scheme == "" || hostURL.Host == "" {
		return nil, fmt.Errorf("invalid API host %q", host)
	}

	c := &HTTPclient{
		c: &http.Client{
			Transport: &http.Transport{
				IdleConnTimeout:       DefaultTimeout,
				ResponseHeaderTimeout: DefaultTimeout,
			},
			Timeout: DefaultTimeout,
		},
		host:       hostURL,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	log.Debugw("http client created", "host", hostURL.String())
	if err := c.Ping(); err != nil {
		return nil, err
	}
	return c, nil
}

// Host returns the API base URL.
func (c *HTTPclient) Host() string {
	return c.host.String()
}

// Ping checks the server is answering.
func (c *HTTPclient) Ping() error {
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return nil
}

// SetRetries configures the number of attempts. Values below one mean a
// single attempt.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// SetRetryDelay configures the pause between attempts.
func (c *HTTPclient) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if tr, ok := c.c.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = d
	}
}

// Request performs a request to the endpoint built by joining urlPath, with
// jsonBody (if not nil) encoded as the request body. It returns the response
// body and status code.
//
// params holds query parameters as key, value pairs. A trailing key without
// value is ignored.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	return c.RequestContext(context.Background(), method, jsonBody, params, urlPath...)
}

// RequestContext is Request bound to ctx, which also interrupts the retry
// wait.
func (c *HTTPclient) RequestContext(ctx context.Context, method string, jsonBody any,
	params []string, urlPath ...string,
) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}
	u := c.endpoint(params, urlPath...)
	log.Debugw("http client request", "type", method, "url", u, "body", truncateBody(body))

	var lastErr error
	for attempt := 1; attempt <= max(c.retries, 1); attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		data, status, err := c.do(ctx, method, u, body)
		if err == nil {
			return data, status, nil
		}
		lastErr = err
		log.Warnw("http request failed", "error", err.Error(), "attempt", attempt, "retries", c.retries)
	}
	return nil, 0, fmt.Errorf("http request ultimately failed after %d attempts: %w", c.retries, lastErr)
}

// endpoint builds the request URL from the host, the path segments and the
// query parameters.
func (c *HTTPclient) endpoint(params []string, urlPath ...string) string {
	u := *c.host
	u.Path = path.Join(append([]string{u.Path}, urlPath...)...)
	if len(params) > 1 {
		values := url.Values{}
		for i := 0; i+1 < len(params); i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}
	return u.String()
}

func (c *HTTPclient) do(ctx context.Context, method, u string, body []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func truncateBody(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}
