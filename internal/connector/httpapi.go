package connector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devconn/devconn/internal/endpoints"
)

// apiClient is the shared HTTP plumbing for the centralized API connectors.
// Each request runs under the endpoint's configured timeout. Attempts that
// fail before an HTTP status arrives are retried up to the endpoint's retry
// count; once a response exists it is never replayed.
type apiClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
}

func newAPIClient(ep *endpoints.Endpoint) *apiClient {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := ep.RetryCount
	if retries < 0 {
		retries = 0
	}
	return &apiClient{
		baseURL: strings.TrimRight(ep.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// Campus controllers routinely run self-signed
				// certificates on management networks.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		timeout: timeout,
		retries: retries,
	}
}

// doJSON issues a request with an optional JSON body and decodes a JSON
// response into out (when out is non-nil and the response has a body).
// It returns the HTTP status code; transport errors come back as errors
// after the retry budget is spent.
func (c *apiClient) doJSON(ctx context.Context, method, path string, header http.Header, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		status, err := c.attemptJSON(ctx, method, path, header, payload, out)
		if err == nil || status != 0 || ctx.Err() != nil {
			return status, err
		}
		lastErr = err
	}
	return 0, lastErr
}

func (c *apiClient) attemptJSON(ctx context.Context, method, path string, header http.Header, payload []byte, out any) (int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// getRaw issues a GET with query parameters and returns the raw body, used
// by the XML-speaking Panorama connector. Transport failures share the same
// retry budget as doJSON.
func (c *apiClient) getRaw(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		data, status, err := c.attemptRaw(ctx, path, query)
		if err == nil || status != 0 || ctx.Err() != nil {
			return data, status, err
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

func (c *apiClient) attemptRaw(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
