// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/trimmarr/internal/buildinfo"
)

const DefaultTimeout = 30 * time.Second

// Global HTTP client pool
var httpClients sync.Map

// Custom error type for *arr services
type ErrArr struct {
	Service  string // Service name (e.g., "sonarr")
	Op       string // Operation that failed
	Err      error  // Underlying error
	HttpCode int    // HTTP status code if applicable
}

func (e *ErrArr) Error() string {
	if e.HttpCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: server returned %s (%d): %v", e.Service, e.Op, http.StatusText(e.HttpCode), e.HttpCode, e.Err)
		}
		return fmt.Sprintf("%s %s: server returned %s (%d)", e.Service, e.Op, http.StatusText(e.HttpCode), e.HttpCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Service, e.Op)
}

func (e *ErrArr) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var arrErr *ErrArr
	if errors.As(err, &arrErr) {
		return arrErr.HttpCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// getHTTPClient returns a client with the specified timeout
func getHTTPClient(timeout time.Duration) *http.Client {
	// Use the timeout as the key
	if client, ok := httpClients.Load(timeout); ok {
		return client.(*http.Client)
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
		},
		Timeout: timeout,
	}

	actual, _ := httpClients.LoadOrStore(timeout, client)
	return actual.(*http.Client)
}

// MakeArrRequest is a helper function to make requests with proper headers
func MakeArrRequest(ctx context.Context, method, url, apiKey string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-Api-Key", apiKey)
	req.Header.Set("Accept", "application/json")
	buildinfo.AttachUserAgentHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// The context deadline is authoritative; the pooled client only bounds
	// requests issued without one.
	timeout := DefaultTimeout
	if _, ok := ctx.Deadline(); ok {
		timeout = 0
	}

	startTime := time.Now()

	resp, err := getHTTPClient(timeout).Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request canceled: %w", err)
		}
		return nil, err
	}

	if resp == nil {
		return nil, fmt.Errorf("received nil response from server")
	}

	resp.Header.Set("X-Response-Time", fmt.Sprintf("%d", time.Since(startTime).Milliseconds()))

	return resp, nil
}

// DecodeArrResponse checks the status of resp and decodes the JSON body into out.
// out may be nil when the body is not needed. The body is always closed.
func DecodeArrResponse(resp *http.Response, service, op string, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		var errorResponse struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Message != "" {
			return &ErrArr{Service: service, Op: op, Err: errors.New(errorResponse.Message), HttpCode: resp.StatusCode}
		}
		return &ErrArr{Service: service, Op: op, HttpCode: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ErrArr{Service: service, Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return nil
}

// JoinURL builds an API URL from a base URL and a path.
func JoinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
