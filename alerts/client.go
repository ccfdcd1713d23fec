// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package alerts resolves the live alerts of an asset from an
// Alerta-compatible REST API.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/machinerag/core"
)

var (
	// ErrBaseURLRequired is returned when a Client is created without a base URL.
	ErrBaseURLRequired = errors.New("alert service base url is required")

	// ErrUnexpectedResponse is returned for non-200 replies and undecodable bodies.
	ErrUnexpectedResponse = errors.New("unexpected alert service response")
)

const maxResponseBytes = 8 << 20

// Resolver lists the alerts raised for an asset.
type Resolver interface {
	Fetch(ctx context.Context, assetRef string) ([]core.Alert, error)
}

// Client talks to GET {base}/alerts?resource=<assetRef>.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithAPIKey sends "Authorization: Key <key>" with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) error {
		c.apiKey = key
		return nil
	}
}

// WithTimeout bounds each request. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.http.Timeout = d
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.http = hc
		return nil
	}
}

// NewClient creates a Client for the API rooted at baseURL,
// e.g. "http://alerta:8080/api".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	c := &Client{base: u, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type alertDTO struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	Event      string    `json:"event"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	Text       string    `json:"text"`
	CreateTime time.Time `json:"createTime"`
}

type listResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Alerts  []alertDTO `json:"alerts"`
}

// Fetch implements Resolver. Alerts are returned in service order.
func (c *Client) Fetch(ctx context.Context, assetRef string) ([]core.Alert, error) {
	u := c.base.JoinPath("alerts")
	u.RawQuery = url.Values{"resource": {assetRef}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting alerts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading alerts: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Status)
	}

	var lr listResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if lr.Status != "" && lr.Status != "ok" {
		return nil, fmt.Errorf("%w: status %s: %s", ErrUnexpectedResponse, lr.Status, lr.Message)
	}

	out := make([]core.Alert, 0, len(lr.Alerts))
	for _, a := range lr.Alerts {
		out = append(out, core.Alert{
			ID:         a.ID,
			Resource:   a.Resource,
			Event:      a.Event,
			Severity:   a.Severity,
			Status:     a.Status,
			Text:       a.Text,
			CreateTime: a.CreateTime,
		})
	}
	return out, nil
}
