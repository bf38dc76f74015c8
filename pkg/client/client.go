package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/loykin/vigil/internal/service"
)

// Client talks to a running vigil daemon over its control API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger
	Insecure bool // skip TLS verification
}

// DefaultConfig returns the configuration matching the daemon defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a vigil API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	transport := &http.Transport{}
	if config.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout, Transport: transport},
	}
}

// IsReachable checks whether the daemon responds on its control API.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Statuses fetches snapshots for all supervised services.
func (c *Client) Statuses(ctx context.Context) ([]service.Status, error) {
	var out []service.Status
	if err := c.getJSON(ctx, c.baseURL+"/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the snapshot for one service.
func (c *Client) Status(ctx context.Context, name string) (service.Status, error) {
	var out service.Status
	u := c.baseURL + "/status?name=" + url.QueryEscape(name)
	if err := c.getJSON(ctx, u, &out); err != nil {
		return service.Status{}, err
	}
	return out, nil
}

// Check asks the daemon to probe a service immediately.
func (c *Client) Check(ctx context.Context, name string) error {
	return c.post(ctx, c.baseURL+"/check?name="+url.QueryEscape(name))
}

// Clear resets a service's restart budget and lifts failed_permanently.
func (c *Client) Clear(ctx context.Context, name string) error {
	return c.post(ctx, c.baseURL+"/clear?name="+url.QueryEscape(name))
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("daemon: %s", e.Error)
	}
	return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
}
