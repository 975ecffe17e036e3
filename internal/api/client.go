package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/models"
)

// DefaultTimeout bounds one simulation round trip.
const DefaultTimeout = 8 * time.Second

// maxResponseBytes caps the decoded reply; CDFs for many targets stay well below this.
const maxResponseBytes = 16 << 20

// ErrEmptyPayload is returned when a submission carries no fields and no form state.
var ErrEmptyPayload = errors.New("empty simulation payload")

// StatusError is a non-200 reply from the simulation service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("simulation api status %d", e.Code)
	}
	return fmt.Sprintf("simulation api status %d: %s", e.Code, e.Body)
}

// Config holds API configuration
type Config struct {
	BaseURL  string
	Endpoint string // relative path, e.g. "simulate.json"
	Timeout  time.Duration
}

// Client posts aggregated form payloads to the external simulation service.
type Client struct {
	config Config
	http   *http.Client
}

func NewClient(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = "simulate.json"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// URL is the full endpoint address.
func (c *Client) URL() string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(c.config.Endpoint, "/")
}

func (c *Client) apiPost(ctx context.Context, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Simulate sends one payload and returns the decoded reply. The reply is not validated here.
func (c *Client) Simulate(ctx context.Context, payload form.Payload) (*models.SimulateResponse, error) {
	if payload.Empty() {
		return nil, ErrEmptyPayload
	}
	var res models.SimulateResponse
	if err := c.apiPost(ctx, payload, &res); err != nil {
		return nil, fmt.Errorf("simulate %s: %w", c.URL(), err)
	}
	return &res, nil
}
