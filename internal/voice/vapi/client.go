// Package vapi implements the voice transport on the Vapi call API.
package vapi

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/voice"
)

// Client drives calls through the Vapi REST API.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *logger.Logger
}

// NewClient creates a new Vapi client.
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.vapi.ai"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		logger:      log,
	}
}

var _ voice.Transport = (*Client)(nil)

// Start opens a call configured as a reading coach for the given book.
// Returns the provider's call ID.
func (c *Client) Start(ctx context.Context, opts voice.CallOptions) (string, error) {
	body := callRequest{
		Assistant: assistantConfig(opts),
		Metadata: map[string]string{
			"conversationId": opts.ConversationID,
		},
	}
	if opts.WebhookURL != "" {
		body.Assistant.ServerURL = opts.WebhookURL
	}

	var resp callResponse
	if err := c.do(ctx, http.MethodPost, "/call", body, &resp); err != nil {
		return "", fmt.Errorf("start call: %w", err)
	}

	c.logger.Info("voice call started",
		"call_id", resp.ID, "conversation_id", opts.ConversationID, "book", opts.BookTitle)
	return resp.ID, nil
}

// Stop ends an active call. Ending a call that already finished is not
// an error.
func (c *Client) Stop(ctx context.Context, callID string) error {
	err := c.do(ctx, http.MethodPost, "/call/"+callID+"/control",
		controlRequest{Type: "end-call"}, nil)
	if err != nil {
		return fmt.Errorf("stop call %s: %w", callID, err)
	}
	c.logger.Info("voice call stopped", "call_id", callID)
	return nil
}

// SetMuted gates the user's microphone. Muted while the assistant
// speaks, open again once it stops.
func (c *Client) SetMuted(ctx context.Context, callID string, muted bool) error {
	req := controlRequest{Type: "unmute-customer"}
	if muted {
		req.Type = "mute-customer"
	}
	if err := c.do(ctx, http.MethodPost, "/call/"+callID+"/control", req, nil); err != nil {
		return fmt.Errorf("set muted %v on call %s: %w", muted, callID, err)
	}
	return nil
}

// do performs one authenticated API request, decoding the response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.UnmarshalRead(resp.Body, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
