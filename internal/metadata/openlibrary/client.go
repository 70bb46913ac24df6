// Package openlibrary provides access to the OpenLibrary search API for
// book metadata and covers.
package openlibrary

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/readingcompanion/companion-server/internal/logger"
)

// Client talks to the OpenLibrary search API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *logger.Logger
}

// NewClient creates a new OpenLibrary client.
// OpenLibrary asks for no more than one request per second sustained.
func NewClient(baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
		logger:      log,
	}
}

// wait blocks until the rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}
