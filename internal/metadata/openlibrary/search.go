package openlibrary

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"net/url"

	"github.com/readingcompanion/companion-server/internal/domain"
)

const defaultLimit = 10

// Search queries OpenLibrary for works matching the query and maps them
// to library candidates. Works without a title are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]domain.BookSearchResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", defaultLimit))
	params.Set("fields", "key,title,author_name,first_publish_year,cover_i,isbn")

	searchURL := c.baseURL + "/search.json?" + params.Encode()

	c.logger.Debug("searching OpenLibrary", "query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.UnmarshalRead(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	c.logger.Debug("OpenLibrary search results", "query", query, "count", searchResp.NumFound)

	results := make([]domain.BookSearchResult, 0, len(searchResp.Docs))
	for i := range searchResp.Docs {
		doc := &searchResp.Docs[i]
		if doc.Title == "" {
			continue
		}

		r := domain.BookSearchResult{
			ID:    bookID(doc),
			Title: doc.Title,
			Year:  doc.FirstPublishYear,
		}
		if len(doc.AuthorName) > 0 {
			r.Author = doc.AuthorName[0]
		}
		if doc.CoverID > 0 {
			r.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverID)
		}
		results = append(results, r)
	}
	return results, nil
}

// bookID picks a stable identifier for a work: ISBN-13 when present,
// then ISBN-10, then the OpenLibrary work key.
func bookID(doc *searchDoc) string {
	var isbn10 string
	for _, isbn := range doc.ISBN {
		switch len(isbn) {
		case 13:
			return isbn
		case 10:
			if isbn10 == "" {
				isbn10 = isbn
			}
		}
	}
	if isbn10 != "" {
		return isbn10
	}
	return doc.Key
}
