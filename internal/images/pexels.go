// Package images provides stock-photo search for lesson illustrations and
// the document-scoped bookkeeping that keeps every illustration unique
// within one generated ebook.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the Pexels search endpoint.
const DefaultBaseURL = "https://api.pexels.com/v1"

// DefaultTimeout bounds one search round trip.
const DefaultTimeout = 15 * time.Second

// PlaceholderURL is served when no unique image can be found. It carries no
// provider ID and is therefore exempt from uniqueness tracking.
const PlaceholderURL = "https://placehold.co/1200x675?text=Illustration"

// Photo is one search hit. ID is the provider's opaque identifier; zero
// means "no identifier" (placeholder).
type Photo struct {
	ID  int64
	URL string
}

// Placeholder returns the fallback photo used when search fails or every
// candidate is already taken.
func Placeholder() Photo {
	return Photo{URL: PlaceholderURL}
}

// IsPlaceholder reports whether the photo has no provider identity.
func (p Photo) IsPlaceholder() bool {
	return p.ID == 0
}

// Searcher is the minimal search surface the lesson generator needs.
// page is 1-based.
type Searcher interface {
	Search(ctx context.Context, query string, page int) ([]Photo, error)
}

// PexelsClient implements Searcher against the Pexels REST API.
type PexelsClient struct {
	apiKey     string
	baseURL    string
	perPage    int
	httpClient *http.Client
}

// NewPexelsClient creates a Pexels search client.
func NewPexelsClient(apiKey string) *PexelsClient {
	return &PexelsClient{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		perPage:    3,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// pexelsResponse mirrors the fields of the search payload we consume.
type pexelsResponse struct {
	Photos []struct {
		ID  int64 `json:"id"`
		Src struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Search returns landscape photos for a query. The "large" rendition is
// requested because it prints well at A4 width.
func (c *PexelsClient) Search(ctx context.Context, query string, page int) ([]Photo, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("pexels API key is not configured")
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("orientation", "landscape")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search failed for %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image search returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	photos := make([]Photo, 0, len(payload.Photos))
	for _, p := range payload.Photos {
		if p.Src.Large == "" {
			continue
		}
		photos = append(photos, Photo{ID: p.ID, URL: p.Src.Large})
	}
	return photos, nil
}
