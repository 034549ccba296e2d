package visuals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	googleSearchURL = "https://www.googleapis.com/customsearch/v1"
	searchTimeout   = 15 * time.Second
	searchCount     = 10
	minImageHeight  = 800
)

var blockedDomains = []string{
	"instagram.com",
	"fbcdn.net",
	"pinterest.com",
	"pinimg.com",
	"tiktok.com",
	"twitter.com",
	"x.com",
	"shutterstock.com",
	"gettyimages.com",
	"alamy.com",
	"dreamstime.com",
	"istockphoto.com",
	"123rf.com",
	"depositphotos.com",
	"stock.adobe.com",
}

// SearchResolver picks a portrait image from Google Custom Search.
type SearchResolver struct {
	apiKey     string
	engineID   string
	httpClient *http.Client
	baseURL    string
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Link  string `json:"link"`
	Image struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image"`
}

type SearchOption func(*SearchResolver)

func withSearchBaseURL(u string) SearchOption {
	return func(s *SearchResolver) { s.baseURL = u }
}

func NewSearchResolver(apiKey, engineID string, opts ...SearchOption) *SearchResolver {
	s := &SearchResolver{
		apiKey:     apiKey,
		engineID:   engineID,
		httpClient: &http.Client{Timeout: searchTimeout},
		baseURL:    googleSearchURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the first acceptable image link, or "" when the search
// came back empty.
func (s *SearchResolver) Resolve(ctx context.Context, prompt string) (string, error) {
	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.engineID)
	params.Set("q", prompt)
	params.Set("searchType", "image")
	params.Set("num", fmt.Sprintf("%d", searchCount))
	params.Set("safe", "active")
	params.Set("imgSize", "xlarge")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("search api error: %s, body: %s", resp.Status, string(body))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	return pickImage(sr.Items), nil
}

// pickImage prefers portrait images tall enough for a vertical frame and
// settles for any unblocked result otherwise.
func pickImage(items []searchItem) string {
	fallback := ""
	for _, item := range items {
		if isBlockedDomain(item.Link) {
			continue
		}
		if item.Image.Height >= minImageHeight && item.Image.Height >= item.Image.Width {
			return item.Link
		}
		if fallback == "" {
			fallback = item.Link
		}
	}
	return fallback
}

func isBlockedDomain(imageURL string) bool {
	u, err := url.Parse(imageURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range blockedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
