// Package reviewapi is a client for the upstream games-store review API:
// paginated per-title reviews, store search, and the applist used by the
// seed/backfill collaborator. Response structs use the upstream's exact
// field names.
package reviewapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the upstream store's public review/search/applist
// endpoints. BaseURL defaults to the real store host but is overridable for
// tests; AppListBaseURL is separate because the upstream serves GetAppList
// from a different host than reviews/search.
type Client struct {
	BaseURL        string
	AppListBaseURL string
	client         *http.Client
}

// New builds a client with conservative transport timeouts and a bounded
// per-host connection count.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://store.steampowered.com"
	}
	return &Client{
		BaseURL:        baseURL,
		AppListBaseURL: "https://api.steampowered.com",
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConns:          100,
				MaxConnsPerHost:       10,
			},
		},
	}
}

// ReviewsResponse is the upstream appreviews response shape.
type ReviewsResponse struct {
	Reviews      []RawReview `json:"reviews"`
	QuerySummary struct {
		TotalReviews int `json:"total_reviews"`
		NumReviews   int `json:"num_reviews"`
	} `json:"query_summary"`
	Cursor string `json:"cursor"`
}

// RawReview is one upstream review record, field names matching the
// upstream JSON exactly.
type RawReview struct {
	RecommendationID  string `json:"recommendationid"`
	TimestampCreated  int64  `json:"timestamp_created"`
	TimestampUpdated  int64  `json:"timestamp_updated"`
	VotedUp           bool   `json:"voted_up"`
	Review            string `json:"review"`
	Language          string `json:"language"`
	WrittenDuringEA   bool   `json:"written_during_early_access"`
	ReceivedForFree   bool   `json:"received_for_free"`
	VotesHelpful      int    `json:"votes_helpful"`
	WeightedVoteScore string `json:"weighted_vote_score"`
	CommentCount      int    `json:"comment_count"`
	SteamPurchase     bool   `json:"steam_purchase"`
	Author            struct {
		PlaytimeForever      int   `json:"playtime_forever"`
		NumGamesOwned        int   `json:"num_games_owned"`
		NumReviews           int   `json:"num_reviews"`
		PlaytimeLastTwoWeeks int   `json:"playtime_last_two_weeks"`
		LastPlayed           int64 `json:"last_played"`
	} `json:"author"`
}

// GetReviews fetches one page of reviews for appID starting at cursor ("*"
// for the newest page), requesting language and num_per_page=100 with
// filter=recent.
func (c *Client) GetReviews(ctx context.Context, appID int64, language, cursor string) (*ReviewsResponse, error) {
	u := fmt.Sprintf("%s/appreviews/%d", c.BaseURL, appID)
	q := url.Values{}
	q.Set("json", "1")
	q.Set("filter", "recent")
	q.Set("language", language)
	q.Set("num_per_page", "100")
	q.Set("cursor", cursor)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build reviews request: %w", err)
	}

	var out ReviewsResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, fmt.Errorf("fetch reviews for app %d: %w", appID, err)
	}
	return &out, nil
}

// AppListResponse is the upstream GetAppList response shape.
type AppListResponse struct {
	AppList struct {
		Apps []struct {
			AppID int64  `json:"appid"`
			Name  string `json:"name"`
		} `json:"apps"`
	} `json:"applist"`
}

// GetAppList fetches the full catalog of known titles, used by the
// seed/backfill collaborator. Entries with blank names are filtered by the
// caller.
func (c *Client) GetAppList(ctx context.Context) (*AppListResponse, error) {
	u := fmt.Sprintf("%s/ISteamApps/GetAppList/v2/", c.AppListBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build applist request: %w", err)
	}

	var out AppListResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, fmt.Errorf("fetch applist: %w", err)
	}
	return &out, nil
}

// SearchResult is a single entry from the upstream store search.
type SearchResult struct {
	AppID int64
	Name  string
}

const storeSearchChunkCap = 50

// SearchGames dispatches numeric queries to the app-details endpoint as an
// exact lookup and textual queries to the store-search endpoint, paging in
// chunks of storeSearchChunkCap to fulfil a larger requested count (the
// upstream caps results per request).
func (c *Client) SearchGames(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if appID, err := strconv.ParseInt(query, 10, 64); err == nil {
		name, ok, err := c.getAppName(ctx, appID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []SearchResult{{AppID: appID, Name: name}}, nil
	}

	var out []SearchResult
	for start := 0; len(out) < count; start += storeSearchChunkCap {
		chunk, err := c.searchChunk(ctx, query, start, storeSearchChunkCap)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
	}
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (c *Client) getAppName(ctx context.Context, appID int64) (string, bool, error) {
	u := fmt.Sprintf("%s/api/appdetails", c.BaseURL)
	q := url.Values{}
	q.Set("appids", strconv.FormatInt(appID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("build appdetails request: %w", err)
	}

	var raw map[string]struct {
		Success bool `json:"success"`
		Data    struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.doJSON(req, &raw); err != nil {
		return "", false, fmt.Errorf("fetch appdetails for %d: %w", appID, err)
	}
	entry, ok := raw[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success {
		return "", false, nil
	}
	return entry.Data.Name, true, nil
}

func (c *Client) searchChunk(ctx context.Context, query string, start, count int) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/api/storesearch", c.BaseURL)
	q := url.Values{}
	q.Set("term", query)
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build storesearch request: %w", err)
	}

	var raw struct {
		Items []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := c.doJSON(req, &raw); err != nil {
		return nil, fmt.Errorf("storesearch %q: %w", query, err)
	}

	out := make([]SearchResult, 0, len(raw.Items))
	for _, item := range raw.Items {
		out = append(out, SearchResult{AppID: item.ID, Name: item.Name})
	}
	return out, nil
}

func (c *Client) doJSON(req *http.Request, v any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store api http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
