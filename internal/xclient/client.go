package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the API knows no such user.
var ErrNotFound = errors.New("user not found")

// User is the subset of the X API v2 user object the profile proxy needs.
type User struct {
	ID              string
	Name            string
	Username        string
	ProfileImageURL string
	FollowersCount  int
	TweetCount      int
	ListedCount     int
}

// Client is a bearer-token client for X API v2 user lookups.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func New(baseURL, bearerToken string, rps float64) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(rps), 5),
	}
}

// Enabled reports whether the client has credentials to call the API.
func (c *Client) Enabled() bool { return c != nil && c.bearerToken != "" }

func (c *Client) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var out User
	if username == "" {
		return out, errors.New("empty username")
	}
	u := fmt.Sprintf("%s/users/by/username/%s?user.fields=public_metrics,profile_image_url", c.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return out, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return out, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("x api status %d", resp.StatusCode)
	}

	var raw struct {
		Data *struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
			PublicMetrics   struct {
				FollowersCount int `json:"followers_count"`
				TweetCount     int `json:"tweet_count"`
				ListedCount    int `json:"listed_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Errors []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, err
	}
	// v2 reports unknown users as 200 with an errors array.
	if raw.Data == nil {
		return out, ErrNotFound
	}
	out = User{
		ID:              raw.Data.ID,
		Name:            raw.Data.Name,
		Username:        raw.Data.Username,
		ProfileImageURL: raw.Data.ProfileImageURL,
		FollowersCount:  raw.Data.PublicMetrics.FollowersCount,
		TweetCount:      raw.Data.PublicMetrics.TweetCount,
		ListedCount:     raw.Data.PublicMetrics.ListedCount,
	}
	return out, nil
}
