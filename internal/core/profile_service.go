package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"xflow.dev/assistant/internal/metrics"
	"xflow.dev/assistant/internal/store"
)

const (
	avatarBase      = "https://unavatar.io/twitter/"
	statPlaceholder = "---"
)

// NormalizeHandle trims the input and drops the first '@'.
func NormalizeHandle(input string) string {
	return strings.TrimSpace(strings.Replace(strings.TrimSpace(input), "@", "", 1))
}

// FallbackProfile is derived from the handle alone.
func FallbackProfile(handle string) store.UserProfile {
	return store.UserProfile{
		Name:        handle,
		Handle:      "@" + handle,
		AvatarURL:   avatarBase + handle,
		IsConnected: true,
		Stats: store.ProfileStats{
			Followers:   statPlaceholder,
			Impressions: statPlaceholder,
			Engagement:  statPlaceholder,
		},
	}
}

// ProfileService resolves handles through the local profile lookup path.
type ProfileService struct {
	lookupURL  string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewProfileService(lookupURL string, logger *zap.SugaredLogger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ProfileService{
		lookupURL:  lookupURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type lookupResponse struct {
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatarUrl"`
	Stats     *struct {
		Followers  string `json:"followers"`
		Engagement string `json:"engagement"`
	} `json:"stats"`
}

// Connect looks the handle up. Lookup failures of any kind are absorbed into
// the fallback profile and never reach the user.
func (s *ProfileService) Connect(ctx context.Context, handleInput string) (store.UserProfile, error) {
	handle := NormalizeHandle(handleInput)
	if handle == "" {
		return store.UserProfile{}, ErrEmptyInput
	}

	data, err := s.lookup(ctx, handle)
	if err != nil {
		metrics.ProfileFallbacks.Inc()
		s.logger.Infof("Profile lookup for %s failed, using fallback: %v", handle, err)
		return FallbackProfile(handle), nil
	}

	p := FallbackProfile(handle)
	if data.Name != "" {
		p.Name = data.Name
	}
	if data.Handle != "" {
		p.Handle = data.Handle
	}
	if data.AvatarURL != "" {
		p.AvatarURL = data.AvatarURL
	}
	p.Stats.Impressions = "Hidden"
	p.Stats.Engagement = "Medium"
	if data.Stats != nil {
		if data.Stats.Followers != "" {
			p.Stats.Followers = data.Stats.Followers
		}
		if data.Stats.Engagement != "" {
			p.Stats.Engagement = data.Stats.Engagement
		}
	}
	return p, nil
}

func (s *ProfileService) lookup(ctx context.Context, handle string) (*lookupResponse, error) {
	u := s.lookupURL + "?handle=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("profile lookup status %d", resp.StatusCode)
	}

	var data lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &data, nil
}
