package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
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
	defaultAspectRatio = "1:1"
	defaultMemeQuery   = "funny meme"
	giphyLimit         = 8

	fixedReactionGIF = "https://media.giphy.com/media/3o7TKr3nzbh5WgCFxe/giphy.gif"
	taggedGIFBase    = "https://media.giphy.com/media/v1.Y2lkPTc5MGI3NjExbXdleWljYmR2eWljYmR2eWljYmR2/giphy.gif"
)

var aspectRatios = map[string]bool{"1:1": true, "3:4": true, "4:3": true, "9:16": true, "16:9": true}

// MediaService covers meme lookup and image generation.
type MediaService struct {
	images     ImageGenerator
	httpClient *http.Client
	giphyURL   string
	giphyKey   string
	logger     *zap.SugaredLogger
}

func NewMediaService(images ImageGenerator, giphyKey string, logger *zap.SugaredLogger) *MediaService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MediaService{
		images:     images,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		giphyURL:   "https://api.giphy.com/v1/gifs/search",
		giphyKey:   giphyKey,
		logger:     logger,
	}
}

// FindMemes returns reaction GIF URLs for query. Without a Giphy key, or when
// Giphy fails, the fixed pair is returned.
func (s *MediaService) FindMemes(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		query = defaultMemeQuery
	}

	if s.giphyKey != "" {
		urls, err := s.searchGiphy(ctx, query)
		if err == nil && len(urls) > 0 {
			return urls
		}
		if err != nil {
			s.logger.Warnf("Giphy search for %q failed, using fixed reactions: %v", query, err)
		}
	}
	return []string{
		taggedGIFBase + "?q=" + url.QueryEscape(query),
		fixedReactionGIF,
	}
}

func (s *MediaService) searchGiphy(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("api_key", s.giphyKey)
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(giphyLimit))
	params.Set("rating", "pg-13")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.giphyURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("giphy status %d", resp.StatusCode)
	}

	var raw struct {
		Data []struct {
			Images struct {
				Original struct {
					URL string `json:"url"`
				} `json:"original"`
			} `json:"images"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode giphy response: %w", err)
	}
	urls := make([]string, 0, len(raw.Data))
	for _, d := range raw.Data {
		if u := d.Images.Original.URL; u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// PinterestSearchURL builds the local-meme search link for an analysis.
func PinterestSearchURL(a *store.TweetAnalysis) string {
	q := defaultMemeKeywords
	if a != nil {
		switch {
		case strings.TrimSpace(a.MemeKeywordsArabic) != "":
			q = a.MemeKeywordsArabic
		case strings.TrimSpace(a.ReactionSearchQuery) != "":
			q = a.ReactionSearchQuery
		}
	}
	return "https://www.pinterest.com/search/pins/?q=" + url.QueryEscape(q)
}

// GenerateImage renders prompt as a data URL. An empty string with a nil
// error means the backend produced no image.
func (s *MediaService) GenerateImage(ctx context.Context, prompt, caption, aspectRatio string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyInput
	}
	if aspectRatio == "" {
		aspectRatio = defaultAspectRatio
	}
	if !aspectRatios[aspectRatio] {
		return "", ErrInvalidAspect
	}

	data, mime, err := s.images.GenerateImage(ctx, imagePrompt(prompt, strings.TrimSpace(caption)), aspectRatio)
	if err != nil {
		if IsQuotaError(err) {
			metrics.ObserveGeneration("image", metrics.OutcomeQuota)
			return "", fmt.Errorf("image: %w", ErrQuotaExceeded)
		}
		if errors.Is(err, ErrNoImage) {
			metrics.ObserveGeneration("image", metrics.OutcomeFallback)
		} else {
			metrics.ObserveGeneration("image", metrics.OutcomeError)
			s.logger.Errorf("image: generation failed: %v", err)
		}
		return "", nil
	}

	metrics.ObserveGeneration("image", metrics.OutcomeOK)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ReactionImage generates a custom meme for the hints of an analysis.
func (s *MediaService) ReactionImage(ctx context.Context, a *store.TweetAnalysis) (string, error) {
	query := "laughing"
	caption := ""
	if a != nil {
		if q := strings.TrimSpace(a.ReactionSearchQuery); q != "" {
			query = q
		}
		caption = a.MemeCaption
	}
	return s.GenerateImage(ctx, "Expressive reaction image: "+query, caption, defaultAspectRatio)
}
