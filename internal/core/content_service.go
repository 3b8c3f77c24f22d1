package core

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"xflow.dev/assistant/internal/metrics"
	"xflow.dev/assistant/internal/store"
	"xflow.dev/assistant/internal/utils"
)

const (
	// MinSourceChars gates style analysis and thread splitting.
	MinSourceChars = 50
	// ThreadSegmentLimit is the platform's per-post display limit.
	ThreadSegmentLimit = 280

	defaultNiche  = "Tech"
	trendCount    = 5
	planBatchSize = 4

	defaultScore         = 50
	defaultExplanation   = "Updated."
	defaultReactionQuery = "funny reaction"
	defaultMemeKeywords  = "رياكشن مضحك"
)

var (
	styleUnparsed = store.StyleProfile{Description: "تم التحليل", Traits: []string{"عام"}}
	styleFailed   = store.StyleProfile{Description: "تحليل قياسي", Traits: []string{"Standard"}}

	taskCategories = map[string]string{"high": "High", "medium": "Medium", "low": "Low"}
	taskTypes      = map[string]string{"thread": "Thread", "tweet": "Tweet", "poll": "Poll", "image": "Image"}
)

// CanAnalyzeStyle reports whether the samples are long enough to analyze.
func CanAnalyzeStyle(samples string) bool { return utils.HasMinChars(samples, MinSourceChars) }

// CanSplitThread reports whether the text is long enough to split.
func CanSplitThread(text string) bool { return utils.HasMinChars(text, MinSourceChars) }

// ContentService shapes the text requests and turns whatever comes back into
// usable records.
type ContentService struct {
	llm    TextGenerator
	logger *zap.SugaredLogger
}

func NewContentService(llm TextGenerator, logger *zap.SugaredLogger) *ContentService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ContentService{llm: llm, logger: logger}
}

// generate runs one fire-once call. Quota rejections come back as
// ErrQuotaExceeded; other failures are returned wrapped for the caller to
// decide how to degrade.
func (s *ContentService) generate(ctx context.Context, op, prompt string, schema *genai.Schema) (string, error) {
	text, err := s.llm.GenerateText(ctx, prompt, schema)
	if err != nil {
		if IsQuotaError(err) {
			metrics.ObserveGeneration(op, metrics.OutcomeQuota)
			s.logger.Warnf("%s: quota exhausted: %v", op, err)
			return "", fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
		}
		metrics.ObserveGeneration(op, metrics.OutcomeError)
		s.logger.Errorf("%s: generation failed: %v", op, err)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return text, nil
}

func (s *ContentService) AnalyzeStyle(ctx context.Context, samples string) (*store.StyleProfile, error) {
	if !CanAnalyzeStyle(samples) {
		return nil, ErrInputTooShort
	}

	text, err := s.generate(ctx, "style", styleDNAPrompt(samples), styleSchema)
	if err != nil {
		if IsQuotaError(err) {
			return nil, err
		}
		return newStyle(styleFailed), nil
	}

	var parsed store.StyleProfile
	if err := utils.ExtractJSON(text, &parsed); err != nil || strings.TrimSpace(parsed.Description) == "" {
		metrics.ObserveGeneration("style", metrics.OutcomeFallback)
		s.logger.Warnf("style: unparseable model output, using default profile")
		return newStyle(styleUnparsed), nil
	}

	metrics.ObserveGeneration("style", metrics.OutcomeOK)
	parsed.Traits = utils.CleanStrings(parsed.Traits)
	return newStyle(parsed), nil
}

func newStyle(base store.StyleProfile) *store.StyleProfile {
	return &store.StyleProfile{
		ID:          uuid.NewString(),
		Name:        "Personal Brand DNA",
		Description: base.Description,
		Traits:      append([]string(nil), base.Traits...),
	}
}

// analysisPayload mirrors TweetAnalysis with pointer fields so absent keys
// can be told apart from zero values.
type analysisPayload struct {
	ImprovedVersion     *string  `json:"improvedVersion"`
	Critique            []string `json:"critique"`
	Explanation         *string  `json:"explanation"`
	Hashtags            []string `json:"hashtags"`
	Score               *float64 `json:"score"`
	ReactionSearchQuery *string  `json:"reactionSearchQuery"`
	MemeKeywordsArabic  *string  `json:"memeKeywordsArabic"`
	MemeCaption         *string  `json:"memeCaption"`
}

// AnalyzeDraft rewrites and scores a draft. It is the user's primary action,
// so transport failures surface as ErrGenerationFailed; an answer that is
// not JSON falls back to the untouched draft with a zero score.
func (s *ContentService) AnalyzeDraft(ctx context.Context, draft string, mode store.Mode, style string) (*store.TweetAnalysis, error) {
	if strings.TrimSpace(draft) == "" {
		return nil, ErrEmptyInput
	}
	if mode == "" {
		mode = store.ModeTweet
	}
	if mode != store.ModeTweet && mode != store.ModeReply {
		return nil, ErrInvalidMode
	}

	text, err := s.generate(ctx, "analyze", draftPrompt(draft, mode, style), analysisSchema)
	if err != nil {
		if IsQuotaError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var p analysisPayload
	if err := utils.ExtractJSON(text, &p); err != nil {
		metrics.ObserveGeneration("analyze", metrics.OutcomeFallback)
		s.logger.Warnf("analyze: unparseable model output (%d chars), returning draft", len(text))
		return &store.TweetAnalysis{
			ImprovedVersion: draft,
			Critique:        []string{},
			Hashtags:        []string{},
			Score:           0,
			Mode:            mode,
		}, nil
	}

	metrics.ObserveGeneration("analyze", metrics.OutcomeOK)
	return &store.TweetAnalysis{
		ImprovedVersion:     orDefault(p.ImprovedVersion, draft),
		Critique:            utils.CleanStrings(p.Critique),
		Explanation:         orDefault(p.Explanation, defaultExplanation),
		Hashtags:            utils.CleanStrings(p.Hashtags),
		Score:               clampScore(p.Score),
		ReactionSearchQuery: orDefault(p.ReactionSearchQuery, defaultReactionQuery),
		MemeKeywordsArabic:  orDefault(p.MemeKeywordsArabic, defaultMemeKeywords),
		MemeCaption:         orDefault(p.MemeCaption, ""),
		Mode:                mode,
	}, nil
}

func orDefault(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return strings.TrimSpace(*v)
}

// clampScore maps a missing or zero score to the default and keeps the rest
// within 0..100.
func clampScore(v *float64) int {
	if v == nil || *v == 0 {
		return defaultScore
	}
	switch {
	case *v <= 0 || math.IsNaN(*v):
		return 0
	case *v >= 100:
		return 100
	}
	return int(math.Round(*v))
}

// GenerateThread splits long text into posts. Each segment carries its own
// length and an over-limit flag; nothing is truncated.
func (s *ContentService) GenerateThread(ctx context.Context, text string, psychologyMode bool) ([]store.ThreadSegment, error) {
	if !CanSplitThread(text) {
		return nil, ErrInputTooShort
	}

	out, err := s.generate(ctx, "thread", threadPrompt(text, psychologyMode), stringArraySchema)
	if err != nil {
		if IsQuotaError(err) {
			return nil, err
		}
		return []store.ThreadSegment{}, nil
	}

	parts, ok := parseThread(out)
	if !ok {
		metrics.ObserveGeneration("thread", metrics.OutcomeFallback)
		s.logger.Warn("thread: unparseable model output, returning empty thread")
		return []store.ThreadSegment{}, nil
	}
	metrics.ObserveGeneration("thread", metrics.OutcomeOK)
	return Segments(parts), nil
}

// parseThread accepts a bare array or an object wrapping one array of
// strings (models sometimes answer {"thread": [...]}).
func parseThread(out string) ([]string, bool) {
	var parts []string
	if err := utils.ExtractJSON(out, &parts); err == nil {
		return utils.CleanStrings(parts), true
	}
	var wrapped map[string][]string
	if err := utils.ExtractJSON(out, &wrapped); err == nil {
		for _, v := range wrapped {
			return utils.CleanStrings(v), true
		}
	}
	return nil, false
}

// Segments annotates thread parts with their character counts.
func Segments(parts []string) []store.ThreadSegment {
	segments := make([]store.ThreadSegment, 0, len(parts))
	for i, p := range parts {
		n := utils.CharCount(p)
		segments = append(segments, store.ThreadSegment{
			Index:     i + 1,
			Text:      p,
			Length:    n,
			OverLimit: n > ThreadSegmentLimit,
		})
	}
	return segments
}

func (s *ContentService) GenerateBio(ctx context.Context, info, niche string) (string, error) {
	info = strings.TrimSpace(info)
	if info == "" {
		return "", ErrEmptyInput
	}

	out, err := s.generate(ctx, "bio", bioPrompt(info, strings.TrimSpace(niche)), nil)
	if err != nil {
		if IsQuotaError(err) {
			return "", err
		}
		return "", nil
	}
	metrics.ObserveGeneration("bio", metrics.OutcomeOK)
	return strings.TrimSpace(out), nil
}

func (s *ContentService) TrendingTopics(ctx context.Context, niche string) ([]string, error) {
	niche = nicheOrDefault(niche)

	out, err := s.generate(ctx, "trends", trendsPrompt(niche), stringArraySchema)
	if err != nil {
		if IsQuotaError(err) {
			return nil, err
		}
		return []string{}, nil
	}

	var topics []string
	if err := utils.ExtractJSON(out, &topics); err != nil {
		metrics.ObserveGeneration("trends", metrics.OutcomeFallback)
		return []string{}, nil
	}
	metrics.ObserveGeneration("trends", metrics.OutcomeOK)
	return utils.CleanStrings(topics), nil
}

type planIdea struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// PlanIdeas returns a fresh batch of task cards. Batches are never checked
// against earlier ones.
func (s *ContentService) PlanIdeas(ctx context.Context, niche string) ([]store.TaskCard, error) {
	niche = nicheOrDefault(niche)

	out, err := s.generate(ctx, "plan", planPrompt(niche), planSchema)
	if err != nil {
		if IsQuotaError(err) {
			return nil, err
		}
		return []store.TaskCard{}, nil
	}

	var ideas []planIdea
	if err := utils.ExtractJSON(out, &ideas); err != nil {
		metrics.ObserveGeneration("plan", metrics.OutcomeFallback)
		return []store.TaskCard{}, nil
	}
	metrics.ObserveGeneration("plan", metrics.OutcomeOK)

	cards := make([]store.TaskCard, 0, len(ideas))
	for _, idea := range ideas {
		if strings.TrimSpace(idea.Title) == "" && strings.TrimSpace(idea.Description) == "" {
			continue
		}
		cards = append(cards, store.TaskCard{
			ID:          uuid.NewString(),
			Title:       strings.TrimSpace(idea.Title),
			Category:    normalizeLabel(taskCategories, idea.Category, "Medium"),
			Type:        normalizeLabel(taskTypes, idea.Type, "Tweet"),
			Description: strings.TrimSpace(idea.Description),
			Status:      "pending",
			Date:        "Auto",
			Progress:    0,
		})
	}
	return cards, nil
}

func nicheOrDefault(niche string) string {
	if niche = strings.TrimSpace(niche); niche == "" {
		return defaultNiche
	}
	return niche
}

func normalizeLabel(known map[string]string, v, def string) string {
	if label, ok := known[strings.ToLower(strings.TrimSpace(v))]; ok {
		return label
	}
	return def
}
