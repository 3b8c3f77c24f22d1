package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"xflow.dev/assistant/internal/auth"
	"xflow.dev/assistant/internal/core"
	"xflow.dev/assistant/internal/store"
	"xflow.dev/assistant/internal/xclient"
)

type fakeText struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (f *fakeText) GenerateText(_ context.Context, prompt string, _ *genai.Schema) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

type fakeImages struct {
	data []byte
	err  error
}

func (f *fakeImages) GenerateImage(context.Context, string, string) ([]byte, string, error) {
	return f.data, "image/png", f.err
}

type testEnv struct {
	router   http.Handler
	sessions *store.Sessions
	llm      *fakeText
}

func newTestEnv(t *testing.T, llm *fakeText, images *fakeImages, lookupURL string, x *xclient.Client) *testEnv {
	t.Helper()
	if llm == nil {
		llm = &fakeText{}
	}
	if images == nil {
		images = &fakeImages{}
	}
	if lookupURL == "" {
		lookupURL = "http://127.0.0.1:1/unreachable"
	}

	sessions := store.NewSessions(time.Hour, nil)
	h := NewAPIHandler(Services{
		Content:  core.NewContentService(llm, nil),
		Media:    core.NewMediaService(images, "", nil),
		Profiles: core.NewProfileService(lookupURL, nil),
		Sessions: sessions,
		Tokens:   auth.NewSessionTokens("test-secret", time.Hour),
		X:        x,
	}, nil)
	return &testEnv{
		router:   NewRouter(h, zap.NewNop(), 5*time.Second),
		sessions: sessions,
		llm:      llm,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) newSession(t *testing.T) (token, id string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.SessionID
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

var longText = strings.Repeat("نص طويل بما يكفي للتحليل. ", 4)

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil, nil, "", nil)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/health", "", nil).Code)

	rr := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "xflow_active_sessions")
}

func TestSessionRequired(t *testing.T) {
	env := newTestEnv(t, nil, nil, "", nil)

	rr := env.do(t, http.MethodGet, "/api/style", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/style", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decode[errorResponse](t, rr).Code)
}

func TestEndSessionWipesState(t *testing.T) {
	env := newTestEnv(t, nil, nil, "", nil)
	token, id := env.newSession(t)

	sess, ok := env.sessions.Get(id)
	require.True(t, ok)
	sess.Store.Set(store.KeyUserStyle, store.StyleProfile{Description: "x"})

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/session", token, nil).Code)
	assert.Zero(t, sess.Store.Len())

	rr := env.do(t, http.MethodGet, "/api/style", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "session_expired", decode[errorResponse](t, rr).Code)
}

func TestStyleLifecycle(t *testing.T) {
	llm := &fakeText{out: `{"description":"ساخر ومختصر","traits":["ساخر"]}`}
	env := newTestEnv(t, llm, nil, "", nil)
	token, _ := env.newSession(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/style", token, nil).Code)

	rr := env.do(t, http.MethodPost, "/api/style/analyze", token, AnalyzeStyleRequest{Samples: longText})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ساخر ومختصر", decode[store.StyleProfile](t, rr).Description)

	rr = env.do(t, http.MethodGet, "/api/style", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"ساخر"}, decode[store.StyleProfile](t, rr).Traits)

	rr = env.do(t, http.MethodPut, "/api/style", token, store.StyleProfile{Description: "رسمي"})
	require.Equal(t, http.StatusNoContent, rr.Code)

	llm.out = `{"improvedVersion":"نسخة"}`
	rr = env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "مسودة", Mode: store.ModeTweet})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, llm.prompts[len(llm.prompts)-1], `Style: "رسمي"`)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/style", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/style", token, nil).Code)
}

func TestAnalyzeStyleTooShort(t *testing.T) {
	llm := &fakeText{}
	env := newTestEnv(t, llm, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/style/analyze", token, AnalyzeStyleRequest{Samples: "قصير"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Empty(t, llm.prompts)
}

func TestAnalyzeDraftNonJSONFallsBack(t *testing.T) {
	env := newTestEnv(t, &fakeText{out: "I can't do that"}, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "مسودتي"})
	require.Equal(t, http.StatusOK, rr.Code)
	a := decode[store.TweetAnalysis](t, rr)
	assert.Equal(t, "مسودتي", a.ImprovedVersion)
	assert.Zero(t, a.Score)
}

func TestAnalyzeDraftRedactsStoredCopy(t *testing.T) {
	env := newTestEnv(t, &fakeText{out: `{"improvedVersion":"راسلني على me@example.com","score":80}`}, nil, "", nil)
	token, _ := env.newSession(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/tweets/last", token, nil).Code)

	rr := env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d", Mode: store.ModeTweet})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/tweets/last", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	last := decode[store.TweetAnalysis](t, rr)
	assert.Equal(t, "راسلني على [REDACTED]", last.ImprovedVersion)
	assert.Equal(t, 80, last.Score)
}

func TestAnalyzeDraftQuotaIsLocalized(t *testing.T) {
	env := newTestEnv(t, &fakeText{err: errors.New("googleapi: Error 429: quota")}, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	body := decode[errorResponse](t, rr)
	assert.Equal(t, "quota_exceeded", body.Code)
	assert.Equal(t, messages[language.Arabic][msgQuota], body.Error)
	assert.Contains(t, body.Error, "الحصة")

	rr = env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"}, "Accept-Language", "en-US,en;q=0.9")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, decode[errorResponse](t, rr).Error, "quota exceeded")
}

func TestAnalyzeDraftTransportFailure(t *testing.T) {
	env := newTestEnv(t, &fakeText{err: errors.New("connection reset by peer")}, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "generation_failed", decode[errorResponse](t, rr).Code)

	rr = env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d", Mode: "DM"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDuplicateActionIsRejected(t *testing.T) {
	env := newTestEnv(t, &fakeText{out: `{}`}, nil, "", nil)
	token, id := env.newSession(t)

	sess, ok := env.sessions.Get(id)
	require.True(t, ok)
	done, err := sess.Begin("analyze")
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	done()
	rr = env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestThreadBelowMinimumIsRejected(t *testing.T) {
	llm := &fakeText{}
	env := newTestEnv(t, llm, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/threads", token, ThreadRequest{Text: "قصة قصيرة جدا"}, "Accept-Language", "en")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[errorResponse](t, rr)
	assert.Equal(t, "input_too_short", body.Code)
	assert.Contains(t, body.Error, "50 characters")
	assert.Empty(t, llm.prompts)
}

func TestThreadSegments(t *testing.T) {
	env := newTestEnv(t, &fakeText{out: `["` + strings.Repeat("a", 281) + `","b"]`}, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/threads", token, ThreadRequest{Text: longText})
	require.Equal(t, http.StatusOK, rr.Code)
	segs := decode[ThreadResponse](t, rr).Segments
	require.Len(t, segs, 2)
	assert.True(t, segs[0].OverLimit)
	assert.Equal(t, 2, segs[1].Index)
}

func TestPlanPrependsBatches(t *testing.T) {
	llm := &fakeText{out: `[{"title":"a","category":"High","type":"Thread","description":"d"},{"title":"b","category":"Low","type":"Poll","description":"d"}]`}
	env := newTestEnv(t, llm, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodGet, "/api/plan", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[PlanResponse](t, rr).Plan)

	rr = env.do(t, http.MethodPost, "/api/plan", token, PlanRequest{Niche: "Tech"})
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[PlanResponse](t, rr)
	assert.Equal(t, 2, first.Added)

	llm.out = `[{"title":"c","category":"Medium","type":"Tweet","description":"d"}]`
	rr = env.do(t, http.MethodPost, "/api/plan", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/plan", token, nil)
	plan := decode[PlanResponse](t, rr).Plan
	require.Len(t, plan, 3)
	assert.Equal(t, "c", plan[0].Title)
	assert.Equal(t, first.Plan[0].ID, plan[1].ID)
}

func TestTrendsAndBio(t *testing.T) {
	llm := &fakeText{out: `["Go","Rust"]`}
	env := newTestEnv(t, llm, nil, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodGet, "/api/trends?niche=Dev", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Go", "Rust"}, decode[map[string][]string](t, rr)["topics"])
	assert.Contains(t, llm.prompts[0], `"Dev"`)

	llm.out = "مطور Go"
	rr = env.do(t, http.MethodPost, "/api/bio", token, BioRequest{Info: "مطور"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "مطور Go", decode[map[string]string](t, rr)["bio"])
}

func TestMemesAndImages(t *testing.T) {
	llm := &fakeText{out: `{"improvedVersion":"x","reactionSearchQuery":"facepalm","memeKeywordsArabic":"صدمة"}`}
	env := newTestEnv(t, llm, &fakeImages{data: []byte("img")}, "", nil)
	token, _ := env.newSession(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/memes/custom", token, nil).Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"}).Code)

	rr := env.do(t, http.MethodPost, "/api/memes/search", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	memes := decode[MemeSearchResponse](t, rr)
	assert.Len(t, memes.Memes, 2)
	assert.Contains(t, memes.Memes[0], "q=facepalm")
	assert.Contains(t, memes.PinterestURL, "%D8%B5%D8%AF%D9%85%D8%A9")

	rr = env.do(t, http.MethodPost, "/api/memes/custom", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "data:image/png;base64,aW1n", decode[ImageResponse](t, rr).ImageURL)

	rr = env.do(t, http.MethodPost, "/api/images", token, ImageRequest{Prompt: "sky", AspectRatio: "5:4"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImageQuotaAndEmptyResult(t *testing.T) {
	images := &fakeImages{err: errors.New("RESOURCE_EXHAUSTED")}
	env := newTestEnv(t, nil, images, "", nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/images", token, ImageRequest{Prompt: "sky"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, messages[language.Arabic][msgImageQuota], decode[errorResponse](t, rr).Error)

	images.err = core.ErrNoImage
	rr = env.do(t, http.MethodPost, "/api/images", token, ImageRequest{Prompt: "sky"})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ImageResponse](t, rr)
	assert.Empty(t, resp.ImageURL)
	assert.NotEmpty(t, resp.Notice)
}

func TestProfileConnectAndDisconnect(t *testing.T) {
	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer lookup.Close()

	env := newTestEnv(t, nil, nil, lookup.URL, nil)
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/profile", token, ConnectRequest{Handle: "@someone"})
	require.Equal(t, http.StatusOK, rr.Code)
	p := decode[store.UserProfile](t, rr)
	assert.Equal(t, "@someone", p.Handle)
	assert.Equal(t, "---", p.Stats.Followers)

	rr = env.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[store.UserProfile](t, rr).IsConnected)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/profile", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/profile", token, nil).Code)

	rr = env.do(t, http.MethodPost, "/api/profile", token, ConnectRequest{Handle: "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfileThroughLocalProxy(t *testing.T) {
	xapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by/username/jack", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"12","name":"Jack","username":"jack","profile_image_url":"https://p/j.png",
			"public_metrics":{"followers_count":6500000,"listed_count":30000}}}`))
	}))
	defer xapi.Close()

	var router http.Handler
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	defer app.Close()

	env := newTestEnv(t, nil, nil, app.URL+"/api/twitter/profile", xclient.New(xapi.URL, "tok", 100))
	router = env.router
	token, _ := env.newSession(t)

	rr := env.do(t, http.MethodPost, "/api/profile", token, ConnectRequest{Handle: "@jack"})
	require.Equal(t, http.StatusOK, rr.Code)
	p := decode[store.UserProfile](t, rr)
	assert.Equal(t, "Jack", p.Name)
	assert.Equal(t, "@jack", p.Handle)
	assert.Equal(t, "6,500,000", p.Stats.Followers)
	assert.Equal(t, "Hidden", p.Stats.Impressions)
	assert.Equal(t, "Medium", p.Stats.Engagement)
}

func TestTwitterProfileDisabled(t *testing.T) {
	env := newTestEnv(t, nil, nil, "", xclient.New("http://unused", "", 1))
	rr := env.do(t, http.MethodGet, "/api/twitter/profile?handle=jack", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	env = newTestEnv(t, nil, nil, "", nil)
	rr = env.do(t, http.MethodGet, "/api/twitter/profile?handle=jack", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestShare(t *testing.T) {
	env := newTestEnv(t, &fakeText{out: `{"improvedVersion":"نسخة","hashtags":["#go"]}`}, nil, "", nil)
	token, _ := env.newSession(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/share", token, nil).Code)

	rr := env.do(t, http.MethodPost, "/api/share", token, ShareRequest{Text: "رد", Hashtags: []string{"#x"}, Mode: store.ModeReply})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "رد", decode[ShareResponse](t, rr).Text)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/tweets/analyze", token, AnalyzeDraftRequest{Draft: "d"}).Code)
	rr = env.do(t, http.MethodPost, "/api/share", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	share := decode[ShareResponse](t, rr)
	assert.Equal(t, "نسخة\n#go", share.Text)
	assert.True(t, strings.HasPrefix(share.URL, "https://twitter.com/intent/tweet?text="))
}
