package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"xflow.dev/assistant/internal/auth"
	"xflow.dev/assistant/internal/core"
	"xflow.dev/assistant/internal/store"
	"xflow.dev/assistant/internal/xclient"
)

// Services bundles what the handlers call into.
type Services struct {
	Content  *core.ContentService
	Media    *core.MediaService
	Profiles *core.ProfileService
	Sessions *store.Sessions
	Tokens   *auth.SessionTokens
	X        *xclient.Client
}

type APIHandler struct {
	content  *core.ContentService
	media    *core.MediaService
	profiles *core.ProfileService
	sessions *store.Sessions
	tokens   *auth.SessionTokens
	x        *xclient.Client
	logger   *zap.SugaredLogger
}

func NewAPIHandler(s Services, logger *zap.SugaredLogger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &APIHandler{
		content:  s.Content,
		media:    s.Media,
		profiles: s.Profiles,
		sessions: s.Sessions,
		tokens:   s.Tokens,
		x:        s.X,
		logger:   logger,
	}
}

type ctxKey int

const sessionKey ctxKey = iota

func sessionFrom(ctx context.Context) *store.Session {
	sess, _ := ctx.Value(sessionKey).(*store.Session)
	return sess
}

// SessionMiddleware resolves the bearer token to a live page session.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", msgUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		sessionID, err := h.tokens.Validate(tokenString)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", msgUnauthorized)
			return
		}

		sess, ok := h.sessions.Get(sessionID)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "session_expired", msgUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, key messageKey) {
	writeJSON(w, status, errorResponse{Error: localize(r, key), Code: code})
}

// decodeBody reads an optional JSON body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// failOp maps a service error onto a response. quotaKey lets image calls use
// their own retry message.
func (h *APIHandler) failOp(w http.ResponseWriter, r *http.Request, op string, err error, quotaKey messageKey) {
	switch {
	case errors.Is(err, core.ErrQuotaExceeded):
		writeError(w, r, http.StatusTooManyRequests, "quota_exceeded", quotaKey)
	case errors.Is(err, core.ErrInputTooShort):
		writeError(w, r, http.StatusUnprocessableEntity, "input_too_short", msgTooShort)
	case errors.Is(err, core.ErrEmptyInput), errors.Is(err, core.ErrInvalidMode), errors.Is(err, core.ErrInvalidAspect):
		writeError(w, r, http.StatusBadRequest, "invalid_input", msgBadRequest)
	case errors.Is(err, core.ErrBusy):
		writeError(w, r, http.StatusConflict, "busy", msgBusy)
	case errors.Is(err, core.ErrGenerationFailed):
		h.logger.Errorf("%s failed: %v", op, err)
		writeError(w, r, http.StatusBadGateway, "generation_failed", msgUnexpected)
	default:
		h.logger.Errorf("%s failed: %v", op, err)
		writeError(w, r, http.StatusInternalServerError, "internal", msgUnexpected)
	}
}

// begin claims action for the session, answering 409 when it is already
// running.
func (h *APIHandler) begin(w http.ResponseWriter, r *http.Request, action string) (*store.Session, func(), bool) {
	sess := sessionFrom(r.Context())
	done, err := sess.Begin(action)
	if err != nil {
		h.failOp(w, r, action, err, msgQuota)
		return nil, nil, false
	}
	return sess, done, true
}

func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type SessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	ExpiresIn int    `json:"expiresIn"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	token, err := h.tokens.Generate(sess.ID)
	if err != nil {
		h.sessions.End(sess.ID)
		h.failOp(w, r, "session", err, msgQuota)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		Token:     token,
		SessionID: sess.ID,
		ExpiresIn: int(h.sessions.TTL().Seconds()),
	})
}

func (h *APIHandler) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.End(sessionFrom(r.Context()).ID)
	w.WriteHeader(http.StatusNoContent)
}

type AnalyzeStyleRequest struct {
	Samples string `json:"samples"`
}

// AnalyzeStyleHandler derives a style profile and saves it for later rewrites.
func (h *APIHandler) AnalyzeStyleHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeStyleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	sess, done, ok := h.begin(w, r, "style")
	if !ok {
		return
	}
	defer done()

	style, err := h.content.AnalyzeStyle(r.Context(), req.Samples)
	if err != nil {
		h.failOp(w, r, "style", err, msgQuota)
		return
	}
	sess.Store.Set(store.KeyUserStyle, *style)
	writeJSON(w, http.StatusOK, style)
}

func (h *APIHandler) SaveStyleHandler(w http.ResponseWriter, r *http.Request) {
	var style store.StyleProfile
	if err := decodeBody(r, &style); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}
	if strings.TrimSpace(style.Description) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_input", msgBadRequest)
		return
	}
	sessionFrom(r.Context()).Store.Set(store.KeyUserStyle, style)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetStyleHandler(w http.ResponseWriter, r *http.Request) {
	style, ok := store.Get[store.StyleProfile](sessionFrom(r.Context()).Store, store.KeyUserStyle)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, style)
}

func (h *APIHandler) DeleteStyleHandler(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Store.Remove(store.KeyUserStyle)
	w.WriteHeader(http.StatusNoContent)
}

type AnalyzeDraftRequest struct {
	Draft string     `json:"draft"`
	Mode  store.Mode `json:"mode"`
}

// AnalyzeDraftHandler rewrites a draft with the saved style, replacing the
// previous analysis.
func (h *APIHandler) AnalyzeDraftHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeDraftRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	sess, done, ok := h.begin(w, r, "analyze")
	if !ok {
		return
	}
	defer done()

	var styleDesc string
	if style, found := store.Get[store.StyleProfile](sess.Store, store.KeyUserStyle); found {
		styleDesc = style.Description
	}

	analysis, err := h.content.AnalyzeDraft(r.Context(), req.Draft, req.Mode, styleDesc)
	if err != nil {
		h.failOp(w, r, "analyze", err, msgQuota)
		return
	}
	sess.Store.Set(store.KeyLastAnalysis, *analysis)
	writeJSON(w, http.StatusOK, analysis)
}

func (h *APIHandler) LastAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysis, ok := store.Get[store.TweetAnalysis](sessionFrom(r.Context()).Store, store.KeyLastAnalysis)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type MemeSearchRequest struct {
	Query string `json:"query"`
}

type MemeSearchResponse struct {
	Memes        []string `json:"memes"`
	PinterestURL string   `json:"pinterestUrl"`
}

// SearchMemesHandler finds reaction GIFs. Without an explicit query the hints
// of the last analysis are used.
func (h *APIHandler) SearchMemesHandler(w http.ResponseWriter, r *http.Request) {
	var req MemeSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	sess, done, ok := h.begin(w, r, "memes")
	if !ok {
		return
	}
	defer done()

	var last *store.TweetAnalysis
	if a, found := store.Get[store.TweetAnalysis](sess.Store, store.KeyLastAnalysis); found {
		last = &a
	}
	query := req.Query
	if strings.TrimSpace(query) == "" && last != nil {
		query = last.ReactionSearchQuery
	}

	writeJSON(w, http.StatusOK, MemeSearchResponse{
		Memes:        h.media.FindMemes(r.Context(), query),
		PinterestURL: core.PinterestSearchURL(last),
	})
}

type ImageResponse struct {
	ImageURL string `json:"imageUrl"`
	Notice   string `json:"notice,omitempty"`
}

func (h *APIHandler) imageResult(w http.ResponseWriter, r *http.Request, url string) {
	resp := ImageResponse{ImageURL: url}
	if url == "" {
		resp.Notice = localize(r, msgImageFailed)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CustomMemeHandler renders a reaction image for the last analysis.
func (h *APIHandler) CustomMemeHandler(w http.ResponseWriter, r *http.Request) {
	sess, done, ok := h.begin(w, r, "custom_meme")
	if !ok {
		return
	}
	defer done()

	analysis, found := store.Get[store.TweetAnalysis](sess.Store, store.KeyLastAnalysis)
	if !found {
		writeError(w, r, http.StatusNotFound, "not_found", msgNotFound)
		return
	}

	url, err := h.media.ReactionImage(r.Context(), &analysis)
	if err != nil {
		h.failOp(w, r, "custom_meme", err, msgImageQuota)
		return
	}
	h.imageResult(w, r, url)
}

type ImageRequest struct {
	Prompt      string `json:"prompt"`
	Caption     string `json:"caption"`
	AspectRatio string `json:"aspectRatio"`
}

func (h *APIHandler) GenerateImageHandler(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	_, done, ok := h.begin(w, r, "image")
	if !ok {
		return
	}
	defer done()

	url, err := h.media.GenerateImage(r.Context(), req.Prompt, req.Caption, req.AspectRatio)
	if err != nil {
		h.failOp(w, r, "image", err, msgImageQuota)
		return
	}
	h.imageResult(w, r, url)
}

type ThreadRequest struct {
	Text           string `json:"text"`
	PsychologyMode bool   `json:"psychologyMode"`
}

type ThreadResponse struct {
	Segments []store.ThreadSegment `json:"segments"`
}

func (h *APIHandler) ThreadHandler(w http.ResponseWriter, r *http.Request) {
	var req ThreadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	_, done, ok := h.begin(w, r, "thread")
	if !ok {
		return
	}
	defer done()

	segments, err := h.content.GenerateThread(r.Context(), req.Text, req.PsychologyMode)
	if err != nil {
		h.failOp(w, r, "thread", err, msgQuota)
		return
	}
	if segments == nil {
		segments = []store.ThreadSegment{}
	}
	writeJSON(w, http.StatusOK, ThreadResponse{Segments: segments})
}

type BioRequest struct {
	Info  string `json:"info"`
	Niche string `json:"niche"`
}

func (h *APIHandler) BioHandler(w http.ResponseWriter, r *http.Request) {
	var req BioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	_, done, ok := h.begin(w, r, "bio")
	if !ok {
		return
	}
	defer done()

	bio, err := h.content.GenerateBio(r.Context(), req.Info, req.Niche)
	if err != nil {
		h.failOp(w, r, "bio", err, msgQuota)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bio": bio})
}

func (h *APIHandler) TrendsHandler(w http.ResponseWriter, r *http.Request) {
	_, done, ok := h.begin(w, r, "trends")
	if !ok {
		return
	}
	defer done()

	topics, err := h.content.TrendingTopics(r.Context(), r.URL.Query().Get("niche"))
	if err != nil {
		h.failOp(w, r, "trends", err, msgQuota)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"topics": topics})
}

type PlanRequest struct {
	Niche string `json:"niche"`
}

type PlanResponse struct {
	Plan  []store.TaskCard `json:"plan"`
	Added int              `json:"added"`
}

// PlanHandler generates a batch of ideas and puts it in front of the plan.
func (h *APIHandler) PlanHandler(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	sess, done, ok := h.begin(w, r, "plan")
	if !ok {
		return
	}
	defer done()

	cards, err := h.content.PlanIdeas(r.Context(), req.Niche)
	if err != nil {
		h.failOp(w, r, "plan", err, msgQuota)
		return
	}

	existing, _ := store.Get[[]store.TaskCard](sess.Store, store.KeyContentPlan)
	plan := append(append([]store.TaskCard{}, cards...), existing...)
	sess.Store.Set(store.KeyContentPlan, plan)
	writeJSON(w, http.StatusOK, PlanResponse{Plan: plan, Added: len(cards)})
}

func (h *APIHandler) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	plan, _ := store.Get[[]store.TaskCard](sessionFrom(r.Context()).Store, store.KeyContentPlan)
	if plan == nil {
		plan = []store.TaskCard{}
	}
	writeJSON(w, http.StatusOK, PlanResponse{Plan: plan})
}

type ConnectRequest struct {
	Handle string `json:"handle"`
}

func (h *APIHandler) ConnectProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	sess, done, ok := h.begin(w, r, "profile")
	if !ok {
		return
	}
	defer done()

	profile, err := h.profiles.Connect(r.Context(), req.Handle)
	if err != nil {
		h.failOp(w, r, "profile", err, msgQuota)
		return
	}
	sess.Store.Set(store.KeyUserProfile, profile)
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, ok := store.Get[store.UserProfile](sessionFrom(r.Context()).Store, store.KeyUserProfile)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) DisconnectProfileHandler(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Store.Remove(store.KeyUserProfile)
	w.WriteHeader(http.StatusNoContent)
}

type ShareRequest struct {
	Text     string     `json:"text"`
	Hashtags []string   `json:"hashtags"`
	Mode     store.Mode `json:"mode"`
}

type ShareResponse struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// ShareHandler builds the compose intent from the body or, when the body has
// no text, from the last analysis.
func (h *APIHandler) ShareHandler(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", msgBadRequest)
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		analysis, ok := store.Get[store.TweetAnalysis](sessionFrom(r.Context()).Store, store.KeyLastAnalysis)
		if !ok {
			writeError(w, r, http.StatusNotFound, "not_found", msgNotFound)
			return
		}
		req = ShareRequest{Text: analysis.ImprovedVersion, Hashtags: analysis.Hashtags, Mode: analysis.Mode}
	}

	writeJSON(w, http.StatusOK, ShareResponse{
		URL:  core.BuildShareIntent(req.Text, req.Hashtags, req.Mode),
		Text: core.ComposeShareText(req.Text, req.Hashtags, req.Mode),
	})
}
