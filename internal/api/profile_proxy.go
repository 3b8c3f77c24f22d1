package api

import (
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"xflow.dev/assistant/internal/core"
	"xflow.dev/assistant/internal/xclient"
)

type proxyStats struct {
	Followers  string `json:"followers"`
	Engagement string `json:"engagement,omitempty"`
}

type proxyProfile struct {
	Name      string     `json:"name"`
	Handle    string     `json:"handle"`
	AvatarURL string     `json:"avatarUrl"`
	Stats     proxyStats `json:"stats"`
}

// TwitterProfileHandler is the local lookup path used by profile connect.
// Any non-2xx answer makes the caller fall back to the handle-derived profile.
func (h *APIHandler) TwitterProfileHandler(w http.ResponseWriter, r *http.Request) {
	if !h.x.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "lookup_disabled", msgXDisabled)
		return
	}

	handle := core.NormalizeHandle(r.URL.Query().Get("handle"))
	if handle == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_input", msgBadRequest)
		return
	}

	user, err := h.x.GetUserByUsername(r.Context(), handle)
	if errors.Is(err, xclient.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", msgNotFound)
		return
	}
	if err != nil {
		h.logger.Warnf("X lookup for %s failed: %v", handle, err)
		writeError(w, r, http.StatusBadGateway, "lookup_failed", msgUnexpected)
		return
	}

	writeJSON(w, http.StatusOK, proxyProfile{
		Name:      user.Name,
		Handle:    "@" + user.Username,
		AvatarURL: user.ProfileImageURL,
		Stats: proxyStats{
			Followers:  humanize.Comma(int64(user.FollowersCount)),
			Engagement: engagementLevel(user),
		},
	})
}

// engagementLevel is a coarse bucket of listed count per thousand followers.
func engagementLevel(u xclient.User) string {
	if u.FollowersCount == 0 {
		return ""
	}
	perK := float64(u.ListedCount) * 1000 / float64(u.FollowersCount)
	switch {
	case perK >= 10:
		return "High"
	case perK >= 2:
		return "Medium"
	default:
		return "Low"
	}
}
