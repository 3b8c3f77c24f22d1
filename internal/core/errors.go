package core

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"xflow.dev/assistant/internal/store"
)

var (
	// ErrQuotaExceeded means the generative backend refused the call for
	// quota or rate-limit reasons. Callers show a retry-later message.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrGenerationFailed is only returned for the user's primary request
	// (rewriting a draft); every other operation degrades to defaults.
	ErrGenerationFailed = errors.New("generation failed")
	ErrInputTooShort    = errors.New("input below minimum length")
	ErrEmptyInput       = errors.New("input is empty")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidAspect    = errors.New("unsupported aspect ratio")
	ErrNoImage          = errors.New("no image in response")
	ErrBusy             = store.ErrBusy
)

var quotaMarkers = []string{"429", "quota", "resource_exhausted", "limit_reached"}

// IsQuotaError reports whether err is a quota or rate-limit rejection.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
