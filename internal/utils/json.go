package utils

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	objectSpan = regexp.MustCompile(`(?s)\{.*\}`)
	arraySpan  = regexp.MustCompile(`(?s)\[.*\]`)
)

// ErrNoJSON is returned when no JSON value can be recovered from the text.
var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractJSON decodes the JSON carried by free model output into v. The
// whole text is tried first, then the outermost {...} span, then the
// outermost [...] span, so fenced or chatty answers still decode.
func ExtractJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNoJSON
	}

	candidates := []string{text}
	if m := objectSpan.FindString(text); m != "" && m != text {
		candidates = append(candidates, m)
	}
	if m := arraySpan.FindString(text); m != "" && m != text {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, c := range candidates {
		if lastErr = json.Unmarshal([]byte(c), v); lastErr == nil {
			return nil
		}
	}
	return errors.Join(ErrNoJSON, lastErr)
}
