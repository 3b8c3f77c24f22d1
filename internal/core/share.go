package core

import (
	"net/url"
	"strings"

	"xflow.dev/assistant/internal/store"
)

const tweetIntentURL = "https://twitter.com/intent/tweet"

// ComposeShareText is the final post text: the trimmed body, plus the
// hashtags on their own line when composing a new post.
func ComposeShareText(text string, hashtags []string, mode store.Mode) string {
	final := strings.TrimSpace(text)
	if mode != store.ModeReply && len(hashtags) > 0 {
		final += "\n" + strings.Join(hashtags, " ")
	}
	return final
}

// BuildShareIntent returns the web intent URL that opens a pre-filled
// composer. Nothing is sent; the page opens the URL.
func BuildShareIntent(text string, hashtags []string, mode store.Mode) string {
	q := url.Values{}
	q.Set("text", ComposeShareText(text, hashtags, mode))
	return tweetIntentURL + "?" + q.Encode()
}
