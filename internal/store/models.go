package store

// Mode selects between composing a post and answering someone else's.
type Mode string

const (
	ModeTweet Mode = "TWEET"
	ModeReply Mode = "REPLY"
)

// Session store keys.
const (
	KeyUserStyle    = "user_style"
	KeyLastAnalysis = "last_analysis"
	KeyUserProfile  = "user_profile"
	KeyContentPlan  = "content_plan"
)

type StyleProfile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
}

type TweetAnalysis struct {
	ImprovedVersion     string   `json:"improvedVersion"`
	Critique            []string `json:"critique"`
	Explanation         string   `json:"explanation"`
	Hashtags            []string `json:"hashtags"`
	Score               int      `json:"score"` // 0-100, of the original draft
	ReactionSearchQuery string   `json:"reactionSearchQuery,omitempty"`
	MemeKeywordsArabic  string   `json:"memeKeywordsArabic,omitempty"`
	MemeCaption         string   `json:"memeCaption,omitempty"`
	Mode                Mode     `json:"mode,omitempty"`
}

type ProfileStats struct {
	Followers   string `json:"followers"`
	Impressions string `json:"impressions"`
	Engagement  string `json:"engagement"`
}

type UserProfile struct {
	Name        string       `json:"name"`
	Handle      string       `json:"handle"`
	AvatarURL   string       `json:"avatarUrl"`
	IsConnected bool         `json:"isConnected"`
	Stats       ProfileStats `json:"stats"`
}

type TaskCard struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"` // High, Medium or Low
	Type        string `json:"type"`     // Thread, Tweet, Poll or Image
	Description string `json:"description"`
	Status      string `json:"status"` // pending or completed
	Date        string `json:"date"`
	Progress    int    `json:"progress"`
}

type ThreadSegment struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Length    int    `json:"length"`
	OverLimit bool   `json:"overLimit"`
}
