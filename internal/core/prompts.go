package core

import (
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"xflow.dev/assistant/internal/store"
)

var (
	stringSchema      = &genai.Schema{Type: genai.TypeString}
	stringArraySchema = &genai.Schema{Type: genai.TypeArray, Items: stringSchema}

	styleSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": stringSchema,
			"traits":      stringArraySchema,
		},
	}

	analysisSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"improvedVersion":     stringSchema,
			"critique":            stringArraySchema,
			"explanation":         stringSchema,
			"hashtags":            stringArraySchema,
			"score":               {Type: genai.TypeInteger},
			"reactionSearchQuery": stringSchema,
			"memeKeywordsArabic":  stringSchema,
			"memeCaption":         stringSchema,
		},
	}

	planSchema = &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       stringSchema,
				"category":    stringSchema,
				"type":        stringSchema,
				"description": stringSchema,
			},
			Required: []string{"title", "category", "type", "description"},
		},
	}
)

const memeInstructions = `
- "reactionSearchQuery": Short English keywords for Giphy.
- "memeKeywordsArabic": Arabic search terms for Pinterest.
- "memeCaption": A short, funny Arabic punchline reflecting the tweet content.`

const analysisFields = "Return JSON with improvedVersion, critique (list), explanation, hashtags (list), " +
	"score (integer 0-100 rating the original), reactionSearchQuery, memeKeywordsArabic, memeCaption."

func styleDNAPrompt(samples string) string {
	return fmt.Sprintf(`Analyze these tweets to determine the author's "Style DNA". Tweets: %q. `+
		"Return JSON with description (Arabic) and 3-5 short traits.", samples)
}

func draftPrompt(draft string, mode store.Mode, style string) string {
	var b strings.Builder
	if mode == store.ModeReply {
		fmt.Fprintf(&b, "Write a high-quality Arabic REPLY to: %q.", draft)
		if style != "" {
			fmt.Fprintf(&b, " Persona: %q.", style)
		}
	} else {
		fmt.Fprintf(&b, "Improve this Arabic tweet: %q.", draft)
		if style != "" {
			fmt.Fprintf(&b, " Style: %q.", style)
		}
	}
	b.WriteString(" Critique the original, explain why the new version works and suggest hashtags.")
	b.WriteString(memeInstructions)
	b.WriteString("\n")
	b.WriteString(analysisFields)
	return b.String()
}

func threadPrompt(text string, psychologyMode bool) string {
	prompt := fmt.Sprintf("Split the following text into an Arabic Twitter thread: %q. "+
		"Each tweet must stay under %d characters. Return a JSON array of strings, one per tweet.", text, ThreadSegmentLimit)
	if psychologyMode {
		prompt += " Open with a curiosity hook, build tension across the middle tweets and end with a clear call to action."
	}
	return prompt
}

func bioPrompt(info, niche string) string {
	if niche == "" {
		return fmt.Sprintf("Write an Arabic X/Twitter bio for: %s. Return only the bio text.", info)
	}
	return fmt.Sprintf("Write an Arabic X/Twitter bio for: %s, niche: %s. Return only the bio text.", info, niche)
}

func trendsPrompt(niche string) string {
	return fmt.Sprintf("List %d trending or popular topics within the %q niche on X/Twitter. "+
		"Return as a JSON array of strings in Arabic.", trendCount, niche)
}

func planPrompt(niche string) string {
	return fmt.Sprintf("Generate %d creative content ideas for a social media strategy in the %q niche. "+
		"Include title, category (High/Medium/Low), type (Thread/Tweet/Poll/Image), and description. "+
		"Return as a JSON array of objects.", planBatchSize, niche)
}

func imagePrompt(prompt, caption string) string {
	if caption != "" {
		return fmt.Sprintf("A cinematic high-quality Arabic meme reaction image. Context: %s. No text on image.", prompt)
	}
	return fmt.Sprintf("Abstract background: %s.", prompt)
}
