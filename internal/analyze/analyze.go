// Package analyze turns extracted document text into a structured summary
// using a large language model.
package analyze

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/JaimeStill/scribe/pkg/formatting"
)

// Result is the normalized model output.
type Result struct {
	Summary   string
	Topics    []string
	Sentiment string
	Actions   []string
	RawOutput string
}

// Analyzer makes a single analysis call. Retries belong to the caller.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// Sentiments are the accepted sentiment labels.
var Sentiments = []string{"positive", "negative", "neutral", "mixed"}

const SystemPrompt = "You are a precise document analysis assistant."

const promptTemplate = `Analyze the document text and return ONLY valid JSON with this exact shape:
{
  "summary": "3-5 sentence concise summary",
  "key_topics": ["topic1", "topic2"],
  "sentiment": "positive|negative|neutral|mixed",
  "actionable_items": ["item1", "item2"]
}

Rules:
- summary must be 3-5 sentences.
- key_topics and actionable_items must be arrays of strings.
- sentiment must be exactly one of: positive, negative, neutral, mixed.
- If no actionable items are present, return an empty array.

Document text:
%s`

// BuildPrompt renders the user prompt, truncating text to maxChars runes.
func BuildPrompt(text string, maxChars int) string {
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
	}
	return fmt.Sprintf(promptTemplate, text)
}

type payload struct {
	Summary         any `json:"summary"`
	KeyTopics       any `json:"key_topics"`
	Sentiment       any `json:"sentiment"`
	ActionableItems any `json:"actionable_items"`
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Normalize parses raw model content and enforces the output contract:
// a 3-5 sentence summary, a known sentiment, and trimmed string lists.
func Normalize(raw string) (Result, error) {
	if strings.TrimSpace(raw) == "" {
		return Result{}, ErrEmptyResponse
	}

	p, err := formatting.Parse[payload](raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	summary := strings.TrimSpace(stringify(p.Summary))
	if n := countSentences(summary); n < 3 || n > 5 {
		return Result{}, fmt.Errorf("%w: summary is not within 3-5 sentences", ErrInvalidResponse)
	}

	sentiment, _ := p.Sentiment.(string)
	if !slices.Contains(Sentiments, sentiment) {
		return Result{}, fmt.Errorf("%w: invalid sentiment value %q", ErrInvalidResponse, sentiment)
	}

	return Result{
		Summary:   summary,
		Topics:    stringList(p.KeyTopics),
		Sentiment: sentiment,
		Actions:   stringList(p.ActionableItems),
		RawOutput: raw,
	}, nil
}

func countSentences(s string) int {
	n := 0
	for _, part := range sentenceSplit.Split(s, -1) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(stringify(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
