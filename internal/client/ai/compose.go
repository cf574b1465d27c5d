package ai

import (
	"strings"
	"unicode"

	"github.com/onelinediary/client/internal/client/models"
)

// MaxFeedbackLength bounds the combined feedback text, in runes.
const MaxFeedbackLength = 320

// minPartLength is the floor below which a part is never shrunk.
const minPartLength = 60

// EnsureSentence trims the value and appends a period unless it already ends
// with terminal punctuation. Empty input stays empty.
func EnsureSentence(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return trimmed
	}
	return trimmed + "."
}

// EnsureQuestion trims the value, strips any terminal punctuation and appends
// a single question mark. Empty input stays empty.
func EnsureQuestion(value string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(value), ".?!")
	if trimmed == "" {
		return ""
	}
	return trimmed + "?"
}

// truncate shortens text to at most max runes, replacing the tail with a
// single ellipsis rune. Trailing whitespace before the ellipsis is dropped.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := strings.TrimRightFunc(string(runes[:max-1]), unicode.IsSpace)
	return cut + "…"
}

func runeLen(s string) int { return len([]rune(s)) }

// Compose normalizes the three generated parts into sentences and joins them
// into a single feedback text of at most MaxFeedbackLength runes. When the
// joined text runs over, the micro-step is shrunk first, then the reflection,
// each keeping at least minPartLength runes; a hard truncate of the whole
// text is the final resort. Returns the combined text and the normalized
// parts.
func Compose(parts models.FeedbackParts) (string, models.FeedbackParts) {
	reflection := EnsureSentence(parts.Reflection)
	microStep := EnsureSentence(parts.MicroStep)
	question := EnsureQuestion(parts.Question)

	combined := strings.TrimSpace(reflection + " " + microStep + " " + question)
	if runeLen(combined) > MaxFeedbackLength {
		spare := MaxFeedbackLength - (runeLen(question) + 1)
		microLimit := max(minPartLength, spare-runeLen(reflection))
		adjustedMicro := truncate(microStep, min(microLimit, runeLen(microStep)))
		combined = strings.TrimSpace(reflection + " " + adjustedMicro + " " + question)
		if runeLen(combined) > MaxFeedbackLength {
			reflectionLimit := max(minPartLength, MaxFeedbackLength-(runeLen(adjustedMicro)+runeLen(question)+2))
			adjustedReflection := truncate(reflection, reflectionLimit)
			combined = strings.TrimSpace(adjustedReflection + " " + adjustedMicro + " " + question)
			if runeLen(combined) > MaxFeedbackLength {
				combined = truncate(combined, MaxFeedbackLength)
			}
		}
	}

	return combined, models.FeedbackParts{
		Reflection: reflection,
		MicroStep:  microStep,
		Question:   question,
	}
}
