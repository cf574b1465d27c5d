package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/onelinediary/client/internal/client/models"
	"github.com/onelinediary/client/internal/datex"
)

var positiveWords = []string{"grateful", "happy", "good", "great", "excited", "calm", "proud", "energized"}

var negativeWords = []string{"sad", "tired", "bad", "anxious", "angry", "stressed", "worried", "overwhelmed", "frustrated"}

type sentiment string

const (
	sentimentPositive sentiment = "positive"
	sentimentNegative sentiment = "negative"
	sentimentNeutral  sentiment = "neutral"
)

func detectSentiment(text string) sentiment {
	lower := strings.ToLower(text)
	hasPositive := containsAny(lower, positiveWords)
	hasNegative := containsAny(lower, negativeWords)
	switch {
	case hasPositive && !hasNegative:
		return sentimentPositive
	case hasNegative && !hasPositive:
		return sentimentNegative
	default:
		return sentimentNeutral
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// calculateStreak counts consecutive journaling days ending at the entry's
// date. History dates may repeat; only unique dates count, and the first gap
// larger than one day stops the streak.
func calculateStreak(entry *models.Entry, history []models.Entry) int {
	seen := map[string]struct{}{entry.EntryDate: {}}
	dates := []string{entry.EntryDate}
	for _, h := range history {
		if _, ok := seen[h.EntryDate]; ok {
			continue
		}
		seen[h.EntryDate] = struct{}{}
		dates = append(dates, h.EntryDate)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	streak := 1
	for i := 0; i < len(dates)-1; i++ {
		cur, err := datex.ParseISODate(dates[i])
		if err != nil {
			break
		}
		next, err := datex.ParseISODate(dates[i+1])
		if err != nil {
			break
		}
		if int(cur.Sub(next).Hours()/24) == 1 {
			streak++
		} else {
			break
		}
	}
	return streak
}

type moodSummary struct {
	windowSize int
	counts     map[sentiment]int
	dominant   sentiment
}

// summarizeMood classifies today's entry plus up to three recent one-liners
// and picks the dominant mood of the window.
func summarizeMood(entry *models.Entry, history []models.Entry) moodSummary {
	window := []string{entry.OneLiner}
	for i := 0; i < len(history) && i < 3; i++ {
		window = append(window, history[i].OneLiner)
	}

	counts := map[sentiment]int{}
	for _, text := range window {
		counts[detectSentiment(text)]++
	}

	dominant := sentimentNeutral
	best := 0
	for _, m := range []sentiment{sentimentPositive, sentimentNegative, sentimentNeutral} {
		if counts[m] > best {
			dominant, best = m, counts[m]
		}
	}
	return moodSummary{windowSize: len(window), counts: counts, dominant: dominant}
}

// BuildPrompt renders the user message for the generation request: today's
// one-liner, the recent history most recent first, the streak and the mood
// trend.
func BuildPrompt(entry *models.Entry, history []models.Entry) string {
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("- %s: %s", h.EntryDate, h.OneLiner))
	}
	formatted := strings.Join(lines, "\n")
	if formatted == "" {
		formatted = "None"
	}

	streak := calculateStreak(entry, history)
	mood := summarizeMood(entry, history)
	trend := fmt.Sprintf(
		"Mood trend (last %d entries): %s — positive %d, neutral %d, negative %d.",
		mood.windowSize, mood.dominant,
		mood.counts[sentimentPositive], mood.counts[sentimentNeutral], mood.counts[sentimentNegative],
	)

	return fmt.Sprintf("Today is %s. The user wrote: %q. Recent entries (most recent first):\n%s\nStreak: %d day(s). %s",
		entry.EntryDate, entry.OneLiner, formatted, streak, trend)
}

// systemPrompt is the coaching instruction for the generation request.
func systemPrompt(language Language) string {
	return fmt.Sprintf("You are a calm journaling coach. Detect the primary language of the user entry and respond entirely in that language. The entry appears to be in %s; if you clearly identify another language, use that instead. Use the provided streak and mood trend context to personalize your coaching: acknowledge useful patterns, highlight consistency, and avoid repeating identical phrasing from earlier feedback. Respond using JSON that contains a short reflection (1 sentence), a micro_step suggestion for tomorrow (1 specific action), and a guiding question (open-ended). Tone: respectful, encouraging, no emojis, no clinical language. Keep the combined response within 320 characters when the sentences are read together.", language.DisplayName())
}
