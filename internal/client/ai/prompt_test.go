package ai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onelinediary/client/internal/client/models"
)

func history(dates ...string) []models.Entry {
	out := make([]models.Entry, 0, len(dates))
	for _, d := range dates {
		out = append(out, models.Entry{EntryDate: d, OneLiner: "x"})
	}
	return out
}

func TestCalculateStreak(t *testing.T) {
	entry := &models.Entry{EntryDate: "2024-03-10"}

	require.Equal(t, 1, calculateStreak(entry, nil))
	require.Equal(t, 3, calculateStreak(entry, history("2024-03-09", "2024-03-08")))
	require.Equal(t, 2, calculateStreak(entry, history("2024-03-09", "2024-03-07")), "gap ends the streak")
	require.Equal(t, 3, calculateStreak(entry, history("2024-03-09", "2024-03-09", "2024-03-08")), "duplicates count once")
	require.Equal(t, 4, calculateStreak(entry, history("2024-03-09", "2024-03-08", "2024-03-07", "2024-02-01")))

	// month boundary
	feb := &models.Entry{EntryDate: "2024-03-01"}
	require.Equal(t, 3, calculateStreak(feb, history("2024-02-29", "2024-02-28")))
}

func TestSummarizeMood(t *testing.T) {
	entry := &models.Entry{EntryDate: "2024-03-10", OneLiner: "grateful for a calm morning"}
	hist := []models.Entry{
		{EntryDate: "2024-03-09", OneLiner: "happy and proud"},
		{EntryDate: "2024-03-08", OneLiner: "tired and stressed"},
		{EntryDate: "2024-03-07", OneLiner: "an ordinary day"},
		{EntryDate: "2024-03-06", OneLiner: "this one is outside the window, sad"},
	}

	mood := summarizeMood(entry, hist)
	require.Equal(t, 4, mood.windowSize, "window is today plus at most three")
	require.Equal(t, sentimentPositive, mood.dominant)
	require.Equal(t, 2, mood.counts[sentimentPositive])
	require.Equal(t, 1, mood.counts[sentimentNegative])
	require.Equal(t, 1, mood.counts[sentimentNeutral])
}

func TestDetectSentiment(t *testing.T) {
	require.Equal(t, sentimentPositive, detectSentiment("Grateful for today"))
	require.Equal(t, sentimentNegative, detectSentiment("so ANXIOUS lately"))
	require.Equal(t, sentimentNeutral, detectSentiment("went to the store"))
	require.Equal(t, sentimentNeutral, detectSentiment("happy but tired"), "mixed signals stay neutral")
}

func TestBuildPrompt(t *testing.T) {
	entry := &models.Entry{EntryDate: "2024-03-10", OneLiner: "a calm day"}
	prompt := BuildPrompt(entry, history("2024-03-09", "2024-03-08"))

	require.Contains(t, prompt, `Today is 2024-03-10. The user wrote: "a calm day".`)
	require.Contains(t, prompt, "- 2024-03-09: x")
	require.Contains(t, prompt, "Streak: 3 day(s).")
	require.Contains(t, prompt, "Mood trend (last 3 entries):")

	empty := BuildPrompt(entry, nil)
	require.Contains(t, empty, "None")
	require.Contains(t, empty, "Streak: 1 day(s).")
}
