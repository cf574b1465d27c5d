package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onelinediary/client/internal/client/models"
	"github.com/onelinediary/client/internal/datex"
)

const (
	feedbackWait = 20 * time.Second
	pollInterval = 150 * time.Millisecond
)

// today saves the day's one-liner. Text can be given inline; otherwise it is
// prompted for. The -f flag requests AI feedback on the saved entry.
func (a *App) today(ctx context.Context, args []string) {
	withFeedback := false
	words := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "-f" {
			withFeedback = true
			continue
		}
		words = append(words, arg)
	}

	text := strings.Join(words, " ")
	if strings.TrimSpace(text) == "" {
		var err error
		text, err = getSimpleText(a.reader, "One line about today", a.out)
		if err != nil {
			return
		}
	}
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(a.out, "Nothing saved.")
		return
	}

	iso := datex.ToISODate(a.now())
	a.store.UpsertOneLiner(ctx, iso, text, withFeedback)
	if msg := a.store.StatusMessage(iso); msg != "" {
		fmt.Fprintln(a.out, msg)
	}
	if withFeedback {
		a.waitForFeedback(iso)
	}
}

// note attaches a longer free-form note to a day that already has a
// one-liner.
func (a *App) note(ctx context.Context, args []string) {
	iso, ok := a.dateArg(args)
	if !ok {
		return
	}

	a.store.EnsureEntry(ctx, iso)
	rec, exists := a.store.Record(iso)
	if !exists || rec.Entry == nil {
		fmt.Fprintln(a.out, "No entry for", iso+".", "Write a one-liner first with 'today'.")
		return
	}

	text, err := GetMultiline(a.reader, "Longer note for "+iso, a.out)
	if err != nil {
		return
	}

	a.store.SaveLongText(ctx, iso, text)
	if msg := a.store.StatusMessage(iso); msg != "" {
		fmt.Fprintln(a.out, msg)
	}
}

func (a *App) show(ctx context.Context, args []string) {
	iso, ok := a.dateArg(args)
	if !ok {
		return
	}

	a.store.EnsureEntry(ctx, iso)
	rec, exists := a.store.Record(iso)
	if !exists || rec.Entry == nil {
		fmt.Fprintln(a.out, "No entry for", iso)
		return
	}
	a.printRecord(iso, rec)
}

// cal renders one month as a calendar grid. A day is marked with '.' when it
// has a one-liner and '*' when it also has a longer note.
func (a *App) cal(ctx context.Context, args []string) {
	t := a.now()
	if len(args) > 0 {
		parsed, err := time.ParseInLocation("2006-01", args[0], time.UTC)
		if err != nil {
			fmt.Fprintln(a.out, "Usage: cal [YYYY-MM]")
			return
		}
		t = parsed
	}
	year, month := t.Year(), int(t.Month())

	a.store.EnsureMonthSummary(ctx, year, month)
	summary, _ := a.store.MonthSummary(year, month)

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	fmt.Fprintln(a.out, datex.FormatMonthLabel(first))
	fmt.Fprintln(a.out, " Mo  Tu  We  Th  Fr  Sa  Su")

	col := (int(first.Weekday()) + 6) % 7
	fmt.Fprint(a.out, strings.Repeat("    ", col))

	last := first.AddDate(0, 1, -1).Day()
	for day := 1; day <= last; day++ {
		iso := datex.ToISODate(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
		marker := " "
		if s, ok := summary[iso]; ok {
			marker = "."
			if s.HasLong {
				marker = "*"
			}
		}
		fmt.Fprintf(a.out, "%2d%s ", day, marker)
		col++
		if col == 7 {
			fmt.Fprintln(a.out)
			col = 0
		}
	}
	if col != 0 {
		fmt.Fprintln(a.out)
	}
}

// week lists the Monday-based week around today with entry indicators.
func (a *App) week(ctx context.Context) {
	days := datex.WeekContaining(a.now())

	seen := map[string]bool{}
	for _, d := range days {
		key := datex.FormatMonthKey(d.Year(), int(d.Month()))
		if !seen[key] {
			seen[key] = true
			a.store.EnsureMonthSummary(ctx, d.Year(), int(d.Month()))
		}
	}

	today := datex.ToISODate(a.now())
	for _, d := range days {
		iso := datex.ToISODate(d)
		summary, _ := a.store.MonthSummary(d.Year(), int(d.Month()))

		label := "no entry"
		if s, ok := summary[iso]; ok {
			label = "one-liner"
			if s.HasLong {
				label = "one-liner + note"
			}
		}
		cursor := "  "
		if iso == today {
			cursor = "> "
		}
		fmt.Fprintf(a.out, "%s%s %s  %s\n", cursor, d.Format("Mon"), iso, label)
	}
}

// feedback requests AI feedback for a day's entry and waits for the result.
func (a *App) feedback(ctx context.Context, args []string) {
	iso, ok := a.dateArg(args)
	if !ok {
		return
	}

	a.store.EnsureEntry(ctx, iso)
	rec, exists := a.store.Record(iso)
	if !exists || rec.Entry == nil || rec.Entry.ID == "" {
		fmt.Fprintln(a.out, "No synced entry for", iso+".", "Save a one-liner and sync first.")
		return
	}

	a.store.RefreshFeedback(ctx, iso)
	a.waitForFeedback(iso)
}

func (a *App) sync(ctx context.Context) {
	if !a.store.Online() {
		fmt.Fprintln(a.out, "Offline. Queued changes sync when the connection returns.")
		return
	}
	a.store.FlushQueue(ctx)
	if pending := a.store.Pending(); pending > 0 {
		fmt.Fprintf(a.out, "%d change(s) still pending.\n", pending)
	} else {
		fmt.Fprintln(a.out, "All changes synced.")
	}
}

func (a *App) status() {
	if a.store.Online() {
		fmt.Fprintln(a.out, "Connection: online")
	} else {
		fmt.Fprintln(a.out, "Connection: offline")
	}
	fmt.Fprintf(a.out, "Pending changes: %d\n", a.store.Pending())
	if a.cache.Broken() {
		fmt.Fprintln(a.out, "Local cache: unavailable, entries will not survive a restart")
	} else {
		fmt.Fprintln(a.out, "Local cache: ok")
	}
	if a.email != "" {
		fmt.Fprintln(a.out, "Signed in as:", a.email)
	} else {
		fmt.Fprintln(a.out, "Not signed in")
	}
}

func (a *App) whoami(ctx context.Context) {
	profile, err := a.store.Profile(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Profile not available:", err)
		return
	}
	fmt.Fprintln(a.out, "Name: ", profile.DisplayName)
	if profile.Email != "" {
		fmt.Fprintln(a.out, "Email:", profile.Email)
	}
}

// dateArg resolves the optional date argument of a command, defaulting to
// today.
func (a *App) dateArg(args []string) (string, bool) {
	if len(args) == 0 {
		return datex.ToISODate(a.now()), true
	}
	if _, err := datex.ParseISODate(args[0]); err != nil {
		fmt.Fprintln(a.out, "Dates look like YYYY-MM-DD.")
		return "", false
	}
	return args[0], true
}

// waitForFeedback polls the record until the feedback pipeline settles. The
// pipeline runs in the background, so a bounded wait keeps the REPL honest
// without hanging it forever.
func (a *App) waitForFeedback(iso string) {
	fmt.Fprintln(a.out, "Generating feedback...")
	deadline := time.Now().Add(feedbackWait)
	delayedShown := false

	for time.Now().Before(deadline) {
		rec, ok := a.store.Record(iso)
		if !ok {
			return
		}
		switch rec.AIStatus {
		case models.AIReady, models.AIFlagged:
			a.printFeedback(rec)
			return
		case models.AIError:
			fmt.Fprintln(a.out, rec.AIError)
			return
		case models.AIDelayed:
			if !delayedShown {
				delayedShown = true
				fmt.Fprintln(a.out, "Still working on it...")
			}
		case models.AIIdle:
			return
		}
		time.Sleep(pollInterval)
	}
	fmt.Fprintln(a.out, "Feedback is taking a while. Check back with 'show'.")
}

func (a *App) printFeedback(rec models.EntryRecord) {
	if text := rec.Entry.Feedback(); text != "" {
		fmt.Fprintln(a.out, text)
	}
}

func (a *App) printRecord(iso string, rec models.EntryRecord) {
	fmt.Fprintln(a.out, iso)
	fmt.Fprintln(a.out, " ", rec.Entry.OneLiner)
	if rec.Entry.LongText != nil && strings.TrimSpace(*rec.Entry.LongText) != "" {
		fmt.Fprintln(a.out)
		for _, line := range strings.Split(*rec.Entry.LongText, "\n") {
			fmt.Fprintln(a.out, " ", line)
		}
	}
	if text := rec.Entry.Feedback(); text != "" {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "  Feedback:", text)
	}
	if msg := a.store.StatusMessage(iso); msg != "" && msg != "Saved" {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, " ", msg)
	}
}
