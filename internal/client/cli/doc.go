// Package cli implements the interactive diary client: a small REPL over the
// entry store with commands for writing the daily one-liner, longer notes,
// browsing the calendar and requesting AI feedback.
package cli
