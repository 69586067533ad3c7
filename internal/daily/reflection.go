// Package daily memoizes generated reflections by calendar day, guaranteeing
// at most one remote generation per day regardless of call count or
// concurrency.
package daily

import (
	"context"
	"time"
)

// KeyDaily requests the memoized reflection for the current day. Any other
// key is a topic key and bypasses the cache entirely.
const KeyDaily = "daily"

// Reflection is one generated content record. Entries are never mutated
// once stored; a new day supersedes the previous entry wholesale.
type Reflection struct {
	Title      string `json:"title"`
	Reference  string `json:"reference"`
	Body       string `json:"body"`
	ActionItem string `json:"actionItem"`
	Closing    string `json:"closing"`
}

// Generator produces reflections from the external content service. An
// empty topic requests the generic daily reflection.
type Generator interface {
	GenerateReflection(ctx context.Context, topic string) (*Reflection, error)
}

// DayKey formats t as a calendar-date cache key, stable within one local
// day and rolling at local midnight.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Fallback returns the fixed degradation payload shown when generation
// fails. The user-facing contract is "always show something"; callers never
// see a hard failure.
func Fallback() *Reflection {
	return &Reflection{
		Title:      "Be Still",
		Reference:  "Psalm 46:10",
		Body:       "Be still, and know. Even when nothing new arrives, the quiet itself is worth sitting with for a moment.",
		ActionItem: "Take three slow breaths before your next task.",
		Closing:    "Today is enough.",
	}
}
