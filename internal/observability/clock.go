package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the time source for provenance and run durations. Tests swap it
// with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time of the configured clock.
func Now() time.Time {
	return clock.Now()
}

// Since returns the time elapsed since t on the configured clock.
func Since(t time.Time) time.Duration {
	return clock.Since(t)
}

// History formats a CF "history" attribute entry for a command line.
func History(args []string) string {
	return fmt.Sprintf("%s: marineclim %s", clock.Now().UTC().Format(time.RFC3339), strings.Join(args, " "))
}
