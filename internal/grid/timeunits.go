package grid

import (
	"fmt"
	"strings"
	"time"
)

var timeStepUnits = map[string]time.Duration{
	"milliseconds": time.Millisecond,
	"millisecond":  time.Millisecond,
	"ms":           time.Millisecond,
	"seconds":      time.Second,
	"second":       time.Second,
	"secs":         time.Second,
	"sec":          time.Second,
	"s":            time.Second,
	"minutes":      time.Minute,
	"minute":       time.Minute,
	"mins":         time.Minute,
	"min":          time.Minute,
	"hours":        time.Hour,
	"hour":         time.Hour,
	"hrs":          time.Hour,
	"hr":           time.Hour,
	"h":            time.Hour,
	"days":         24 * time.Hour,
	"day":          24 * time.Hour,
	"d":            24 * time.Hour,
}

var epochLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseTimeUnits parses a CF time units string ("<unit> since <epoch>") into
// the duration of one unit and the epoch. Epochs without a zone are UTC.
// Only the standard Gregorian calendar is supported.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q are not of the form \"<unit> since <epoch>\"", units)
	}
	step, ok := timeStepUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", unit)
	}
	ref = strings.TrimSpace(ref)
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " GMT")
	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported epoch %q", ref)
}
