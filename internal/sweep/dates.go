// ABOUTME: Event date parsing and whole-day offset math for the sweeps
// ABOUTME: Case sources report dates in several formats; parsing is contained here

package sweep

import (
	"fmt"
	"strings"
	"time"
)

// eventDateLayouts are tried in order. The last one matches the prose dates
// some court data feeds emit, after stripping their " at " separator.
var eventDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Monday, January 2, 2006 3:04 PM",
}

// parseEventDate parses a case event date string in the given location.
// Layouts without a zone are interpreted in loc.
func parseEventDate(raw string, loc *time.Location) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Replace(cleaned, " at ", " ", 1)
	for _, layout := range eventDateLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event date %q", raw)
}

// daysUntil returns the calendar-day offset from now to the event in loc,
// so "tomorrow" is 1 regardless of the time of day the sweep runs. The
// dates are re-anchored in UTC before differencing; subtracting local
// midnights would come up a day short across a spring-forward transition,
// where the midnight-to-midnight gap is only 23 hours.
func daysUntil(now, event time.Time, loc *time.Location) int {
	ny, nm, nd := now.In(loc).Date()
	ey, em, ed := event.In(loc).Date()
	nowDay := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	eventDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(eventDay.Sub(nowDay) / (24 * time.Hour))
}
