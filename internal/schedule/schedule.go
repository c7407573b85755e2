package schedule

import (
	"fmt"
	"strings"
	"time"
)

// TimeSlot is one bookable start time on a doctor's grid for a given date.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// availabilityRange is one parsed "DAY HH:MM-HH:MM" entry.
type availabilityRange struct {
	day   string
	start time.Time
	end   time.Time
}

const timeLayout = "15:04"

// dayCode returns the three-letter upper-case day code used in
// availability entries (MON, TUE, ...).
func dayCode(date time.Time) string {
	return strings.ToUpper(date.Weekday().String()[:3])
}

// parseAvailabilityEntry parses a raw availability entry. Malformed entries
// yield an error and are skipped by callers rather than failing the whole
// lookup; bad rows in the availability table must not take booking down.
func parseAvailabilityEntry(entry string) (availabilityRange, error) {
	parts := strings.Fields(strings.TrimSpace(entry))
	if len(parts) != 2 {
		return availabilityRange{}, fmt.Errorf("malformed availability entry %q", entry)
	}

	times := strings.Split(parts[1], "-")
	if len(times) != 2 {
		return availabilityRange{}, fmt.Errorf("malformed time range in entry %q", entry)
	}

	start, err := time.Parse(timeLayout, strings.TrimSpace(times[0]))
	if err != nil {
		return availabilityRange{}, fmt.Errorf("bad start time in entry %q: %w", entry, err)
	}
	end, err := time.Parse(timeLayout, strings.TrimSpace(times[1]))
	if err != nil {
		return availabilityRange{}, fmt.Errorf("bad end time in entry %q: %w", entry, err)
	}
	if !start.Before(end) {
		return availabilityRange{}, fmt.Errorf("empty time range in entry %q", entry)
	}

	return availabilityRange{
		day:   strings.ToUpper(parts[0]),
		start: start,
		end:   end,
	}, nil
}

// gridTimes generates slot start times from range start up to (exclusive)
// range end at the given granularity.
func (r availabilityRange) gridTimes(slotDuration time.Duration) []string {
	var out []string
	for t := r.start; t.Before(r.end); t = t.Add(slotDuration) {
		out = append(out, t.Format(timeLayout))
	}
	return out
}
