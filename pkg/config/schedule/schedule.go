// Package schedule decides whether something should be running at a given
// moment, from on and off clock times set per weekday.
package schedule

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tauraamui/xerror"
)

const clockLayout = "15:04:05"

// Clock is a time of day with no date attached.
type Clock struct {
	Hour, Minute, Second int
}

func ParseClock(value string) (Clock, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		return Clock{}, xerror.Errorf("invalid time of day %q: %w", value, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (c Clock) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, c.Second, 0, time.UTC).Format(clockLayout)
}

// On returns the clock time on the same date as day.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, c.Second, 0, day.Location())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	parsed, err := ParseClock(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

type OnOffTimes struct {
	Off *Clock `json:"off,omitempty"`
	On  *Clock `json:"on,omitempty"`
}

func (o OnOffTimes) empty() bool {
	return o.On == nil && o.Off == nil
}

// Week holds switch times per weekday. Everyday applies to any weekday
// without its own entry.
type Week struct {
	Everyday  OnOffTimes `json:"everyday"`
	Monday    OnOffTimes `json:"monday"`
	Tuesday   OnOffTimes `json:"tuesday"`
	Wednesday OnOffTimes `json:"wednesday"`
	Thursday  OnOffTimes `json:"thursday"`
	Friday    OnOffTimes `json:"friday"`
	Saturday  OnOffTimes `json:"saturday"`
	Sunday    OnOffTimes `json:"sunday"`
}

func (w Week) times(day time.Weekday) OnOffTimes {
	byDay := map[time.Weekday]OnOffTimes{
		time.Monday:    w.Monday,
		time.Tuesday:   w.Tuesday,
		time.Wednesday: w.Wednesday,
		time.Thursday:  w.Thursday,
		time.Friday:    w.Friday,
		time.Saturday:  w.Saturday,
		time.Sunday:    w.Sunday,
	}
	if t := byDay[day]; !t.empty() {
		return t
	}
	return w.Everyday
}

func (w Week) Empty() bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !w.times(d).empty() {
			return false
		}
	}
	return true
}

// IsOn reports the state set by the most recent switch at or before now,
// looking back at most a week. With no switch in that window it is on.
func (w Week) IsOn(now time.Time) bool {
	var latest time.Time
	state := true
	for i := 0; i <= 7; i++ {
		day := now.AddDate(0, 0, -i)
		t := w.times(day.Weekday())
		if t.On != nil {
			if at := t.On.On(day); !at.After(now) && at.After(latest) {
				latest, state = at, true
			}
		}
		if t.Off != nil {
			if at := t.Off.On(day); !at.After(now) && at.After(latest) {
				latest, state = at, false
			}
		}
		if !latest.IsZero() {
			return state
		}
	}
	return state
}
