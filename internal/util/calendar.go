package util

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time with second resolution, independent of date
// and location.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// Clock returns the TimeOfDay for hour and minute.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// TimeOfDayAt extracts the wall-clock time of t in loc. A nil loc uses the
// location already attached to t.
func TimeOfDayAt(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("parsing time of day %q: want HH:MM or HH:MM:SS", s)
}

// Seconds returns the number of seconds since midnight.
func (c TimeOfDay) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// String formats the time as HH:MM:SS.
func (c TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// InWindow reports whether now lies in [start, end]. A window whose start is
// after its end spans midnight, and membership is now >= start or now <= end.
func InWindow(start, end, now TimeOfDay) bool {
	s, e, n := start.Seconds(), end.Seconds(), now.Seconds()
	if s <= e {
		return s <= n && n <= e
	}
	return n >= s || n <= e
}

// Window is a daily clock-time interval.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Market session windows on the exchange clock.
var (
	MarketJustClosed = Window{Start: Clock(16, 0), End: Clock(16, 30)}
	MarketJustOpened = Window{Start: Clock(8, 0), End: Clock(8, 30)}
)

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		start, err := ParseTimeOfDay(s[:i])
		if err != nil {
			return Window{}, err
		}
		end, err := ParseTimeOfDay(s[i+1:])
		if err != nil {
			return Window{}, err
		}
		return Window{Start: start, End: end}, nil
	}
	return Window{}, fmt.Errorf("parsing window %q: want HH:MM-HH:MM", s)
}

// Contains reports whether t, read on the wall clock of loc, falls inside the
// window.
func (w Window) Contains(t time.Time, loc *time.Location) bool {
	return InWindow(w.Start, w.End, TimeOfDayAt(t, loc))
}

// String formats the window as HH:MM:SS-HH:MM:SS.
func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
