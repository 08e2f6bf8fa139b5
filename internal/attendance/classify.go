package attendance

import (
	"fmt"
	"time"
)

type EventType string

const (
	CheckIn  EventType = "in"
	CheckOut EventType = "out"
)

type Status string

const (
	OnTime     Status = "on-time"
	Late       Status = "late"
	EarlyLeave Status = "early-leave"
	Leave      Status = "leave"
)

// checkInCutoff is the boundary after work start separating "still
// arriving" from "must have left already".
const checkInCutoff = 4 * time.Hour

// WorkWindow is an employee's configured working hours. Start and End
// are offsets from midnight; Grace is how long after Start a check-in
// still counts as on-time.
type WorkWindow struct {
	Start time.Duration
	End   time.Duration
	Grace time.Duration
}

// Classify maps an arrival instant to an attendance event. Pure; the
// arrival's time of day is taken in the arrival's own location.
func Classify(w WorkWindow, arrival time.Time) (EventType, Status) {
	sinceMidnight := time.Duration(arrival.Hour())*time.Hour +
		time.Duration(arrival.Minute())*time.Minute +
		time.Duration(arrival.Second())*time.Second +
		time.Duration(arrival.Nanosecond())

	if sinceMidnight < w.Start+checkInCutoff {
		if sinceMidnight <= w.Start+w.Grace {
			return CheckIn, OnTime
		}
		return CheckIn, Late
	}
	if sinceMidnight < w.End {
		return CheckOut, EarlyLeave
	}
	return CheckOut, Leave
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
