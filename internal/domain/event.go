package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the wire format of event times: local wall clock with
// millisecond precision and no zone designator.
const TimeLayout = "2006-01-02T15:04:05.000"

// Event is a single calendar entry as served by GET /calendar.
type Event struct {
	ID    int64     `json:"id"`
	Title string    `json:"title"`
	Time  LocalTime `json:"time"`
}

// LocalTime is a timestamp serialized without zone information. Only its
// wall clock fields are meaningful; the location is ignored.
type LocalTime struct {
	time.Time
}

// NewLocalTime wraps t.
func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{Time: t}
}

func (t LocalTime) String() string {
	return t.Format(TimeLayout)
}

// MarshalJSON encodes the time using TimeLayout.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(TimeLayout))
}

// UnmarshalJSON parses a TimeLayout string in the local zone.
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("event time must be a string: %w", err)
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse event time %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
