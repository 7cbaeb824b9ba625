package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// isoLocalLayout matches ISO 8601 date-times written without a zone offset,
// e.g. "2024-05-01T10:20:30.123456"
const isoLocalLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a persisted instant. It decodes RFC 3339 as well as zone-less
// ISO 8601 (read as local time) and always encodes RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// TimestampPtr wraps t for the optional fields
func TimestampPtr(t time.Time) *Timestamp {
	ts := Timestamp{Time: t}
	return &ts
}

// ParseTimestamp accepts RFC 3339 first, then zone-less ISO 8601 in time.Local
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(isoLocalLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t, nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return t.Time.MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
