package models

import (
	"bytes"
	"encoding/json"
	"sync/atomic"
	"time"
)

// timestampLayouts are tried in order when decoding a timestamp string.
// Layouts without an offset are read in the local zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var localZone atomic.Pointer[time.Location]

// SetLocalZone sets the zone timestamps without an offset are read in.
// Nil restores UTC.
func SetLocalZone(loc *time.Location) {
	localZone.Store(loc)
}

// LocalZone returns the zone timestamps without an offset are read in
func LocalZone() *time.Location {
	if loc := localZone.Load(); loc != nil {
		return loc
	}
	return time.UTC
}

// Timestamp is a point in time that may be missing or malformed upstream.
// Decoding never fails: null, empty or unparseable values yield an invalid Timestamp.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// NewTimestamp returns a valid Timestamp for t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// ParseTimestamp parses s with the accepted layouts, returning an invalid Timestamp on failure
func ParseTimestamp(s string) Timestamp {
	if s == "" {
		return Timestamp{}
	}
	loc := LocalZone()
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return NewTimestamp(t)
		}
	}
	return Timestamp{}
}

// After reports whether the timestamp is valid and strictly after t
func (ts Timestamp) After(t time.Time) bool {
	return ts.Valid && ts.Time.After(t)
}

// MarshalJSON encodes an invalid Timestamp as null
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON decodes strings and epoch milliseconds; anything else becomes invalid
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ts = ParseTimestamp(s)
		return nil
	}

	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		*ts = NewTimestamp(time.UnixMilli(millis).UTC())
	}
	return nil
}
