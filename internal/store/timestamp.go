package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// isoLocalLayout matches ISO-8601 timestamps written without a zone offset,
// e.g. "2025-01-02T03:04:05.123456". The fraction is optional.
const isoLocalLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time persisted in a collection. It is written as RFC 3339
// in UTC and also reads zone-less ISO timestamps, which are taken as UTC.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
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
	*t = parsed
	return nil
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO-8601 values. An empty
// string is the zero time.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(parsed), nil
	}
	parsed, err := time.ParseInLocation(isoLocalLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return NewTimestamp(parsed), nil
}
