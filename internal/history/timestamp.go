package history

import (
	"encoding/json"
	"strings"
	"time"
)

// timestampLayouts are tried in order when a timestamp arrives as a string.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp normalizes the two encodings the version backend emits for points in
// time: a structured {"seconds": N} object or a date string. Unparseable values
// normalize to zero seconds, which sorts earliest.
type Timestamp struct {
	Seconds int64
}

// NewTimestamp wraps raw epoch seconds.
func NewTimestamp(seconds int64) Timestamp {
	return Timestamp{Seconds: seconds}
}

// IsZero reports whether the timestamp carries no usable instant.
func (t Timestamp) IsZero() bool {
	return t.Seconds == 0
}

// Time converts the normalized seconds into a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, 0).UTC()
}

// UnmarshalJSON accepts {"seconds": N}, a bare number of epoch seconds, or a
// date string. Anything unparseable degrades to zero rather than failing the
// surrounding decode.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		t.Seconds = 0
		return nil
	}

	var structured struct {
		Seconds int64 `json:"seconds"`
	}
	if err := json.Unmarshal(data, &structured); err == nil && structured.Seconds != 0 {
		t.Seconds = structured.Seconds
		return nil
	}

	var numeric int64
	if err := json.Unmarshal(data, &numeric); err == nil {
		t.Seconds = numeric
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		t.Seconds = parseTimestampString(text)
		return nil
	}

	t.Seconds = 0
	return nil
}

// MarshalJSON always emits the structured form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seconds int64 `json:"seconds"`
	}{Seconds: t.Seconds})
}

func parseTimestampString(value string) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Unix()
		}
	}
	return 0
}
