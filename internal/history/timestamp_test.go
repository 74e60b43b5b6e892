package history

import (
	"encoding/json"
	"testing"
)

func TestTimestampUnmarshalVariants(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected int64
	}{
		{name: "structured seconds", payload: `{"seconds": 1700000000}`, expected: 1700000000},
		{name: "bare number", payload: `1700000000`, expected: 1700000000},
		{name: "rfc3339 string", payload: `"2023-11-14T22:13:20Z"`, expected: 1700000000},
		{name: "date only string", payload: `"2023-11-14"`, expected: 1699920000},
		{name: "unparseable string", payload: `"not a date"`, expected: 0},
		{name: "null", payload: `null`, expected: 0},
		{name: "empty object", payload: `{}`, expected: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(test.payload), &ts); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ts.Seconds != test.expected {
				t.Fatalf("expected %d seconds, got %d", test.expected, ts.Seconds)
			}
		})
	}
}

func TestTimestampMarshalStructuredForm(t *testing.T) {
	encoded, err := json.Marshal(NewTimestamp(1700000000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(encoded) != `{"seconds":1700000000}` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
}

func TestTimestampRoundTripInsideAction(t *testing.T) {
	payload := `{"type":"prompt_edit","timestamp":"2023-11-14T22:13:20Z","newPrompt":"B"}`
	var action ActionRecord
	if err := json.Unmarshal([]byte(payload), &action); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Timestamp.Seconds != 1700000000 {
		t.Fatalf("expected normalized seconds, got %d", action.Timestamp.Seconds)
	}
	if action.Timestamp.Time().Unix() != 1700000000 {
		t.Fatalf("time conversion mismatch")
	}
}
