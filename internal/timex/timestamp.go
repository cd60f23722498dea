package timex

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// Timestamp decodes backend times, which arrive either as Unix seconds
// (possibly fractional) or as formatted strings. It encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case float64:
		sec, frac := math.Modf(value)
		t.Time = time.Unix(int64(sec), int64(frac*1e9))
		return nil
	case string:
		if value == "" {
			t.Time = time.Time{}
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, value); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("invalid timestamp %q", value)
	default:
		return fmt.Errorf("invalid timestamp %s", b)
	}
}
