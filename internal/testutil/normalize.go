package testutil

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
)

// floatPrecision is the number of decimals kept when normalizing numbers
const floatPrecision = 1e6

// volatileFields differ between runs and are blanked before comparison
var volatileFields = map[string]bool{
	"runId":      true,
	"startedAt":  true,
	"finishedAt": true,
}

// Normalize makes data stable for golden comparison: it round-trips
// through JSON, rounds numbers and blanks volatile fields
func Normalize(t *testing.T, data any) any {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}
	return normalizeValue(generic)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			if volatileFields[k] {
				val[k] = "<volatile>"
				continue
			}
			val[k] = normalizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeValue(item)
		}
		return val
	case float64:
		rounded := math.Round(val*floatPrecision) / floatPrecision
		if rounded == 0 {
			// no negative zero in goldens
			return 0.0
		}
		return rounded
	default:
		return v
	}
}

// MarshalNormalized normalizes data and marshals it to stable JSON bytes:
// sorted keys, 2-space indentation and a trailing newline.
func MarshalNormalized(t *testing.T, data any) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Normalize(t, data)); err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return buf.Bytes()
}
