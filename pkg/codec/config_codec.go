// Package codec converts parameter values between the engine's float64
// representation and the JSON shapes the WandB backend stores them in. Run
// config entries arrive wrapped in a {"value": v, "desc": null} envelope, and
// JSON erases the int/float distinction, so decoding goes through
// shopspring/decimal to keep large integer parameters exact.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxExactInt is the largest float64 magnitude with guaranteed integer
// precision (2^53).
const maxExactInt = 1 << 53

// EncodeRunConfig wraps raw parameter values in the envelope the WandB
// backend stores run config entries in. Integer-valued parameters are
// emitted as JSON integers.
func EncodeRunConfig(values map[string]float64) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		out[name] = map[string]any{"value": normalizeNumber(v)}
	}
	return out
}

// DecodeRunConfig extracts numeric parameter values from a decoded run
// config. Envelope-wrapped and bare values are both accepted; internal keys
// (leading underscore, e.g. _wandb) and non-numeric entries are skipped.
func DecodeRunConfig(config map[string]any) map[string]float64 {
	out := make(map[string]float64, len(config))
	for name, raw := range config {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if envelope, ok := raw.(map[string]any); ok {
			inner, present := envelope["value"]
			if !present {
				continue
			}
			raw = inner
		}
		v, ok := Number(raw)
		if !ok {
			continue
		}
		out[name] = v
	}
	return out
}

// Number converts a decoded JSON value to float64. It accepts native Go
// numbers, json.Number (the wandb client decodes with UseNumber), and
// numeric strings.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		return decimalToFloat(t.String())
	case string:
		return decimalToFloat(t)
	default:
		return 0, false
	}
}

// SummaryNumber reads a numeric summary field, returning fallback when the
// key is absent or not numeric.
func SummaryNumber(summary map[string]any, key string, fallback float64) float64 {
	if summary == nil {
		return fallback
	}
	v, ok := Number(summary[key])
	if !ok {
		return fallback
	}
	return v
}

// ParseJSONObject decodes a JSON object string preserving numeric exactness
// via json.Number. The WandB API delivers run config and summary as JSON
// strings inside the GraphQL response.
func ParseJSONObject(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return out, nil
}

func normalizeNumber(v float64) any {
	if v == math.Trunc(v) && math.Abs(v) < maxExactInt {
		return int64(v)
	}
	return v
}

func decimalToFloat(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
