package pipeline

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// Fields of a wide snapshot that are bookkeeping, never signals.
var reservedFields = map[string]bool{
	"timestamp": true,
	"sessionId": true,
	"_id":       true,
}

// Normalize converts heterogeneous raw records into canonical long-form
// samples. Records that already carry (ts|time, pid|signal, value) pass
// through on the fast path; anything else is treated as a wide snapshot,
// one sample per numeric field. Records without a usable timestamp and
// fields that do not coerce to a number are skipped, not errors. An empty
// result is valid; the caller decides whether that is fatal.
func Normalize(records []map[string]interface{}) []models.Sample {
	if len(records) == 0 {
		return nil
	}

	if isLongForm(records[0]) {
		return normalizeLongForm(records)
	}

	var samples []models.Sample
	for _, record := range records {
		ts, ok := extractTimestamp(record["timestamp"])
		if !ok {
			continue
		}
		// Fields are visited in sorted order so that repeated builds over
		// the same input emit signals in the same order.
		keys := make([]string, 0, len(record))
		for key := range record {
			if !reservedFields[key] {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := record[key]
			if value == nil {
				continue
			}
			v, ok := coerceFloat(value)
			if !ok {
				continue
			}
			samples = append(samples, models.Sample{Time: ts, Signal: key, Value: v})
		}
	}
	return samples
}

func isLongForm(record map[string]interface{}) bool {
	if hasKeys(record, "ts", "pid", "value") {
		return true
	}
	return hasKeys(record, "time", "signal", "value")
}

func hasKeys(record map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if _, ok := record[k]; !ok {
			return false
		}
	}
	return true
}

func normalizeLongForm(records []map[string]interface{}) []models.Sample {
	samples := make([]models.Sample, 0, len(records))
	for _, record := range records {
		tsField, sigField := "ts", "pid"
		if _, ok := record["ts"]; !ok {
			tsField, sigField = "time", "signal"
		}
		ts, ok := extractTimestamp(record[tsField])
		if !ok {
			continue
		}
		sig, ok := record[sigField].(string)
		if !ok || sig == "" {
			continue
		}
		v, ok := coerceFloat(record["value"])
		if !ok {
			continue
		}
		samples = append(samples, models.Sample{Time: ts, Signal: sig, Value: v})
	}
	return samples
}

// extractTimestamp pulls epoch milliseconds out of a raw timestamp field.
// Supports plain numbers, numeric strings, RFC3339 strings, and the nested
// extended-JSON wrapper {"$date": <any of those>}. Zero or unparseable
// timestamps report !ok so the caller skips the record.
func extractTimestamp(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case map[string]interface{}:
		inner, ok := t["$date"]
		if !ok {
			return 0, false
		}
		return extractTimestamp(inner)
	case float64:
		if t == 0 {
			return 0, false
		}
		return int64(t), true
	case int64:
		if t == 0 {
			return 0, false
		}
		return t, true
	case int:
		if t == 0 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, false
			}
			n = int64(f)
		}
		if n == 0 {
			return 0, false
		}
		return n, true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			if n == 0 {
				return 0, false
			}
			return n, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UnixMilli(), true
		}
		return 0, false
	case time.Time:
		if t.IsZero() {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

// coerceFloat attempts numeric coercion of one field value. Strings parse
// through strconv, bools map to 0/1. Anything else is dropped.
func coerceFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
