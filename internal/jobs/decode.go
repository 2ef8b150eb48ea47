package jobs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

var (
	stringSliceType = reflect.TypeOf([]string{})
	objectType      = reflect.TypeOf(map[string]any{})
	stringType      = reflect.TypeOf("")
	timeType        = reflect.TypeOf(time.Time{})
)

// DecodeRecord converts a flat store row into a Record. List fields accept a
// list, a JSON list string or a comma separated string; the enrichment payload
// accepts an object or its JSON encoding. HTML descriptions are reduced to text.
func DecodeRecord(row map[string]any) (*Record, error) {
	var record Record

	cfg := &mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(coerceHook),
		Result:           &record,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create record decoder: %w", err)
	}

	if err := decoder.Decode(row); err != nil {
		return nil, &DecodeError{ID: fmt.Sprint(row[FieldExternalID]), Err: err}
	}

	record.Description = CleanDescription(record.Description)

	return &record, nil
}

// DecodeError reports a row that could not be decoded.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode job %s: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeRecords decodes every row, returning the errors of rows that failed
// alongside the decoded records so one bad row never drops the batch.
func DecodeRecords(rows []map[string]any) (*Jobs, []error) {
	jobs := &Jobs{Items: make([]*Record, 0, len(rows))}
	var errs []error
	for _, row := range rows {
		record, err := DecodeRecord(row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs.Items = append(jobs.Items, record)
	}
	return jobs, errs
}

func coerceHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case stringSliceType:
		return AsList(data), nil
	case objectType:
		return asObject(data)
	case stringType:
		if from == timeType {
			return data.(time.Time).UTC().Format(time.RFC3339), nil
		}
		if from.Kind() == reflect.Ptr && from.Elem() == timeType {
			if ts, ok := data.(*time.Time); ok && ts != nil {
				return ts.UTC().Format(time.RFC3339), nil
			}
			return "", nil
		}
	}
	return data, nil
}

// AsList normalizes a field that may hold a list, a JSON list string, a comma
// separated string or nothing into trimmed, non-empty strings.
func AsList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return cleanList(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanList(items)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var decoded []any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return AsList(decoded)
			}
		}
		return cleanList(strings.Split(s, ","))
	default:
		return nil
	}
}

func asObject(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	case []byte:
		return asObject(string(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "null" {
			return nil, nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("enrichment payload is not a json object: %w", err)
		}
		return decoded, nil
	default:
		// Unsupported payload shapes are treated as absent.
		return nil, nil
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
