package mcpserver

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/tazhate/icalbridge/internal/domain"
)

// time arguments accept the offset-less ISO forms and are read in the
// manager's location
var timeKeys = []string{"start_time", "end_time", "due_date"}

// aliases maps argument names older clients send to the current ones
var aliases = map[string]string{
	"reminder_offsets": "alarms_minutes_offsets",
}

// decodeArgs fills v, a request struct, from tool arguments. The fields may
// sit at the top level or under nestedKey. Explicit nulls survive, so update
// requests can tell a cleared field from an absent one.
func decodeArgs(args map[string]any, nestedKey string, loc *time.Location, v any) error {
	if nested, ok := args[nestedKey].(map[string]any); ok {
		args = nested
	}
	args = maps.Clone(args)

	for from, to := range aliases {
		if val, ok := args[from]; ok {
			if _, taken := args[to]; !taken {
				args[to] = val
			}
			delete(args, from)
		}
	}
	for _, key := range timeKeys {
		if err := normalizeTime(args, key, loc); err != nil {
			return err
		}
	}
	if rule, ok := args["recurrence_rule"].(map[string]any); ok {
		rule = maps.Clone(rule)
		if err := normalizeTime(rule, "end_date", loc); err != nil {
			return err
		}
		args["recurrence_rule"] = rule
	}

	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	return json.Unmarshal(data, v)
}

func normalizeTime(args map[string]any, key string, loc *time.Location) error {
	s, ok := args[key].(string)
	if !ok {
		return nil
	}
	t, err := domain.ParseTime(s, loc)
	if err != nil {
		return &domain.ValidationError{Field: key, Message: err.Error()}
	}
	args[key] = t.Format(time.RFC3339Nano)
	return nil
}

// optionalBool reads a boolean argument that may be missing or null
func optionalBool(args map[string]any, key string) (*bool, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	default:
		return nil, &domain.ValidationError{Field: key, Message: "must be a boolean"}
	}
}

func requiredTime(args map[string]any, key string, loc *time.Location) (time.Time, error) {
	s, _ := args[key].(string)
	if s == "" {
		return time.Time{}, &domain.ValidationError{Field: key, Message: "is required"}
	}
	t, err := domain.ParseTime(s, loc)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: key, Message: err.Error()}
	}
	return t, nil
}

func optionalTime(args map[string]any, key string, loc *time.Location) (*time.Time, error) {
	if s, _ := args[key].(string); s == "" {
		return nil, nil
	}
	t, err := requiredTime(args, key, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
