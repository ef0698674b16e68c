package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tazhate/icalbridge/internal/store"
)

// Alarms are stored as a JSON array of offsets in seconds
func encodeAlarms(alarms []*store.Alarm) (string, error) {
	secs := make([]int64, 0, len(alarms))
	for _, a := range alarms {
		secs = append(secs, int64(a.RelativeOffset/time.Second))
	}
	b, err := json.Marshal(secs)
	return string(b), err
}

func decodeAlarms(s string) ([]*store.Alarm, error) {
	var secs []int64
	if err := json.Unmarshal([]byte(s), &secs); err != nil {
		return nil, err
	}
	if len(secs) == 0 {
		return nil, nil
	}
	alarms := make([]*store.Alarm, 0, len(secs))
	for _, sec := range secs {
		alarms = append(alarms, &store.Alarm{RelativeOffset: time.Duration(sec) * time.Second})
	}
	return alarms, nil
}

// Rules are stored as RRULE values, one per line
func encodeRules(rules []*store.RecurrenceRule) (string, error) {
	lines := make([]string, 0, len(rules))
	for _, r := range rules {
		line, err := store.FormatRRule(r)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func decodeRules(s string) ([]*store.RecurrenceRule, error) {
	if s == "" {
		return nil, nil
	}
	var rules []*store.RecurrenceRule
	for _, line := range strings.Split(s, "\n") {
		r, err := store.ParseRRule(line)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func encodeTimes(ts []time.Time) (string, error) {
	secs := make([]int64, 0, len(ts))
	for _, t := range ts {
		secs = append(secs, t.Unix())
	}
	b, err := json.Marshal(secs)
	return string(b), err
}

func decodeTimes(s string, loc *time.Location) ([]time.Time, error) {
	var secs []int64
	if err := json.Unmarshal([]byte(s), &secs); err != nil {
		return nil, err
	}
	if len(secs) == 0 {
		return nil, nil
	}
	ts := make([]time.Time, 0, len(secs))
	for _, sec := range secs {
		ts = append(ts, time.Unix(sec, 0).In(loc))
	}
	return ts, nil
}

func encodeStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	return string(b), err
}

func decodeStrings(s string) ([]string, error) {
	var ss []string
	if err := json.Unmarshal([]byte(s), &ss); err != nil {
		return nil, err
	}
	if len(ss) == 0 {
		return nil, nil
	}
	return ss, nil
}

// zone records a time's location so recurrences expand in local wall time
func zone(t time.Time) (string, int) {
	name, offset := t.Zone()
	if loc := t.Location().String(); loc != "" && loc != "Local" {
		name = loc
	}
	return name, offset
}

func loadZone(name string, offset int) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil && name != "" && name != "Local" {
		return loc
	}
	if name == "UTC" && offset == 0 {
		return time.UTC
	}
	return time.FixedZone(name, offset)
}
