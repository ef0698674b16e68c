package codec

import (
	"time"

	"github.com/tazhate/icalbridge/internal/store"
)

// EncodeAlarms turns minutes-before offsets into relative alarms. An offset of
// m minutes fires m minutes before the anchor.
func EncodeAlarms(minutes []int) []*store.Alarm {
	if len(minutes) == 0 {
		return nil
	}
	alarms := make([]*store.Alarm, 0, len(minutes))
	for _, m := range minutes {
		alarms = append(alarms, &store.Alarm{RelativeOffset: -time.Duration(m) * time.Minute})
	}
	return alarms
}

// DecodeAlarms returns minutes-before offsets. Sub-minute parts truncate
// toward zero.
func DecodeAlarms(alarms []*store.Alarm) []int {
	if len(alarms) == 0 {
		return nil
	}
	minutes := make([]int, 0, len(alarms))
	for _, a := range alarms {
		minutes = append(minutes, int(-a.RelativeOffset/time.Minute))
	}
	return minutes
}
