package timeseries

import (
	"sort"
	"time"
)

// TrailingDailyTotals sums valid sample values into rolling 24-hour
// windows anchored backward from reference (window i covers
// [reference-(i+1)d, reference-i·d)), covering back to the oldest
// sample. Anchoring to the run's reference time rather than calendar
// midnight keeps every profile's daily totals on the same boundaries.
// Output is sparse: one sample per non-empty window, keyed by window
// start, ascending.
func TrailingDailyTotals(samples []Sample, reference time.Time) []Sample {
	totals := make(map[int64]float64)
	for _, sm := range samples {
		if !sm.Valid || !sm.Time.Before(reference) {
			continue
		}
		// Window i covers (reference-(i+1)·24h, reference-i·24h] measured
		// in age, i.e. half-open [start, end) in wall-clock time.
		age := reference.Sub(sm.Time)
		dayOffset := (age - time.Nanosecond) / (24 * time.Hour)
		windowStart := reference.Add(-(dayOffset + 1) * 24 * time.Hour)
		totals[windowStart.Unix()] += sm.Value
	}
	keys := make([]int64, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]Sample, 0, len(keys))
	for _, k := range keys {
		out = append(out, Observed(time.Unix(k, 0).UTC(), totals[k]))
	}
	return out
}
