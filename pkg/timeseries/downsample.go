package timeseries

import (
	"sort"
	"time"
)

// PeakDownsample re-buckets a fine-grained rate series into a coarser
// target period, keeping the maximum observed value per bucket. Peaks
// drive throttling, so averaging them away would hide exactly the
// samples the report exists to surface. Buckets align to wall-clock
// boundaries (floor), which matches chart axes at the cost of partial
// first and last buckets. Identity when the target is not coarser than
// the source.
func PeakDownsample(s Series, target time.Duration) Series {
	if s.Empty() || target <= s.Period {
		return s
	}
	buckets := make(map[int64]float64)
	for _, sm := range s.Samples {
		if !sm.Valid {
			continue
		}
		key := AlignToPeriod(sm.Time, target).Unix()
		if cur, ok := buckets[key]; !ok || sm.Value > cur {
			buckets[key] = sm.Value
		}
	}
	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := Series{Period: target}
	for _, k := range keys {
		out.Samples = append(out.Samples, Observed(time.Unix(k, 0).UTC(), buckets[k]))
	}
	return out
}
