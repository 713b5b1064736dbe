package timeseries

import "sort"

// Summary holds the statistics reported per derived metric.
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
}

// Summarize computes count, sum, mean and interpolated percentiles over
// observed values. An empty input is a normal outcome and returns the
// zero-valued record.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	return Summary{
		Count: len(values),
		Sum:   sum,
		Avg:   sum / float64(len(values)),
		P50:   percentileSorted(sorted, 50),
		P90:   percentileSorted(sorted, 90),
	}
}

// percentileSorted returns the pth percentile of ascending-sorted data
// using linear interpolation between the closest ranks.
func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
