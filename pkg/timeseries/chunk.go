package timeseries

import "time"

// MaxSamplesPerRequest is the CloudWatch GetMetricData cap on returned
// datapoints per call. At 300s granularity one request covers 350 days,
// so multi-chunk fetches only occur at 1-minute granularity.
const MaxSamplesPerRequest = 100800

// Range is a half-open [Start, End) time range.
type Range struct {
	Start time.Time
	End   time.Time
}

// ChunkRange splits [start, end) into consecutive half-open sub-ranges
// that each fit within maxSamples datapoints at the given period. The
// chunks are contiguous, non-overlapping, and cover the full range.
// start >= end yields no chunks.
func ChunkRange(start, end time.Time, period time.Duration, maxSamples int) []Range {
	maxSpan := period * time.Duration(maxSamples)
	var chunks []Range
	for cur := start; cur.Before(end); {
		next := cur.Add(maxSpan)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, Range{Start: cur, End: next})
		cur = next
	}
	return chunks
}
