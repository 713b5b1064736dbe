package metrics

import (
	"sort"
	"time"

	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

// Chart metrics summed pointwise into the aggregate view.
var aggregateChartMetrics = []string{MetricTPM, MetricRPM, MetricThrottles}

// Aggregate merges per-profile metrics for one window into a single
// virtual-profile view. A timestamp carries a value exactly when at
// least one profile has a non-null sample there, and the value is the
// sum of the contributing non-null samples; timestamps where every
// profile is null stay null. Statistics are pooled from the profiles'
// raw observation lists, not recomputed from the summed series, so the
// aggregate percentiles reflect the underlying distribution.
func Aggregate(perProfile map[string]ProcessedMetrics, window Window, fillPeriod time.Duration) ProcessedMetrics {
	out := ProcessedMetrics{}
	if len(perProfile) == 0 {
		return out
	}

	for _, name := range aggregateChartMetrics {
		if s := sumSeries(perProfile, name, fillPeriod); !s.Empty() {
			out[name] = Metric{Series: timeseries.FillGaps(s)}
		}
	}
	if window.HasDailyTrend() {
		if s := sumDaily(perProfile); !s.Empty() {
			out[MetricTPD] = Metric{Series: s}
		}
	}

	// Pool raw observations per metric for statistics, including the
	// stats-only metrics that have no aggregated chart series.
	for _, name := range metricNameUnion(perProfile) {
		var pooled []float64
		for _, pm := range perProfile {
			if m, ok := pm[name]; ok {
				pooled = append(pooled, m.Series.ObservedValues()...)
			}
		}
		if len(pooled) == 0 {
			continue
		}
		m := out[name]
		m.Stats = timeseries.Summarize(pooled)
		out[name] = m
	}
	return out
}

func sumSeries(perProfile map[string]ProcessedMetrics, name string, fillPeriod time.Duration) timeseries.Series {
	totals := make(map[int64]float64)
	for _, pm := range perProfile {
		m, ok := pm[name]
		if !ok {
			continue
		}
		for _, sm := range m.Series.Samples {
			if sm.Valid {
				totals[sm.Time.Unix()] += sm.Value
			}
		}
	}
	return sparseFromTotals(totals, fillPeriod)
}

// sumDaily merges the profiles' trailing daily totals. The windows are
// identical across profiles because every dataset in a run shares one
// reference end time. Unlike per-profile TPD, the aggregate timeline is
// densified with zeros so the combined trend line is continuous.
func sumDaily(perProfile map[string]ProcessedMetrics) timeseries.Series {
	totals := make(map[int64]float64)
	for _, pm := range perProfile {
		m, ok := pm[MetricTPD]
		if !ok {
			continue
		}
		for _, sm := range m.Series.Samples {
			if sm.Valid {
				totals[sm.Time.Unix()] += sm.Value
			}
		}
	}
	sparse := sparseFromTotals(totals, 24*time.Hour)
	if sparse.Empty() {
		return sparse
	}

	dense := timeseries.Series{Period: 24 * time.Hour}
	first := sparse.Samples[0].Time
	last := sparse.Samples[len(sparse.Samples)-1].Time
	for cur := first; !cur.After(last); cur = cur.Add(24 * time.Hour) {
		dense.Samples = append(dense.Samples, timeseries.Observed(cur, totals[cur.Unix()]))
	}
	return dense
}

func sparseFromTotals(totals map[int64]float64, period time.Duration) timeseries.Series {
	keys := make([]int64, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	s := timeseries.Series{Period: period}
	for _, k := range keys {
		s.Samples = append(s.Samples, timeseries.Observed(time.Unix(k, 0).UTC(), totals[k]))
	}
	return s
}

func metricNameUnion(perProfile map[string]ProcessedMetrics) []string {
	seen := make(map[string]bool)
	for _, pm := range perProfile {
		for name := range pm {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
