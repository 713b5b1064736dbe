package metrics

import (
	"context"
	"sort"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/oddgeir/bedrockusage/pkg/cloudwatch"
	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

// API is the upstream metrics query boundary. The production
// implementation is cloudwatch.Client.
type API interface {
	GetMetricData(ctx context.Context, queries []cloudwatch.Query, start, end time.Time) (map[string][]timeseries.Sample, error)
}

// fetchDataset pulls every counter of one fetch class for one profile
// over [start, end), issuing one multi-metric query per chunk. After
// all chunks, the counters are realigned onto the union of their
// timestamps: chunked responses do not guarantee identical timestamp
// sets per counter, and a hole in one counter must become an explicit
// gap, not a dropped row.
func fetchDataset(ctx context.Context, api API, profileID string, class FetchClass, start, end time.Time, progress *Progress) (RawDataset, error) {
	queries := cloudwatch.BuildQueries(class.Counters(), profileID, class.Period)
	chunks := timeseries.ChunkRange(start, end, class.Period, timeseries.MaxSamplesPerRequest)

	accumulated := make(map[string][]timeseries.Sample)
	for _, chunk := range chunks {
		page, err := api.GetMetricData(ctx, queries, chunk.Start, chunk.End)
		if err != nil {
			return EmptyDataset(class, end), err
		}
		completed, percent := progress.Inc()
		log.Debug("chunk complete", "profile", profileID, "progress", completed, "total", progress.Total(), "pct", percent)

		for id, samples := range page {
			accumulated[id] = append(accumulated[id], samples...)
		}
	}

	return alignDataset(class, accumulated, end), nil
}

// alignDataset re-expresses every counter against the sorted union of
// all observed timestamps, with invalid samples where a counter had no
// datapoint at a shared timestamp.
func alignDataset(class FetchClass, accumulated map[string][]timeseries.Sample, end time.Time) RawDataset {
	union := make(map[int64]time.Time)
	for _, samples := range accumulated {
		for _, sm := range samples {
			union[sm.Time.Unix()] = sm.Time
		}
	}
	axis := make([]time.Time, 0, len(union))
	for _, t := range union {
		axis = append(axis, t)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })

	ds := RawDataset{Series: make(map[string]timeseries.Series), Period: class.Period, End: end}
	for _, counter := range class.Counters() {
		byTime := make(map[int64]float64, len(accumulated[counter.ID]))
		for _, sm := range accumulated[counter.ID] {
			byTime[sm.Time.Unix()] = sm.Value
		}
		s := timeseries.Series{Period: class.Period, Samples: make([]timeseries.Sample, 0, len(axis))}
		for _, t := range axis {
			if v, ok := byTime[t.Unix()]; ok {
				s.Samples = append(s.Samples, timeseries.Observed(t, v))
			} else {
				s.Samples = append(s.Samples, timeseries.Missing(t))
			}
		}
		ds.Series[counter.ID] = s
	}
	return ds
}
