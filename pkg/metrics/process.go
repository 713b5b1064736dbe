package metrics

import (
	"time"

	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

// Derived metric names as they appear in reports.
const (
	MetricTPM          = "TPM"
	MetricRPM          = "RPM"
	MetricTPM1Min      = "TPM_1min"
	MetricRPM1Min      = "RPM_1min"
	MetricTPD          = "TPD"
	MetricInvocations  = "Invocations"
	MetricInputTokens  = "InputTokenCount"
	MetricOutputTokens = "OutputTokenCount"
	MetricThrottles    = "InvocationThrottles"
	MetricClientErrors = "InvocationClientErrors"
	MetricServerErrors = "InvocationServerErrors"
	MetricLatency      = "InvocationLatency"
)

// Metric pairs a chart series with the summary statistics of its
// sparse non-null observations. Statistics are never computed from
// gap-filled points.
type Metric struct {
	Series timeseries.Series  `json:"series"`
	Stats  timeseries.Summary `json:"stats"`
}

// ProcessedMetrics maps derived metric names to their series and
// statistics for one profile and window.
type ProcessedMetrics map[string]Metric

func observedMetric(s timeseries.Series) Metric {
	return Metric{Series: s, Stats: timeseries.Summarize(s.ObservedValues())}
}

// ProcessWindow slices one profile's datasets to a lookback window and
// derives its metrics. The token dataset drives TPM/RPM/TPD and raw
// token counts; the auxiliary dataset at the configured period drives
// throttles, errors and latency. A missing auxiliary dataset (failed
// fetch) degrades to token-only output.
func ProcessWindow(store *Store, profileID string, window Window, period time.Duration) ProcessedMetrics {
	out := ProcessedMetrics{}
	start := store.End.Add(-window.Duration)

	token, ok := store.Dataset(profileID, TokenClass())
	if ok {
		processTokenMetrics(out, token, start, store.End, window, period)
	}
	aux, ok := store.Dataset(profileID, AuxiliaryClass(period))
	if ok {
		processAuxiliaryMetrics(out, aux, start, store.End)
	}
	return out
}

func processTokenMetrics(out ProcessedMetrics, token RawDataset, start, end time.Time, window Window, period time.Duration) {
	inv := token.Series["invocations"].SliceWindow(start, end)
	input := token.Series["input_tokens"].SliceWindow(start, end)
	output := token.Series["output_tokens"].SliceWindow(start, end)

	perMinute := token.Period.Minutes()

	// TPM is defined only where both token counters reported a value;
	// a half-observed minute would understate the true rate.
	tpm := timeseries.Series{Period: token.Period}
	var totalTokens []timeseries.Sample
	for i := range input.Samples {
		if i >= len(output.Samples) {
			break
		}
		in, outp := input.Samples[i], output.Samples[i]
		if !in.Valid || !outp.Valid {
			continue
		}
		total := in.Value + outp.Value
		totalTokens = append(totalTokens, timeseries.Observed(in.Time, total))
		tpm.Samples = append(tpm.Samples, timeseries.Observed(in.Time, total/perMinute))
	}

	if !tpm.Empty() {
		out[MetricTPM1Min] = observedMetric(tpm)
		out[MetricTPM] = observedMetric(timeseries.FillGaps(timeseries.PeakDownsample(tpm, period)))
		out[MetricInputTokens] = observedMetric(timeseries.FillGaps(input))
		out[MetricOutputTokens] = observedMetric(timeseries.FillGaps(output))

		if window.HasDailyTrend() {
			out[MetricTPD] = observedMetric(timeseries.Series{
				Period:  24 * time.Hour,
				Samples: timeseries.TrailingDailyTotals(totalTokens, end),
			})
		}
	}

	rpm := timeseries.Series{Period: token.Period}
	for _, sm := range inv.Samples {
		if sm.Valid {
			rpm.Samples = append(rpm.Samples, timeseries.Observed(sm.Time, sm.Value/perMinute))
		}
	}
	if !rpm.Empty() {
		out[MetricRPM1Min] = observedMetric(rpm)
		out[MetricRPM] = observedMetric(timeseries.FillGaps(timeseries.PeakDownsample(rpm, period)))
		out[MetricInvocations] = observedMetric(timeseries.FillGaps(inv))
	}
}

func processAuxiliaryMetrics(out ProcessedMetrics, aux RawDataset, start, end time.Time) {
	counters := map[string]string{
		"throttles":     MetricThrottles,
		"client_errors": MetricClientErrors,
		"server_errors": MetricServerErrors,
		"latency":       MetricLatency,
	}
	for counterID, name := range counters {
		sliced := aux.Series[counterID].SliceWindow(start, end)
		if sliced.Empty() {
			continue
		}
		out[name] = observedMetric(timeseries.FillGaps(sliced))
	}
}
