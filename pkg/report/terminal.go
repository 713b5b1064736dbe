package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/guptarohit/asciigraph"

	"github.com/oddgeir/bedrockusage/pkg/metrics"
	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

const (
	chartHeight = 10
	chartWidth  = 72
)

// PrintSummary writes a terminal rendition of the document: per-window
// statistics tables and an aggregate TPM chart.
func PrintSummary(w io.Writer, doc Document) {
	fmt.Fprintf(w, "%s", doc.ModelID)
	if doc.ModelName != "" {
		fmt.Fprintf(w, " (%s)", doc.ModelName)
	}
	fmt.Fprintf(w, " - %s\n", doc.Region)

	for _, win := range doc.Windows {
		fmt.Fprintf(w, "\n%s\n", win.DisplayName)
		fmt.Fprintf(w, "  %-26s %8s %14s %12s %12s %12s\n", "metric", "count", "sum", "avg", "p50", "p90")
		for _, name := range orderedMetricNames(win.Aggregate) {
			s := win.Aggregate[name].Stats
			fmt.Fprintf(w, "  %-26s %8d %14.0f %12.1f %12.1f %12.1f\n", name, s.Count, s.Sum, s.Avg, s.P50, s.P90)
		}

		if tpm, ok := win.Aggregate[metrics.MetricTPM]; ok && !tpm.Series.Empty() {
			fmt.Fprintln(w)
			fmt.Fprintln(w, plotSeries(tpm.Series.Samples, "tokens per minute"))
		}
	}
}

func plotSeries(samples []timeseries.Sample, caption string) string {
	data := make([]float64, len(samples))
	for i, s := range samples {
		if s.Valid {
			data[i] = s.Value
		}
	}
	return asciigraph.Plot(data,
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Caption(caption),
	)
}

func orderedMetricNames(pm metrics.ProcessedMetrics) []string {
	order := []string{
		metrics.MetricTPM, metrics.MetricRPM, metrics.MetricTPD,
		metrics.MetricInputTokens, metrics.MetricOutputTokens, metrics.MetricInvocations,
		metrics.MetricThrottles, metrics.MetricClientErrors, metrics.MetricServerErrors,
		metrics.MetricLatency,
	}
	var out []string
	seen := map[string]bool{}
	for _, name := range order {
		if _, ok := pm[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range pm {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
