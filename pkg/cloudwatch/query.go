package cloudwatch

import "time"

const namespace = "AWS/Bedrock"

type Statistic string

const (
	StatSum     Statistic = "Sum"
	StatAverage Statistic = "Average"
)

// Counter identifies one raw Bedrock counter and how CloudWatch should
// aggregate it within a period. Everything is a Sum except latency,
// which only makes sense as an Average.
type Counter struct {
	ID         string
	MetricName string
	Stat       Statistic
}

// TokenCounters are always fetched at 1-minute granularity so that
// per-minute rate peaks survive into TPM/RPM statistics.
var TokenCounters = []Counter{
	{ID: "invocations", MetricName: "Invocations", Stat: StatSum},
	{ID: "input_tokens", MetricName: "InputTokenCount", Stat: StatSum},
	{ID: "output_tokens", MetricName: "OutputTokenCount", Stat: StatSum},
}

// AuxiliaryCounters are fetched at the user-configured granularity.
var AuxiliaryCounters = []Counter{
	{ID: "throttles", MetricName: "InvocationThrottles", Stat: StatSum},
	{ID: "client_errors", MetricName: "InvocationClientErrors", Stat: StatSum},
	{ID: "server_errors", MetricName: "InvocationServerErrors", Stat: StatSum},
	{ID: "latency", MetricName: "InvocationLatency", Stat: StatAverage},
}

// Query is one metric-data query descriptor: a counter bound to a
// model dimension and sampling period.
type Query struct {
	ID         string
	MetricName string
	ModelID    string
	Period     time.Duration
	Stat       Statistic
}

// BuildQueries binds each counter to the given model id and period.
func BuildQueries(counters []Counter, modelID string, period time.Duration) []Query {
	queries := make([]Query, 0, len(counters))
	for _, c := range counters {
		queries = append(queries, Query{
			ID:         c.ID,
			MetricName: c.MetricName,
			ModelID:    modelID,
			Period:     period,
			Stat:       c.Stat,
		})
	}
	return queries
}
