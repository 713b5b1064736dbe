package report

import (
	"strings"
	"time"

	"github.com/oddgeir/bedrockusage/pkg/metrics"
	"github.com/oddgeir/bedrockusage/pkg/quotamap"
)

// Document is the full analysis result for one model, the unit both the
// JSON and HTML writers consume.
type Document struct {
	ModelID       string                          `json:"model_id"`
	ModelName     string                          `json:"model_name,omitempty"`
	Region        string                          `json:"region"`
	GeneratedAt   time.Time                       `json:"generated_at"`
	Granularities map[string]string               `json:"granularities"`
	Profiles      []ProfileInfo                   `json:"profiles"`
	Quotas        map[string]quotamap.ModelQuotas `json:"quotas,omitempty"`
	Windows       []WindowReport                  `json:"windows"`
	Disclaimers   []string                        `json:"disclaimers,omitempty"`
}

// ProfileInfo names one inference profile contributing to the model.
type ProfileInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// WindowReport carries one time window's processed metrics.
type WindowReport struct {
	Name          string                              `json:"name"`
	DisplayName   string                              `json:"display_name"`
	Aggregate     metrics.ProcessedMetrics            `json:"aggregate"`
	Profiles      map[string]metrics.ProcessedMetrics `json:"profiles,omitempty"`
	Contributions []Contribution                      `json:"contributions,omitempty"`
}

// Contribution summarizes one profile's share of a window's usage.
type Contribution struct {
	ProfileID   string         `json:"profile_id"`
	ProfileName string         `json:"profile_name,omitempty"`
	TPM         DimensionStats `json:"tpm"`
	RPM         DimensionStats `json:"rpm"`
	TPD         DimensionStats `json:"tpd"`
	ThrottleSum float64        `json:"throttle_sum"`
}

// DimensionStats is the reduced statistics shown in contribution rows.
type DimensionStats struct {
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// StandardDisclaimers accompany every report.
var StandardDisclaimers = []string{
	"CloudWatch metrics lag real traffic by a few minutes; the most recent samples may still be filling in.",
	"Token counts cover invocation usage only and exclude cached or batched traffic not reported per model.",
	"Quota values are point-in-time reads; account-level overrides may apply.",
}

var displayNames = map[string]string{
	"1hour":  "Last hour",
	"1day":   "Last 24 hours",
	"7days":  "Last 7 days",
	"14days": "Last 14 days",
	"30days": "Last 30 days",
}

// DisplayName maps a window name to its report heading.
func DisplayName(window string) string {
	if d, ok := displayNames[window]; ok {
		return d
	}
	return window
}

// SafeFileName flattens a model id into a filesystem-safe base name.
func SafeFileName(modelID string) string {
	r := strings.NewReplacer(":", "_", ".", "_", "/", "_")
	return r.Replace(modelID)
}
