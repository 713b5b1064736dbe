package quotamap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/oddgeir/bedrockusage/pkg/catalog"
	"github.com/oddgeir/bedrockusage/pkg/servicequotas"
)

// Usage dimensions a quota record can govern.
const (
	DimTPM = "tpm"
	DimRPM = "rpm"
	DimTPD = "tpd"
)

// QuotaValue is one resolved quota: the catalog code plus the live value
// from Service Quotas. HasValue is false when the record exists in the
// catalog but Service Quotas has no entry for it.
type QuotaValue struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	HasValue   bool    `json:"has_value"`
	ConsoleURL string  `json:"console_url"`
}

// ModelQuotas maps usage dimension ("tpm", "rpm", "tpd") to its resolved
// quota for one model endpoint.
type ModelQuotas map[string]QuotaValue

// QuotaAPI is the Service Quotas surface the resolver needs.
type QuotaAPI interface {
	GetQuota(ctx context.Context, serviceCode, quotaCode string) (servicequotas.Quota, error)
}

// Resolver looks up quota codes in the catalog and fetches their values.
type Resolver struct {
	cat    *catalog.Catalog
	api    QuotaAPI
	region string
}

func NewResolver(cat *catalog.Catalog, api QuotaAPI, region string) *Resolver {
	return &Resolver{cat: cat, api: api, region: region}
}

// Resolve fetches the TPM/RPM/TPD quotas for a model endpoint. Models or
// endpoints missing from the catalog yield an empty result; individual
// records missing upstream keep their code with HasValue false. TPD
// values double for regional cross-region endpoints, which are measured
// per source region while CloudWatch usage spans both.
func (r *Resolver) Resolve(ctx context.Context, modelID, prefix string) (ModelQuotas, error) {
	codes := r.cat.QuotaCodes(r.region, modelID, prefix)
	if len(codes) == 0 {
		return nil, nil
	}
	regional, err := r.cat.RegionalPrefixes()
	if err != nil {
		return nil, err
	}

	out := make(ModelQuotas, len(codes))
	for dim, code := range codes {
		qv := QuotaValue{
			Code:       code.Code,
			Name:       code.Name,
			ConsoleURL: ConsoleURL(r.region, code.Code),
		}
		quota, err := r.api.GetQuota(ctx, servicequotas.ServiceCode, code.Code)
		switch {
		case errors.Is(err, servicequotas.ErrNotFound):
			log.Debug("quota has no live value", "model", modelID, "dimension", dim, "code", code.Code)
		case err != nil:
			return nil, fmt.Errorf("resolve %s quota for %s: %w", dim, modelID, err)
		default:
			qv.Value = quota.Value
			qv.HasValue = true
			if dim == DimTPD && regional[prefix] {
				qv.Value *= 2
			}
		}
		out[dim] = qv
	}
	return out, nil
}

// ConsoleURL builds the AWS console deep link for a Bedrock quota.
func ConsoleURL(region, code string) string {
	return fmt.Sprintf("https://%s.console.aws.amazon.com/servicequotas/home/services/bedrock/quotas/%s", region, code)
}

// Dimension classifies a Service Quotas record name into a usage
// dimension, or "" when the record governs something else.
func Dimension(quotaName string) string {
	n := strings.ToLower(quotaName)
	switch {
	case strings.Contains(n, "tokens per day"):
		return DimTPD
	case strings.Contains(n, "tokens per minute"):
		return DimTPM
	case strings.Contains(n, "requests per minute"):
		return DimRPM
	}
	return ""
}

// MatchesKeyword reports whether a quota record belongs to an endpoint
// class. Cross-region records exclude the global pool, which carries its
// own keyword.
func MatchesKeyword(quotaName, keyword string) bool {
	n := strings.ToLower(quotaName)
	switch keyword {
	case catalog.KeywordOnDemand:
		return strings.Contains(n, "on-demand")
	case catalog.KeywordCrossRegion:
		return strings.Contains(n, "cross-region") && !strings.Contains(n, "global")
	case catalog.KeywordGlobal:
		return strings.Contains(n, "global")
	}
	return false
}
