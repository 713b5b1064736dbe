// Package analyzer drives a full usage analysis: inference-profile
// discovery, quota resolution, metric fetching and report generation,
// one document per analyzed model.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oddgeir/bedrockusage/pkg/bedrock"
	"github.com/oddgeir/bedrockusage/pkg/cache"
	"github.com/oddgeir/bedrockusage/pkg/config"
	"github.com/oddgeir/bedrockusage/pkg/metrics"
	"github.com/oddgeir/bedrockusage/pkg/quotamap"
	"github.com/oddgeir/bedrockusage/pkg/report"
)

// Discovered profile lists are cached between runs; profiles change
// rarely compared to how often analyses are rerun.
const profileCacheTTL = time.Hour

// DiscoveryAPI is the Bedrock control-plane surface the analyzer needs.
type DiscoveryAPI interface {
	ListProfiles(ctx context.Context) ([]bedrock.Profile, error)
	Tags(ctx context.Context, resourceARN string) (map[string]string, error)
}

// Fetcher pulls raw CloudWatch datasets for a set of entities.
type Fetcher interface {
	FetchAll(ctx context.Context, entityIDs []string, granularity map[string]time.Duration) (*metrics.Store, error)
}

// QuotaResolver resolves quota values for one model endpoint.
type QuotaResolver interface {
	Resolve(ctx context.Context, modelID, prefix string) (quotamap.ModelQuotas, error)
}

type Analyzer struct {
	cfg       config.Config
	discovery DiscoveryAPI
	fetcher   Fetcher
	quotas    QuotaResolver
	now       func() time.Time
}

func New(cfg config.Config, discovery DiscoveryAPI, fetcher Fetcher, quotas QuotaResolver) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		discovery: discovery,
		fetcher:   fetcher,
		quotas:    quotas,
		now:       time.Now,
	}
}

// SetClock overrides the time source, used in tests.
func (a *Analyzer) SetClock(now func() time.Time) { a.now = now }

// Run analyzes every configured model and writes its reports to the
// output directory. Models without configuration are derived from the
// discovered inference profiles.
func (a *Analyzer) Run(ctx context.Context) ([]report.Document, error) {
	profiles, err := a.discoverProfiles(ctx)
	if err != nil {
		if len(a.cfg.Models) == 0 {
			return nil, fmt.Errorf("discover inference profiles: %w", err)
		}
		log.Warn("profile discovery failed, analyzing configured endpoints only", "err", err)
	}

	targets := a.buildTargets(profiles)
	if len(targets) == 0 {
		return nil, errors.New("nothing to analyze: no models configured and no inference profiles found")
	}

	var docs []report.Document
	for _, t := range targets {
		doc, err := a.analyzeModel(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", t.model.ModelID, err)
		}
		if _, err := report.WriteJSON(a.cfg.OutputDir, doc); err != nil {
			return nil, err
		}
		path, err := report.WriteHTML(a.cfg.OutputDir, doc)
		if err != nil {
			return nil, err
		}
		log.Info("report written", "model", t.model.ModelID, "path", path)
		docs = append(docs, doc)
	}
	return docs, nil
}

type target struct {
	model    config.ModelConfig
	profiles []bedrock.Profile
}

// buildTargets pairs each analyzed model with its discovered profiles.
// Configured models win; otherwise one target per distinct discovered
// model id, using the most common prefix as the model's endpoint.
func (a *Analyzer) buildTargets(profiles []bedrock.Profile) []target {
	byModel := make(map[string][]bedrock.Profile)
	for _, p := range profiles {
		byModel[p.ModelID] = append(byModel[p.ModelID], p)
	}

	if len(a.cfg.Models) > 0 {
		out := make([]target, 0, len(a.cfg.Models))
		for _, m := range a.cfg.Models {
			out = append(out, target{model: m, profiles: byModel[m.ModelID]})
		}
		return out
	}

	ids := make([]string, 0, len(byModel))
	for id := range byModel {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]target, 0, len(ids))
	for _, id := range ids {
		out = append(out, target{
			model:    config.ModelConfig{ModelID: id, ProfilePrefix: dominantPrefix(byModel[id])},
			profiles: byModel[id],
		})
	}
	return out
}

func dominantPrefix(profiles []bedrock.Profile) string {
	counts := make(map[string]int)
	for _, p := range profiles {
		counts[p.Prefix]++
	}
	best, bestCount := "", -1
	for prefix, n := range counts {
		if n > bestCount || (n == bestCount && prefix < best) {
			best, bestCount = prefix, n
		}
	}
	return best
}

func (a *Analyzer) analyzeModel(ctx context.Context, t target) (report.Document, error) {
	entities := []string{t.model.Endpoint()}
	seen := map[string]bool{entities[0]: true}
	for _, p := range t.profiles {
		if !seen[p.ID] {
			entities = append(entities, p.ID)
			seen[p.ID] = true
		}
	}

	granularity := a.cfg.Granularity()
	store, err := a.fetcher.FetchAll(ctx, entities, granularity)
	if err != nil {
		return report.Document{}, err
	}

	doc := report.Document{
		ModelID:       t.model.ModelID,
		Region:        a.cfg.Region,
		GeneratedAt:   store.End,
		Granularities: granularityLabels(granularity),
		Quotas:        a.resolveQuotas(ctx, t),
		Profiles:      profileInfos(t.profiles),
		Disclaimers:   report.StandardDisclaimers,
	}

	names := map[string]string{}
	for _, p := range t.profiles {
		names[p.ID] = p.Name
	}

	for _, window := range metrics.Windows {
		period, ok := granularity[window.Name]
		if !ok {
			continue
		}
		perEntity := make(map[string]metrics.ProcessedMetrics)
		for _, entity := range entities {
			pm := metrics.ProcessWindow(store, entity, window, period)
			if len(pm) > 0 {
				perEntity[entity] = pm
			}
		}
		doc.Windows = append(doc.Windows, report.WindowReport{
			Name:          window.Name,
			DisplayName:   report.DisplayName(window.Name),
			Aggregate:     metrics.Aggregate(perEntity, window, period),
			Profiles:      perEntity,
			Contributions: contributions(perEntity, names),
		})
	}
	return doc, nil
}

// resolveQuotas fetches quota values for every endpoint class the model
// is reached through. Failures degrade to a report without quotas.
func (a *Analyzer) resolveQuotas(ctx context.Context, t target) map[string]quotamap.ModelQuotas {
	prefixes := map[string]bool{t.model.ProfilePrefix: true}
	for _, p := range t.profiles {
		prefixes[p.Prefix] = true
	}

	out := make(map[string]quotamap.ModelQuotas)
	for prefix := range prefixes {
		quotas, err := a.quotas.Resolve(ctx, t.model.ModelID, prefix)
		if err != nil {
			log.Warn("quota resolution failed", "model", t.model.ModelID, "prefix", prefix, "err", err)
			continue
		}
		if len(quotas) == 0 {
			continue
		}
		key := prefix
		if key == "" {
			key = "base"
		}
		out[key] = quotas
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (a *Analyzer) discoverProfiles(ctx context.Context) ([]bedrock.Profile, error) {
	if path := ProfileCachePath(a.cfg); path != "" {
		var cached []bedrock.Profile
		if err := cache.Load(path, profileCacheTTL, a.now(), &cached); err == nil {
			log.Debug("using cached inference profiles", "count", len(cached))
			return cached, nil
		}
	}
	return DiscoverProfiles(ctx, a.cfg, a.discovery, a.now())
}

// ProfileCachePath is where discovered profiles for a region are
// persisted between runs; empty when no cache directory is configured.
func ProfileCachePath(cfg config.Config) string {
	if cfg.CacheDir == "" {
		return ""
	}
	return filepath.Join(cfg.CacheDir, "profiles_"+cfg.Region+".json")
}

// DiscoverProfiles lists the region's inference profiles, fills missing
// display names from resource tags, and rewrites the profile cache. It
// always hits the API; callers wanting cache reuse go through Run.
func DiscoverProfiles(ctx context.Context, cfg config.Config, discovery DiscoveryAPI, now time.Time) ([]bedrock.Profile, error) {
	profiles, err := discovery.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].Name != "" {
			continue
		}
		tags, err := discovery.Tags(ctx, profiles[i].ARN)
		if err != nil {
			log.Debug("tag lookup failed", "profile", profiles[i].ID, "err", err)
			continue
		}
		profiles[i].Tags = tags
		profiles[i].Name = tags["Name"]
	}

	if path := ProfileCachePath(cfg); path != "" {
		if err := cache.Save(path, profiles, now); err != nil {
			log.Warn("could not cache inference profiles", "err", err)
		}
	}
	return profiles, nil
}

func profileInfos(profiles []bedrock.Profile) []report.ProfileInfo {
	out := make([]report.ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, report.ProfileInfo{ID: p.ID, Name: p.Name, Prefix: p.Prefix})
	}
	return out
}

// contributions ranks entities by their share of the window's usage.
// Statistics come from the 1-minute observations, not the downsampled
// chart series.
func contributions(perEntity map[string]metrics.ProcessedMetrics, names map[string]string) []report.Contribution {
	var out []report.Contribution
	for entity, pm := range perEntity {
		c := report.Contribution{
			ProfileID:   entity,
			ProfileName: names[entity],
			TPM:         dimensionStats(pm, metrics.MetricTPM1Min),
			RPM:         dimensionStats(pm, metrics.MetricRPM1Min),
			TPD:         dimensionStats(pm, metrics.MetricTPD),
		}
		if m, ok := pm[metrics.MetricThrottles]; ok {
			c.ThrottleSum = m.Stats.Sum
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TPM.Avg != out[j].TPM.Avg {
			return out[i].TPM.Avg > out[j].TPM.Avg
		}
		return out[i].ProfileID < out[j].ProfileID
	})
	return out
}

func dimensionStats(pm metrics.ProcessedMetrics, name string) report.DimensionStats {
	m, ok := pm[name]
	if !ok {
		return report.DimensionStats{}
	}
	return report.DimensionStats{Avg: m.Stats.Avg, P50: m.Stats.P50, P90: m.Stats.P90}
}

func granularityLabels(granularity map[string]time.Duration) map[string]string {
	out := make(map[string]string, len(granularity))
	for name, period := range granularity {
		out[name] = periodLabel(period)
	}
	return out
}

func periodLabel(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	return fmt.Sprintf("%dm", d/time.Minute)
}
