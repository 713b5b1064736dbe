package catalog

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed data/regions.yml data/prefix-mapping.yml data/fm-list/*.yml
var embedded embed.FS

// Quota keywords distinguishing which Service Quotas records apply to
// an endpoint class.
const (
	KeywordOnDemand    = "on-demand"
	KeywordCrossRegion = "cross-region"
	KeywordGlobal      = "global"
)

// QuotaCode references one Service Quotas record for a model endpoint.
type QuotaCode struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Endpoint holds the quota codes known for one endpoint of a model,
// keyed by usage dimension ("tpm", "rpm", "tpd").
type Endpoint struct {
	Quotas map[string]*QuotaCode `yaml:"quotas"`
}

// Model is one foundation-model entry of a regional FM list.
type Model struct {
	ModelID   string              `yaml:"model_id"`
	Provider  string              `yaml:"provider"`
	Name      string              `yaml:"name"`
	Endpoints map[string]Endpoint `yaml:"endpoints"`
}

// Prefix describes one inference-profile endpoint prefix.
type Prefix struct {
	Prefix       string `yaml:"prefix"`
	QuotaKeyword string `yaml:"quota_keyword"`
	Description  string `yaml:"description,omitempty"`
	IsRegional   bool   `yaml:"is_regional"`
}

// Catalog reads metadata from an optional data directory, falling back
// to the embedded snapshots. Refresh commands write updated lists to
// the data directory; analysis never requires one.
type Catalog struct {
	dataDir string
}

func New(dataDir string) *Catalog {
	return &Catalog{dataDir: dataDir}
}

func (c *Catalog) load(rel string, out any) error {
	if c.dataDir != "" {
		if b, err := os.ReadFile(filepath.Join(c.dataDir, rel)); err == nil {
			return yaml.Unmarshal(b, out)
		}
	}
	b, err := embedded.ReadFile("data/" + rel)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

// Regions lists the regions with known FM metadata.
func (c *Catalog) Regions() ([]string, error) {
	var doc struct {
		Regions []string `yaml:"regions"`
	}
	if err := c.load("regions.yml", &doc); err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}
	return doc.Regions, nil
}

// Prefixes lists the known endpoint prefixes.
func (c *Catalog) Prefixes() ([]Prefix, error) {
	var doc struct {
		Prefixes []Prefix `yaml:"prefixes"`
	}
	if err := c.load("prefix-mapping.yml", &doc); err != nil {
		return nil, fmt.Errorf("load prefix mapping: %w", err)
	}
	return doc.Prefixes, nil
}

// RegionalPrefixes returns the prefixes that denote regional
// cross-region endpoints ("us", "eu", ...). TPD quotas for those carry
// a 2x multiplier.
func (c *Catalog) RegionalPrefixes() (map[string]bool, error) {
	prefixes, err := c.Prefixes()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, p := range prefixes {
		if p.IsRegional {
			out[p.Prefix] = true
		}
	}
	return out, nil
}

// QuotaKeyword resolves the Service Quotas keyword for an endpoint
// prefix; empty prefix means the base on-demand endpoint.
func (c *Catalog) QuotaKeyword(prefix string) (string, error) {
	if prefix == "" {
		prefix = "base"
	}
	prefixes, err := c.Prefixes()
	if err != nil {
		return "", err
	}
	for _, p := range prefixes {
		if p.Prefix == prefix {
			return p.QuotaKeyword, nil
		}
	}
	return "", fmt.Errorf("unknown endpoint prefix %q", prefix)
}

// Models loads the FM list for a region.
func (c *Catalog) Models(region string) ([]Model, error) {
	var doc struct {
		Models []Model `yaml:"models"`
	}
	if err := c.load(filepath.Join("fm-list", region+".yml"), &doc); err != nil {
		return nil, fmt.Errorf("load fm list for %s: %w", region, err)
	}
	return doc.Models, nil
}

// QuotaCodes returns the quota codes for a model's endpoint. An
// unknown model or endpoint is a normal outcome and yields an empty
// map, never an error.
func (c *Catalog) QuotaCodes(region, modelID, prefix string) map[string]QuotaCode {
	models, err := c.Models(region)
	if err != nil {
		return nil
	}
	endpointKey := prefix
	if endpointKey == "" {
		endpointKey = "base"
	}
	for _, m := range models {
		if m.ModelID != modelID {
			continue
		}
		ep, ok := m.Endpoints[endpointKey]
		if !ok {
			return nil
		}
		out := make(map[string]QuotaCode)
		for dim, qc := range ep.Quotas {
			if qc != nil && qc.Code != "" {
				out[dim] = *qc
			}
		}
		return out
	}
	return nil
}

// SaveModels writes a refreshed FM list into the data directory.
func (c *Catalog) SaveModels(region string, models []Model) error {
	if c.dataDir == "" {
		return fmt.Errorf("no data directory configured")
	}
	doc := struct {
		Models []Model `yaml:"models"`
	}{Models: models}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode fm list: %w", err)
	}
	dir := filepath.Join(c.dataDir, "fm-list")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir fm list dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, region+".yml"), b, 0o600); err != nil {
		return fmt.Errorf("write fm list: %w", err)
	}
	return nil
}
