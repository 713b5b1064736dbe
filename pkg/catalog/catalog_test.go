package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedRegions(t *testing.T) {
	c := New("")
	regions, err := c.Regions()
	require.NoError(t, err)
	assert.Contains(t, regions, "us-east-1")
	assert.Contains(t, regions, "eu-west-1")
}

func TestQuotaKeywordByPrefix(t *testing.T) {
	c := New("")
	for prefix, want := range map[string]string{
		"":       KeywordOnDemand,
		"us":     KeywordCrossRegion,
		"apac":   KeywordCrossRegion,
		"global": KeywordGlobal,
	} {
		got, err := c.QuotaKeyword(prefix)
		require.NoError(t, err, prefix)
		assert.Equal(t, want, got, prefix)
	}
	_, err := c.QuotaKeyword("mars")
	assert.Error(t, err)
}

func TestRegionalPrefixes(t *testing.T) {
	c := New("")
	regional, err := c.RegionalPrefixes()
	require.NoError(t, err)
	assert.True(t, regional["us"])
	assert.True(t, regional["eu"])
	assert.False(t, regional["global"])
	assert.False(t, regional["base"])
}

func TestQuotaCodesLookup(t *testing.T) {
	c := New("")
	codes := c.QuotaCodes("us-east-1", "anthropic.claude-sonnet-4-20250514-v1:0", "us")
	require.NotEmpty(t, codes)
	assert.Equal(t, "L-59759B4A", codes["tpm"].Code)
	assert.Contains(t, codes, "tpd")
}

func TestQuotaCodesAbsenceIsNormal(t *testing.T) {
	c := New("")
	assert.Empty(t, c.QuotaCodes("us-east-1", "nonexistent.model-v1:0", ""))
	assert.Empty(t, c.QuotaCodes("us-east-1", "anthropic.claude-sonnet-4-20250514-v1:0", "apac"))
	assert.Empty(t, c.QuotaCodes("no-such-region", "anthropic.claude-sonnet-4-20250514-v1:0", "us"))
}

func TestQuotaCodesSkipsNullEntries(t *testing.T) {
	c := New("")
	codes := c.QuotaCodes("us-east-1", "amazon.nova-lite-v1:0", "base")
	assert.Contains(t, codes, "tpm")
	assert.NotContains(t, codes, "tpd", "null catalog entries are omitted")
}

func TestSaveModelsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	models := []Model{{
		ModelID:  "test.model-v1:0",
		Provider: "Test",
		Name:     "Test Model",
		Endpoints: map[string]Endpoint{
			"base": {Quotas: map[string]*QuotaCode{
				"tpm": {Code: "L-TEST", Name: "test tpm"},
			}},
		},
	}}
	require.NoError(t, c.SaveModels("eu-west-3", models))

	loaded, err := c.Models("eu-west-3")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "L-TEST", loaded[0].Endpoints["base"].Quotas["tpm"].Code)
}
