package quotamap

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddgeir/bedrockusage/pkg/catalog"
	"github.com/oddgeir/bedrockusage/pkg/servicequotas"
)

type fakeQuotaAPI struct {
	values map[string]float64
	calls  []string
}

func (f *fakeQuotaAPI) GetQuota(_ context.Context, _, code string) (servicequotas.Quota, error) {
	f.calls = append(f.calls, code)
	v, ok := f.values[code]
	if !ok {
		return servicequotas.Quota{}, servicequotas.ErrNotFound
	}
	return servicequotas.Quota{QuotaCode: code, Value: v}, nil
}

func TestResolve(t *testing.T) {
	api := &fakeQuotaAPI{values: map[string]float64{
		"L-59759B4A": 2_000_000,
		"L-9A7A3E5C": 500,
		"L-FA07DCF0": 100_000_000,
	}}
	r := NewResolver(catalog.New(""), api, "us-east-1")

	quotas, err := r.Resolve(context.Background(), "anthropic.claude-sonnet-4-20250514-v1:0", "us")
	require.NoError(t, err)
	require.Contains(t, quotas, DimTPM)
	require.Contains(t, quotas, DimTPD)

	tpm := quotas[DimTPM]
	assert.True(t, tpm.HasValue)
	assert.Equal(t, 2_000_000.0, tpm.Value)
	assert.Equal(t, "https://us-east-1.console.aws.amazon.com/servicequotas/home/services/bedrock/quotas/L-59759B4A", tpm.ConsoleURL)

	tpd := quotas[DimTPD]
	assert.Equal(t, 200_000_000.0, tpd.Value, "regional cross-region TPD doubles")
}

func TestResolveOnDemandTPDNotDoubled(t *testing.T) {
	api := &fakeQuotaAPI{values: map[string]float64{
		"L-7E0A036F": 1_000_000,
	}}
	r := NewResolver(catalog.New(""), api, "us-east-1")

	quotas, err := r.Resolve(context.Background(), "anthropic.claude-sonnet-4-20250514-v1:0", "global")
	require.NoError(t, err)
	assert.Equal(t, 1_000_000.0, quotas[DimTPM].Value, "global prefix is not regional")
}

func TestResolveMissingUpstreamValue(t *testing.T) {
	api := &fakeQuotaAPI{values: map[string]float64{}}
	r := NewResolver(catalog.New(""), api, "us-east-1")

	quotas, err := r.Resolve(context.Background(), "amazon.nova-lite-v1:0", "")
	require.NoError(t, err)
	require.Contains(t, quotas, DimTPM)
	assert.False(t, quotas[DimTPM].HasValue)
	assert.Equal(t, "L-D41E4DDA", quotas[DimTPM].Code, "code survives without a live value")
}

func TestResolveUnknownModel(t *testing.T) {
	api := &fakeQuotaAPI{}
	r := NewResolver(catalog.New(""), api, "us-east-1")

	quotas, err := r.Resolve(context.Background(), "nonexistent.model-v1:0", "")
	require.NoError(t, err)
	assert.Empty(t, quotas)
	assert.Empty(t, api.calls, "nothing fetched for unknown models")
}

func TestDimension(t *testing.T) {
	assert.Equal(t, DimTPM, Dimension("Cross-region model inference tokens per minute for X"))
	assert.Equal(t, DimRPM, Dimension("On-demand model inference requests per minute for X"))
	assert.Equal(t, DimTPD, Dimension("Model invocation max tokens per day for X"))
	assert.Equal(t, "", Dimension("Concurrent model customization jobs"))
}

func TestMatchesKeyword(t *testing.T) {
	assert.True(t, MatchesKeyword("On-demand model inference tokens per minute", catalog.KeywordOnDemand))
	assert.True(t, MatchesKeyword("Cross-region model inference tokens per minute", catalog.KeywordCrossRegion))
	assert.False(t, MatchesKeyword("Global cross-region model inference tokens per minute", catalog.KeywordCrossRegion))
	assert.True(t, MatchesKeyword("Global cross-region model inference tokens per minute", catalog.KeywordGlobal))
}

type fakeChatAPI struct {
	replies map[string]mappingReply
	prompts []string
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	f.prompts = append(f.prompts, prompt)
	for modelID, reply := range f.replies {
		if !containsLine(prompt, "Model id: "+modelID) {
			continue
		}
		b, _ := json.Marshal(reply)
		return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: string(b)}},
		}}, nil
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("no canned reply")
}

func containsLine(s, line string) bool {
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] != '\n' {
			i++
		}
		if s[:i] == line {
			return true
		}
		if i == len(s) {
			break
		}
		s = s[i+1:]
	}
	return false
}

type fakeListAPI struct{ quotas []servicequotas.Quota }

func (f *fakeListAPI) ListQuotas(context.Context, string) ([]servicequotas.Quota, error) {
	return f.quotas, nil
}

func TestMapperRefresh(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New(dir)

	tpm := "L-AAA11111"
	bogus := "L-MADE0000"
	chat := &fakeChatAPI{replies: map[string]mappingReply{
		"mistral.mistral-large-v1:0": {
			Name:     "Mistral Large",
			Provider: "Mistral AI",
			TPM:      &tpm,
			RPM:      nil,
			TPD:      &bogus,
		},
	}}
	list := &fakeListAPI{quotas: []servicequotas.Quota{
		{QuotaCode: "L-AAA11111", QuotaName: "Cross-region model inference tokens per minute for Mistral Large"},
		{QuotaCode: "L-BBB22222", QuotaName: "Cross-region model inference requests per minute for Mistral Large"},
		{QuotaCode: "L-CCC33333", QuotaName: "Concurrent model customization jobs"},
	}}

	m := NewMapper("", "", "gpt-4o-mini", list, cat, "eu-central-1")
	m.SetChatAPI(chat)

	err := m.Refresh(context.Background(), map[string][]string{
		"mistral.mistral-large-v1:0": {"eu"},
	})
	require.NoError(t, err)

	models, err := cat.Models("eu-central-1")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "Mistral Large", models[0].Name)

	ep, ok := models[0].Endpoints["eu"]
	require.True(t, ok)
	require.NotNil(t, ep.Quotas[DimTPM])
	assert.Equal(t, "L-AAA11111", ep.Quotas[DimTPM].Code)
	assert.Nil(t, ep.Quotas[DimRPM])
	assert.Nil(t, ep.Quotas[DimTPD], "codes not in the candidate list are dropped")

	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "L-AAA11111")
	assert.NotContains(t, chat.prompts[0], "L-CCC33333", "non usage-dimension quotas are filtered out")
}
