package quotamap

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/oddgeir/bedrockusage/pkg/catalog"
	"github.com/oddgeir/bedrockusage/pkg/servicequotas"
)

// ChatAPI is the completion surface the mapper needs, satisfied by
// *openai.Client.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ListAPI is the Service Quotas listing surface.
type ListAPI interface {
	ListQuotas(ctx context.Context, serviceCode string) ([]servicequotas.Quota, error)
}

// Mapper rebuilds the catalog's model-to-quota-code mapping by listing
// every Bedrock quota and asking an LLM to match records to models.
// Quota names follow no machine-parsable convention ("Anthropic Claude
// Sonnet 4 V1" vs model id "anthropic.claude-sonnet-4-20250514-v1:0"),
// so the matching is fuzzy by nature.
type Mapper struct {
	llm    ChatAPI
	quotas ListAPI
	cat    *catalog.Catalog
	region string
	model  string
}

func NewMapper(apiKey, baseURL, model string, quotas ListAPI, cat *catalog.Catalog, region string) *Mapper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Mapper{
		llm:    openai.NewClientWithConfig(cfg),
		quotas: quotas,
		cat:    cat,
		region: region,
		model:  model,
	}
}

// SetChatAPI swaps the completion backend, used in tests.
func (m *Mapper) SetChatAPI(api ChatAPI) { m.llm = api }

type mappingReply struct {
	Name     string  `json:"name"`
	Provider string  `json:"provider"`
	TPM      *string `json:"tpm"`
	RPM      *string `json:"rpm"`
	TPD      *string `json:"tpd"`
}

// Refresh maps each model's endpoints to quota codes and writes the
// updated FM list for the region. Targets map a model id to the endpoint
// prefixes it is used with ("" meaning on-demand). Failures on a single
// endpoint are logged and skipped so one bad reply cannot poison the
// whole refresh.
func (m *Mapper) Refresh(ctx context.Context, targets map[string][]string) error {
	all, err := m.quotas.ListQuotas(ctx, servicequotas.ServiceCode)
	if err != nil {
		return fmt.Errorf("list bedrock quotas: %w", err)
	}

	existing, _ := m.cat.Models(m.region)
	byID := make(map[string]*catalog.Model, len(existing))
	var order []string
	for i := range existing {
		byID[existing[i].ModelID] = &existing[i]
		order = append(order, existing[i].ModelID)
	}

	modelIDs := make([]string, 0, len(targets))
	for id := range targets {
		modelIDs = append(modelIDs, id)
	}
	sort.Strings(modelIDs)

	for _, modelID := range modelIDs {
		for _, prefix := range targets[modelID] {
			keyword, err := m.cat.QuotaKeyword(prefix)
			if err != nil {
				log.Warn("skipping endpoint with unknown prefix", "model", modelID, "prefix", prefix)
				continue
			}
			candidates := filterQuotas(all, keyword)
			if len(candidates) == 0 {
				continue
			}
			reply, err := m.match(ctx, modelID, keyword, candidates)
			if err != nil {
				log.Warn("quota mapping failed", "model", modelID, "prefix", prefix, "err", err)
				continue
			}

			entry := byID[modelID]
			if entry == nil {
				entry = &catalog.Model{ModelID: modelID, Endpoints: map[string]catalog.Endpoint{}}
				byID[modelID] = entry
				order = append(order, modelID)
			}
			if entry.Endpoints == nil {
				entry.Endpoints = map[string]catalog.Endpoint{}
			}
			if reply.Name != "" {
				entry.Name = reply.Name
			}
			if reply.Provider != "" {
				entry.Provider = reply.Provider
			}

			endpointKey := prefix
			if endpointKey == "" {
				endpointKey = "base"
			}
			entry.Endpoints[endpointKey] = catalog.Endpoint{Quotas: map[string]*catalog.QuotaCode{
				DimTPM: quotaCodeFor(reply.TPM, candidates),
				DimRPM: quotaCodeFor(reply.RPM, candidates),
				DimTPD: quotaCodeFor(reply.TPD, candidates),
			}}
		}
	}

	models := make([]catalog.Model, 0, len(order))
	for _, id := range order {
		models = append(models, *byID[id])
	}
	return m.cat.SaveModels(m.region, models)
}

func (m *Mapper) match(ctx context.Context, modelID, keyword string, candidates []servicequotas.Quota) (mappingReply, error) {
	var sb strings.Builder
	for _, q := range candidates {
		fmt.Fprintf(&sb, "%s: %s\n", q.QuotaCode, q.QuotaName)
	}

	resp, err := m.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You match AWS Bedrock model ids to Service Quotas records. " +
					"Reply with a single JSON object {\"name\": string, \"provider\": string, " +
					"\"tpm\": string|null, \"rpm\": string|null, \"tpd\": string|null} where tpm/rpm/tpd " +
					"are quota codes taken verbatim from the candidate list, or null when no candidate " +
					"belongs to the model. Never guess a code that is not listed.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Model id: %s\nEndpoint class: %s\n\nCandidate quotas:\n%s",
					modelID, keyword, sb.String()),
			},
		},
	})
	if err != nil {
		return mappingReply{}, err
	}
	if len(resp.Choices) == 0 {
		return mappingReply{}, fmt.Errorf("empty completion")
	}

	var reply mappingReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		return mappingReply{}, fmt.Errorf("decode mapping reply: %w", err)
	}
	return reply, nil
}

func filterQuotas(all []servicequotas.Quota, keyword string) []servicequotas.Quota {
	var out []servicequotas.Quota
	for _, q := range all {
		if Dimension(q.QuotaName) != "" && MatchesKeyword(q.QuotaName, keyword) {
			out = append(out, q)
		}
	}
	return out
}

// quotaCodeFor resolves an LLM-chosen code against the candidate list,
// dropping anything the model made up.
func quotaCodeFor(code *string, candidates []servicequotas.Quota) *catalog.QuotaCode {
	if code == nil || *code == "" {
		return nil
	}
	for _, q := range candidates {
		if q.QuotaCode == *code {
			return &catalog.QuotaCode{Code: q.QuotaCode, Name: q.QuotaName}
		}
	}
	return nil
}
