package servicequotas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oddgeir/bedrockusage/pkg/awsauth"
)

const (
	targetPrefix = "ServiceQuotasV20190624"
	// ServiceCode is the Service Quotas service code for Bedrock.
	ServiceCode = "bedrock"
)

// ErrNotFound marks a quota code with no record, a normal outcome for
// models without published quotas.
var ErrNotFound = errors.New("quota not found")

// Quota is one Service Quotas record.
type Quota struct {
	QuotaCode string  `json:"QuotaCode"`
	QuotaName string  `json:"QuotaName"`
	Value     float64 `json:"Value"`
}

// Client calls the Service Quotas JSON API.
type Client struct {
	httpClient *http.Client
	creds      awsauth.Credentials
	region     string
	endpoint   string
}

func NewClient(creds awsauth.Credentials, region string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creds:      creds,
		region:     region,
		endpoint:   fmt.Sprintf("https://servicequotas.%s.amazonaws.com/", region),
	}
}

// SetEndpoint overrides the API endpoint, used in tests.
func (c *Client) SetEndpoint(endpoint string) { c.endpoint = endpoint }

// GetQuota resolves one quota code to its record. Missing codes return
// ErrNotFound.
func (c *Client) GetQuota(ctx context.Context, serviceCode, quotaCode string) (Quota, error) {
	var resp struct {
		Quota Quota `json:"Quota"`
	}
	err := c.call(ctx, "GetServiceQuota", map[string]string{
		"ServiceCode": serviceCode,
		"QuotaCode":   quotaCode,
	}, &resp)
	if err != nil {
		return Quota{}, err
	}
	return resp.Quota, nil
}

// ListQuotas pages through every quota of a service.
func (c *Client) ListQuotas(ctx context.Context, serviceCode string) ([]Quota, error) {
	var quotas []Quota
	nextToken := ""
	for {
		req := map[string]string{"ServiceCode": serviceCode}
		if nextToken != "" {
			req["NextToken"] = nextToken
		}
		var resp struct {
			Quotas    []Quota `json:"Quotas"`
			NextToken string  `json:"NextToken"`
		}
		if err := c.call(ctx, "ListServiceQuotas", req, &resp); err != nil {
			return nil, err
		}
		quotas = append(quotas, resp.Quotas...)
		if resp.NextToken == "" {
			return quotas, nil
		}
		nextToken = resp.NextToken
	}
}

func (c *Client) call(ctx context.Context, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", targetPrefix+"."+action)
	awsauth.Sign(req, c.creds, "servicequotas", c.region, body, time.Now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Type    string `json:"__type"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if strings.Contains(apiErr.Type, "NoSuchResourceException") {
			return ErrNotFound
		}
		return fmt.Errorf("%s: status %d: %s", action, resp.StatusCode, apiErr.Type)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", action, err)
	}
	return nil
}
