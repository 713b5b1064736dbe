package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oddgeir/bedrockusage/pkg/awsauth"
)

const listPageSize = 1000

// Profile is one application inference profile, resolved to the model it
// routes to and the routing prefix of its source endpoint. Prefix is empty
// for profiles backed directly by an on-demand foundation model.
type Profile struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	ARN     string            `json:"arn"`
	ModelID string            `json:"model_id"`
	Prefix  string            `json:"prefix"`
	Status  string            `json:"status"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// Client calls the Bedrock control-plane REST API.
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
		endpoint:   fmt.Sprintf("https://bedrock.%s.amazonaws.com", region),
	}
}

// SetEndpoint overrides the API endpoint, used in tests.
func (c *Client) SetEndpoint(endpoint string) { c.endpoint = strings.TrimRight(endpoint, "/") }

type modelRef struct {
	ModelARN string `json:"modelArn"`
}

type profileSummary struct {
	InferenceProfileID   string     `json:"inferenceProfileId"`
	InferenceProfileName string     `json:"inferenceProfileName"`
	InferenceProfileARN  string     `json:"inferenceProfileArn"`
	Models               []modelRef `json:"models"`
	Status               string     `json:"status"`
}

type listProfilesResponse struct {
	Summaries []profileSummary `json:"inferenceProfileSummaries"`
	NextToken string           `json:"nextToken"`
}

// ListProfiles pages through every application inference profile in the
// region. Profiles whose source model cannot be resolved are skipped with
// a warning rather than failing the listing.
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	nextToken := ""
	for {
		q := url.Values{}
		q.Set("maxResults", fmt.Sprint(listPageSize))
		q.Set("typeEquals", "APPLICATION")
		if nextToken != "" {
			q.Set("nextToken", nextToken)
		}

		var resp listProfilesResponse
		if err := c.do(ctx, http.MethodGet, "/inference-profiles?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("list inference profiles: %w", err)
		}

		for _, s := range resp.Summaries {
			modelID, prefix, err := resolveSource(s.Models, c.region)
			if err != nil {
				log.Warn("skipping inference profile", "profile", s.InferenceProfileID, "err", err)
				continue
			}
			profiles = append(profiles, Profile{
				ID:      s.InferenceProfileID,
				Name:    s.InferenceProfileName,
				ARN:     s.InferenceProfileARN,
				ModelID: modelID,
				Prefix:  prefix,
				Status:  s.Status,
			})
		}

		if resp.NextToken == "" {
			return profiles, nil
		}
		nextToken = resp.NextToken
	}
}

type tagPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Tags fetches the resource tags of one profile ARN.
func (c *Client) Tags(ctx context.Context, resourceARN string) (map[string]string, error) {
	body, err := json.Marshal(map[string]string{"resourceARN": resourceARN})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tags []tagPair `json:"tags"`
	}
	if err := c.do(ctx, http.MethodPost, "/listTagsForResource", body, &resp); err != nil {
		return nil, fmt.Errorf("list tags for %s: %w", resourceARN, err)
	}
	tags := make(map[string]string, len(resp.Tags))
	for _, t := range resp.Tags {
		tags[t.Key] = t.Value
	}
	return tags, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	awsauth.Sign(req, c.creds, "bedrock", c.region, body, time.Now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

// resolveSource maps a profile's model references to the foundation model
// id and the routing prefix. A reference to a system inference profile
// carries its prefix in the resource id; plain foundation-model references
// are on-demand in the client's region or, when they span regions, grouped
// by geography.
func resolveSource(models []modelRef, clientRegion string) (modelID, prefix string, err error) {
	if len(models) == 0 {
		return "", "", fmt.Errorf("profile has no model references")
	}

	kind, id, firstRegion, err := parseModelARN(models[0].ModelARN)
	if err != nil {
		return "", "", err
	}

	if kind == "inference-profile" {
		dot := strings.Index(id, ".")
		if dot <= 0 {
			return "", "", fmt.Errorf("malformed inference profile id %q", id)
		}
		return id[dot+1:], id[:dot], nil
	}

	if kind != "foundation-model" {
		return "", "", fmt.Errorf("unsupported model resource %q", kind)
	}

	regions := map[string]bool{firstRegion: true}
	for _, m := range models[1:] {
		_, _, region, err := parseModelARN(m.ModelARN)
		if err != nil {
			return "", "", err
		}
		regions[region] = true
	}
	if len(regions) == 1 && regions[clientRegion] {
		return id, "", nil
	}
	return id, geographyPrefix(regions), nil
}

func parseModelARN(arn string) (kind, id, region string, err error) {
	// arn:aws:bedrock:REGION:ACCOUNT:RESOURCE-TYPE/RESOURCE-ID
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[2] != "bedrock" {
		return "", "", "", fmt.Errorf("malformed model arn %q", arn)
	}
	kind, id, ok := strings.Cut(parts[5], "/")
	if !ok {
		return "", "", "", fmt.Errorf("malformed model arn %q", arn)
	}
	return kind, id, parts[3], nil
}

func geographyPrefix(regions map[string]bool) string {
	geos := map[string]bool{}
	for region := range regions {
		switch {
		case strings.HasPrefix(region, "us-"):
			geos["us"] = true
		case strings.HasPrefix(region, "eu-"):
			geos["eu"] = true
		case strings.HasPrefix(region, "ap-"):
			geos["apac"] = true
		default:
			geos["global"] = true
		}
	}
	if len(geos) == 1 {
		for geo := range geos {
			return geo
		}
	}
	return "global"
}
