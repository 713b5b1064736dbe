package cloudwatch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oddgeir/bedrockusage/pkg/awsauth"
	"github.com/oddgeir/bedrockusage/pkg/timeseries"
)

const apiVersion = "2010-08-01"

// Client calls the CloudWatch GetMetricData API using the Query
// protocol. Transport timeouts are the http.Client's responsibility.
type Client struct {
	httpClient *http.Client
	creds      awsauth.Credentials
	region     string
	endpoint   string
}

func NewClient(creds awsauth.Credentials, region string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		creds:      creds,
		region:     region,
		endpoint:   fmt.Sprintf("https://monitoring.%s.amazonaws.com/", region),
	}
}

// SetEndpoint overrides the API endpoint, used in tests.
func (c *Client) SetEndpoint(endpoint string) { c.endpoint = endpoint }

// GetMetricData runs the queries over [start, end) and returns the
// sparse samples per query id. Pagination via NextToken is followed
// until exhausted; sample ordering is not guaranteed by the API and is
// left to the caller to normalize.
func (c *Client) GetMetricData(ctx context.Context, queries []Query, start, end time.Time) (map[string][]timeseries.Sample, error) {
	results := make(map[string][]timeseries.Sample, len(queries))
	nextToken := ""
	for {
		page, token, err := c.getMetricDataPage(ctx, queries, start, end, nextToken)
		if err != nil {
			return nil, err
		}
		for id, samples := range page {
			results[id] = append(results[id], samples...)
		}
		if token == "" {
			return results, nil
		}
		nextToken = token
	}
}

func (c *Client) getMetricDataPage(ctx context.Context, queries []Query, start, end time.Time, nextToken string) (map[string][]timeseries.Sample, string, error) {
	form := url.Values{}
	form.Set("Action", "GetMetricData")
	form.Set("Version", apiVersion)
	form.Set("StartTime", start.UTC().Format(time.RFC3339))
	form.Set("EndTime", end.UTC().Format(time.RFC3339))
	if nextToken != "" {
		form.Set("NextToken", nextToken)
	}
	for i, q := range queries {
		prefix := fmt.Sprintf("MetricDataQueries.member.%d", i+1)
		form.Set(prefix+".Id", q.ID)
		form.Set(prefix+".MetricStat.Metric.Namespace", namespace)
		form.Set(prefix+".MetricStat.Metric.MetricName", q.MetricName)
		form.Set(prefix+".MetricStat.Metric.Dimensions.member.1.Name", "ModelId")
		form.Set(prefix+".MetricStat.Metric.Dimensions.member.1.Value", q.ModelID)
		form.Set(prefix+".MetricStat.Period", strconv.Itoa(int(q.Period/time.Second)))
		form.Set(prefix+".MetricStat.Stat", string(q.Stat))
	}

	body := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	awsauth.Sign(req, c.creds, "monitoring", c.region, []byte(body), time.Now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get metric data: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("get metric data: status %d: %s", resp.StatusCode, truncate(raw, 300))
	}

	var parsed getMetricDataResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}

	page := make(map[string][]timeseries.Sample)
	for _, r := range parsed.Result.Results {
		if len(r.Timestamps) != len(r.Values) {
			return nil, "", fmt.Errorf("query %s: %d timestamps vs %d values", r.ID, len(r.Timestamps), len(r.Values))
		}
		for i, raw := range r.Timestamps {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, "", fmt.Errorf("query %s: bad timestamp %q: %w", r.ID, raw, err)
			}
			page[r.ID] = append(page[r.ID], timeseries.Observed(ts.UTC(), r.Values[i]))
		}
	}
	return page, parsed.Result.NextToken, nil
}

type getMetricDataResponse struct {
	XMLName xml.Name            `xml:"GetMetricDataResponse"`
	Result  getMetricDataResult `xml:"GetMetricDataResult"`
}

type getMetricDataResult struct {
	Results   []metricDataResult `xml:"MetricDataResults>member"`
	NextToken string             `xml:"NextToken"`
}

type metricDataResult struct {
	ID         string    `xml:"Id"`
	Timestamps []string  `xml:"Timestamps>member"`
	Values     []float64 `xml:"Values>member"`
	StatusCode string    `xml:"StatusCode"`
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
