package cloudwatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddgeir/bedrockusage/pkg/awsauth"
)

const sampleResponse = `<GetMetricDataResponse xmlns="http://monitoring.amazonaws.com/doc/2010-08-01/">
  <GetMetricDataResult>
    <MetricDataResults>
      <member>
        <Id>invocations</Id>
        <Label>Invocations</Label>
        <Timestamps>
          <member>2026-08-20T10:01:00Z</member>
          <member>2026-08-20T10:00:00Z</member>
        </Timestamps>
        <Values>
          <member>3.0</member>
          <member>7.0</member>
        </Values>
        <StatusCode>Complete</StatusCode>
      </member>
      <member>
        <Id>input_tokens</Id>
        <Timestamps>
          <member>2026-08-20T10:00:00Z</member>
        </Timestamps>
        <Values>
          <member>1200.0</member>
        </Values>
        <StatusCode>Complete</StatusCode>
      </member>
    </MetricDataResults>
  </GetMetricDataResult>
</GetMetricDataResponse>`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(awsauth.Credentials{AccessKeyID: "k", SecretAccessKey: "s"}, "us-east-1")
	c.SetEndpoint(srv.URL + "/")
	return c
}

func TestGetMetricDataParsesResults(t *testing.T) {
	var form url.Values
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Write([]byte(sampleResponse))
	})

	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	queries := BuildQueries(TokenCounters, "anthropic.claude-sonnet-4", time.Minute)
	got, err := c.GetMetricData(context.Background(), queries, start, start.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, got["invocations"], 2)
	assert.Equal(t, 3.0, got["invocations"][0].Value)
	assert.True(t, got["invocations"][0].Valid)
	require.Len(t, got["input_tokens"], 1)
	assert.Equal(t, 1200.0, got["input_tokens"][0].Value)

	assert.Equal(t, "GetMetricData", form.Get("Action"))
	assert.Equal(t, "AWS/Bedrock", form.Get("MetricDataQueries.member.1.MetricStat.Metric.Namespace"))
	assert.Equal(t, "Invocations", form.Get("MetricDataQueries.member.1.MetricStat.Metric.MetricName"))
	assert.Equal(t, "ModelId", form.Get("MetricDataQueries.member.1.MetricStat.Metric.Dimensions.member.1.Name"))
	assert.Equal(t, "anthropic.claude-sonnet-4", form.Get("MetricDataQueries.member.1.MetricStat.Metric.Dimensions.member.1.Value"))
	assert.Equal(t, "60", form.Get("MetricDataQueries.member.1.MetricStat.Period"))
	assert.Equal(t, "Sum", form.Get("MetricDataQueries.member.1.MetricStat.Stat"))
	assert.Equal(t, "2026-08-20T10:00:00Z", form.Get("StartTime"))
}

func TestGetMetricDataFollowsPagination(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		calls++
		if calls == 1 {
			assert.Empty(t, form.Get("NextToken"))
			w.Write([]byte(`<GetMetricDataResponse><GetMetricDataResult>
				<MetricDataResults><member><Id>throttles</Id>
				<Timestamps><member>2026-08-20T10:00:00Z</member></Timestamps>
				<Values><member>1.0</member></Values>
				</member></MetricDataResults>
				<NextToken>page2</NextToken>
			</GetMetricDataResult></GetMetricDataResponse>`))
			return
		}
		assert.Equal(t, "page2", form.Get("NextToken"))
		w.Write([]byte(`<GetMetricDataResponse><GetMetricDataResult>
			<MetricDataResults><member><Id>throttles</Id>
			<Timestamps><member>2026-08-20T10:05:00Z</member></Timestamps>
			<Values><member>2.0</member></Values>
			</member></MetricDataResults>
		</GetMetricDataResult></GetMetricDataResponse>`))
	})

	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	got, err := c.GetMetricData(context.Background(), BuildQueries(AuxiliaryCounters, "m", 5*time.Minute), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, got["throttles"], 2)
}

func TestGetMetricDataErrorStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Throttling", http.StatusBadRequest)
	})
	_, err := c.GetMetricData(context.Background(), BuildQueries(TokenCounters, "m", time.Minute), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestBuildQueriesLatencyUsesAverage(t *testing.T) {
	queries := BuildQueries(AuxiliaryCounters, "m", 5*time.Minute)
	require.Len(t, queries, 4)
	for _, q := range queries {
		if q.ID == "latency" {
			assert.Equal(t, StatAverage, q.Stat)
		} else {
			assert.Equal(t, StatSum, q.Stat)
		}
	}
}
