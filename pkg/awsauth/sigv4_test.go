package awsauth

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() Credentials {
	return Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}
}

func TestSignSetsAuthorizationHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "https://monitoring.us-east-1.amazonaws.com/", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	Sign(req, testCreds(), "monitoring", "us-east-1", []byte("Action=GetMetricData"), at)

	auth := req.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20260820/us-east-1/monitoring/aws4_request"), auth)
	assert.Contains(t, auth, "SignedHeaders=content-type;host;x-amz-date")
	assert.Contains(t, auth, "Signature=")
	assert.Equal(t, "20260820T120000Z", req.Header.Get("X-Amz-Date"))
	assert.Empty(t, req.Header.Get("X-Amz-Security-Token"))
}

func TestSignIsDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	sigs := make([]string, 2)
	for i := range sigs {
		req, err := http.NewRequest(http.MethodPost, "https://servicequotas.eu-west-1.amazonaws.com/", nil)
		require.NoError(t, err)
		req.Header.Set("X-Amz-Target", "ServiceQuotasV20190624.GetServiceQuota")
		Sign(req, testCreds(), "servicequotas", "eu-west-1", []byte(`{}`), at)
		sigs[i] = req.Header.Get("Authorization")
	}
	assert.Equal(t, sigs[0], sigs[1])
}

func TestSignIncludesSessionToken(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://bedrock.us-east-1.amazonaws.com/inference-profiles?maxResults=1000", nil)
	require.NoError(t, err)

	creds := testCreds()
	creds.SessionToken = "token"
	Sign(req, creds, "bedrock", "us-east-1", nil, time.Now())

	assert.Equal(t, "token", req.Header.Get("X-Amz-Security-Token"))
	assert.Contains(t, req.Header.Get("Authorization"), "x-amz-security-token")
}
