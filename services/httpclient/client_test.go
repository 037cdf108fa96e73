package httpclient_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/influxdata/rundeckaction/services/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SetsUserAgent(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	c := httpclient.NewConfig()
	c.Timeout = toml.Duration(time.Second)
	client, err := httpclient.New(c)
	require.NoError(t, err)
	assert.Equal(t, time.Second, client.Timeout)

	resp, err := client.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, httpclient.DefaultUserAgent, got)
}

func TestConfig_Validate(t *testing.T) {
	c := httpclient.NewConfig()
	require.NoError(t, c.Validate())

	c.SSLCert = "/etc/ssl/cert.pem"
	assert.Error(t, c.Validate())

	c = httpclient.NewConfig()
	c.Timeout = -1
	assert.Error(t, c.Validate())
}
