package server_test

import (
	"os"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/rundeckaction/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure the configuration can be parsed.
func TestConfig_Parse(t *testing.T) {
	c := server.NewConfig()
	_, err := toml.Decode(`
[http]
bind-address = ":8080"

[http-client]
timeout = "5s"

[rundeck]
api-version = 41
[rundeck.headers]
X-Team = "ops"

[pagerduty]
from = "oncall@example.com"

[load]
enabled = true
dir = "/var/lib/rundeck-action/actions"
`, c)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, ":8080", c.HTTP.BindAddress)
	assert.Equal(t, 5*time.Second, time.Duration(c.HTTPClient.Timeout))
	assert.Equal(t, 41, c.Rundeck.APIVersion)
	assert.Equal(t, map[string]string{"X-Team": "ops"}, c.Rundeck.Headers)
	assert.Equal(t, "https://api.pagerduty.com", c.PagerDuty.URL)
	assert.Equal(t, "oncall@example.com", c.PagerDuty.From)
	assert.True(t, c.Load.Enabled)
}

func TestConfig_Parse_EnvOverride(t *testing.T) {
	c := server.NewConfig()
	_, err := toml.Decode(`
[http]
bind-address = ":8080"
`, c)
	require.NoError(t, err)

	env := map[string]string{
		"RUNDECK_ACTION_HTTP_BIND_ADDRESS":                ":9999",
		"RUNDECK_ACTION_HTTP_CLIENT_TIMEOUT":              "1m",
		"RUNDECK_ACTION_HTTP_CLIENT_INSECURE_SKIP_VERIFY": "true",
		"RUNDECK_ACTION_RUNDECK_API_VERSION":              "30",
		"RUNDECK_ACTION_RUNDECK_HEADERS_X-Team":           "ops",
		"RUNDECK_ACTION_PAGERDUTY_URL":                    "https://pagerduty.example.com",
		"RUNDECK_ACTION_LOGGING_LEVEL":                    "DEBUG",
	}
	for k, v := range env {
		require.NoError(t, os.Setenv(k, v))
	}
	defer func() {
		for k := range env {
			os.Unsetenv(k)
		}
	}()

	require.NoError(t, c.ApplyEnvOverrides())
	require.NoError(t, c.Validate())

	assert.Equal(t, ":9999", c.HTTP.BindAddress)
	assert.Equal(t, time.Minute, time.Duration(c.HTTPClient.Timeout))
	assert.True(t, c.HTTPClient.InsecureSkipVerify)
	assert.Equal(t, 30, c.Rundeck.APIVersion)
	assert.Equal(t, map[string]string{"X-Team": "ops"}, c.Rundeck.Headers)
	assert.Equal(t, "https://pagerduty.example.com", c.PagerDuty.URL)
	assert.Equal(t, "DEBUG", c.Logging.Level)
}

func TestConfig_Parse_EnvOverride_Invalid(t *testing.T) {
	c := server.NewConfig()
	require.NoError(t, os.Setenv("RUNDECK_ACTION_RUNDECK_API_VERSION", "latest"))
	defer os.Unsetenv("RUNDECK_ACTION_RUNDECK_API_VERSION")

	err := c.ApplyEnvOverrides()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUNDECK_ACTION_RUNDECK_API_VERSION")
}

func TestConfig_Validate(t *testing.T) {
	c := server.NewConfig()
	require.NoError(t, c.Validate())

	c.Load.Enabled = true
	c.Load.Dir = "relative/actions"
	assert.EqualError(t, c.Validate(), "load: dir must be an absolute path")
}
