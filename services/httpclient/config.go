package httpclient

import (
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

const (
	DefaultTimeout   = toml.Duration(30 * time.Second)
	DefaultUserAgent = "rundeck-action"
)

// Config is the configuration of the HTTP client shared by the outbound
// Rundeck, PagerDuty and Slack services.
type Config struct {
	// Timeout of a single request, including reading the response body.
	// Zero disables the timeout.
	Timeout            toml.Duration `toml:"timeout"`
	UserAgent          string        `toml:"user-agent"`
	SSLCA              string        `toml:"ssl-ca"`
	SSLCert            string        `toml:"ssl-cert"`
	SSLKey             string        `toml:"ssl-key"`
	InsecureSkipVerify bool          `toml:"insecure-skip-verify"`
}

func NewConfig() Config {
	return Config{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if (c.SSLCert == "") != (c.SSLKey == "") {
		return errors.New("ssl-cert and ssl-key must be set together")
	}
	return nil
}
