package rundeck

import (
	"github.com/pkg/errors"
)

const (
	// DefaultAPIVersion is the Rundeck API version used when a job does not name one.
	DefaultAPIVersion = 24
	// AuthTokenHeader carries the Rundeck API token.
	AuthTokenHeader = "X-Rundeck-Auth-Token"
)

type Config struct {
	// The API version used for jobs that do not specify one.
	APIVersion int `toml:"api-version" override:"api-version"`
	// Headers sent with every job request. Headers of the action take precedence.
	Headers map[string]string `toml:"headers" override:"headers"`
}

func NewConfig() Config {
	return Config{
		APIVersion: DefaultAPIVersion,
	}
}

func (c Config) Validate() error {
	if c.APIVersion <= 0 {
		return errors.Errorf("invalid api-version %d, must be positive", c.APIVersion)
	}
	return nil
}
