package pagerduty

import (
	"net/url"

	"github.com/pkg/errors"
)

// DefaultPagerDutyAPIURL is the base URL of the PagerDuty REST API.
const DefaultPagerDutyAPIURL = "https://api.pagerduty.com"

type Config struct {
	// The PagerDuty REST API URL, should not need to be changed.
	URL string `toml:"url" override:"url"`
	// Email address of a valid PagerDuty user, sent as the From header when adding notes.
	From string `toml:"from" override:"from"`
}

func NewConfig() Config {
	return Config{
		URL: DefaultPagerDutyAPIURL,
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("url cannot be empty")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid URL %q", c.URL)
	}
	if !u.IsAbs() {
		return errors.Errorf("invalid URL %q, must be absolute", c.URL)
	}
	return nil
}
