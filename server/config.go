package server

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/rundeckaction/services/httpclient"
	"github.com/influxdata/rundeckaction/services/httpd"
	"github.com/influxdata/rundeckaction/services/load"
	"github.com/influxdata/rundeckaction/services/logging"
	"github.com/influxdata/rundeckaction/services/pagerduty"
	"github.com/influxdata/rundeckaction/services/rundeck"
	"github.com/influxdata/rundeckaction/services/slack"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of environment variables overriding the configuration.
const EnvPrefix = "RUNDECK_ACTION"

// Config represents the configuration format for the rundeckactiond binary.
type Config struct {
	HTTP       httpd.Config      `toml:"http"`
	HTTPClient httpclient.Config `toml:"http-client"`
	Logging    logging.Config    `toml:"logging"`
	Load       load.Config       `toml:"load"`

	Rundeck   rundeck.Config   `toml:"rundeck" override:"rundeck"`
	PagerDuty pagerduty.Config `toml:"pagerduty" override:"pagerduty"`
	Slack     slack.Config     `toml:"slack" override:"slack"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	c := &Config{}

	c.HTTP = httpd.NewConfig()
	c.HTTPClient = httpclient.NewConfig()
	c.Logging = logging.NewConfig()
	c.Load = load.NewConfig()

	c.Rundeck = rundeck.NewConfig()
	c.PagerDuty = pagerduty.NewConfig()
	c.Slack = slack.NewConfig()

	return c
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return errors.Wrap(err, "http")
	}
	if err := c.HTTPClient.Validate(); err != nil {
		return errors.Wrap(err, "http-client")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if err := c.Load.Validate(); err != nil {
		return errors.Wrap(err, "load")
	}
	if err := c.Rundeck.Validate(); err != nil {
		return errors.Wrap(err, "rundeck")
	}
	if err := c.PagerDuty.Validate(); err != nil {
		return errors.Wrap(err, "pagerduty")
	}
	if err := c.Slack.Validate(); err != nil {
		return errors.Wrap(err, "slack")
	}
	return nil
}

func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnvOverrides(EnvPrefix, "", reflect.ValueOf(c))
}

func (c *Config) applyEnvOverrides(prefix string, fieldDesc string, spec reflect.Value) error {
	// If we have a pointer, dereference it
	s := spec
	if spec.Kind() == reflect.Ptr {
		s = spec.Elem()
	}

	var value string

	if s.Kind() != reflect.Struct && s.Kind() != reflect.Map {
		value = os.Getenv(prefix)
		// Skip any fields we don't have a value to set
		if value == "" {
			return nil
		}

		if fieldDesc != "" {
			fieldDesc = " to " + fieldDesc
		}
	}

	switch s.Kind() {
	case reflect.String:
		s.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:

		var intValue int64

		// Handle toml.Duration
		if s.Type().Name() == "Duration" {
			dur, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
			}
			intValue = dur.Nanoseconds()
		} else {
			var err error
			intValue, err = strconv.ParseInt(value, 0, s.Type().Bits())
			if err != nil {
				return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
			}
		}

		s.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)

		}
		s.SetBool(boolValue)
	case reflect.Map:
		if s.IsNil() && s.CanSet() {
			s.Set(reflect.MakeMap(s.Type()))
		}
		if err := applyEnvOverridesToMap(prefix, s); err != nil {
			return err
		}
	case reflect.Struct:
		if err := c.applyEnvOverridesToStruct(prefix, s); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverridesToMap sets every variable named PREFIX_<key> as m[<key>].
func applyEnvOverridesToMap(prefix string, m reflect.Value) error {
	m = reflect.Indirect(m)
	if m.Type().Key().Kind() != reflect.String || m.Type().Elem().Kind() != reflect.String {
		return errors.New("map is not a map[string]string")
	}
	if m.IsNil() {
		return errors.New("cannot apply env to nil map")
	}
	for k, v := range environWithPrefix(prefix + "_") {
		m.SetMapIndex(reflect.ValueOf(k), reflect.ValueOf(v))
	}
	return nil
}

// environWithPrefix returns the environment variables whose name starts
// with prefix, keyed by the rest of the name.
func environWithPrefix(prefix string) map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if name := strings.TrimPrefix(key, prefix); name != key && name != "" {
			vars[name] = value
		}
	}
	return vars
}

func (c *Config) applyEnvOverridesToStruct(prefix string, s reflect.Value) error {
	typeOfSpec := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		// Get the toml tag to determine what env var name to use
		configName := typeOfSpec.Field(i).Tag.Get("toml")
		// Replace hyphens with underscores to avoid issues with shells
		configName = strings.Replace(configName, "-", "_", -1)
		fieldName := typeOfSpec.Field(i).Name

		// Skip any fields that we cannot set
		if f.CanSet() {
			// Use the upper-case prefix and toml name for the env var
			key := strings.ToUpper(configName)
			if prefix != "" {
				key = strings.ToUpper(fmt.Sprintf("%s_%s", prefix, configName))
			}
			if err := c.applyEnvOverrides(key, fieldName, f); err != nil {
				return err
			}
		}
	}
	return nil
}
