package httpd

import (
	"net"
	"strconv"
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

const (
	DefaultShutdownTimeout = toml.Duration(time.Second * 10)
)

type Config struct {
	BindAddress     string        `toml:"bind-address"`
	LogEnabled      bool          `toml:"log-enabled"`
	ShutdownTimeout toml.Duration `toml:"shutdown-timeout"`
}

func NewConfig() Config {
	return Config{
		BindAddress:     ":9093",
		LogEnabled:      true,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func (c Config) Validate() error {
	if _, err := c.Port(); err != nil {
		return err
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown-timeout cannot be negative")
	}
	return nil
}

// Port returns the port from the bind address.
func (c Config) Port() (int, error) {
	_, portStr, err := net.SplitHostPort(c.BindAddress)
	if err != nil {
		return -1, errors.Wrapf(err, "invalid http bind address %s", c.BindAddress)
	}
	port, err := strconv.ParseInt(portStr, 10, 64)
	if err != nil {
		return -1, errors.Wrapf(err, "invalid http bind address port %s", portStr)
	}
	if port > 65535 || port < 0 {
		return -1, errors.Errorf("invalid http bind address port %d: out of range", port)
	}
	return int(port), nil
}
