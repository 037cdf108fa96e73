package run

import (
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/rundeckaction/server"
	"github.com/pkg/errors"
)

// ConfigPathEnv names the configuration file when -config is not given.
const ConfigPathEnv = "RUNDECK_ACTION_CONFIG_PATH"

// PrintConfigCommand prints the effective configuration: defaults, the
// configuration file and environment overrides merged and validated.
type PrintConfigCommand struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewPrintConfigCommand() *PrintConfigCommand {
	return &PrintConfigCommand{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (cmd *PrintConfigCommand) Run(args ...string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(cmd.Stderr)
	configPath := fs.String("config", "", "")
	section := fs.String("section", "", "")
	fs.Usage = func() { fmt.Fprintln(cmd.Stderr, printConfigUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := readConfig(FindConfigPath(*configPath), func(path string) {
		fmt.Fprintln(cmd.Stderr, "Merging with configuration at:", path)
	})
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("%s. To generate a valid configuration file run `rundeckactiond config > rundeck-action.conf`.", err)
	}

	var out interface{} = config
	if *section != "" {
		v, err := configSection(config, *section)
		if err != nil {
			return err
		}
		out = map[string]interface{}{*section: v}
	}
	if err := toml.NewEncoder(cmd.Stdout).Encode(out); err != nil {
		return err
	}
	fmt.Fprint(cmd.Stdout, "\n")
	return nil
}

// configSection returns the section of c with the given toml name.
func configSection(c *server.Config, name string) (interface{}, error) {
	v := reflect.ValueOf(c).Elem()
	var names []string
	for i := 0; i < v.NumField(); i++ {
		tag := strings.Split(v.Type().Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i).Interface(), nil
		}
		if tag != "" {
			names = append(names, tag)
		}
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown section %q, must be one of %s", name, strings.Join(names, ", "))
}

// readConfig merges the configuration file at path and the environment
// overrides over the defaults. An empty path uses the defaults only, found
// is called with the path of a file that is read.
func readConfig(path string, found func(path string)) (*server.Config, error) {
	config := server.NewConfig()
	if path != "" {
		found(path)
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	if err := config.ApplyEnvOverrides(); err != nil {
		return nil, errors.Wrap(err, "apply env config")
	}
	return config, nil
}

// FindConfigPath returns the config path specified or searches for a valid config path.
// The given configPath wins, then the RUNDECK_ACTION_CONFIG_PATH environment
// variable, then the first non empty rundeck-action.conf found in
// ~/.rundeck-action/ or /etc/rundeck-action/.
// os.DevNull selects the built-in defaults.
func FindConfigPath(configPath string) string {
	switch {
	case configPath == os.DevNull:
		return ""
	case configPath != "":
		return configPath
	}
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	for _, path := range []string{
		os.ExpandEnv("${HOME}/.rundeck-action/rundeck-action.conf"),
		"/etc/rundeck-action/rundeck-action.conf",
	} {
		if fi, err := os.Stat(path); err == nil && fi.Size() != 0 {
			return path
		}
	}
	return ""
}

var printConfigUsage = `usage: config [flags]

config prints the configuration the server would run with: the built-in
defaults merged with the configuration file and RUNDECK_ACTION_* environment
variables.

	-config <path>
		Configuration file, searched like "run" does when omitted.

	-section <name>
		Print a single section, for example rundeck, pagerduty or load.
`
