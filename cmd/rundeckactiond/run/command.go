package run

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/server"
	"github.com/influxdata/rundeckaction/services/diagnostic"
	"github.com/influxdata/rundeckaction/services/logging"
)

type Diagnostic interface {
	Error(msg string, err error)
	Info(msg string, ctx ...keyvalue.T)
	StartingRun(version, commit string)
}

// Command represents the command executed by "rundeckactiond run".
type Command struct {
	Version string
	Branch  string
	Commit  string

	closing chan struct{}
	pidfile string
	Closed  chan struct{}

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Server        *server.Server
	Diag          Diagnostic
	BootstrapDiag Diagnostic
	logService    *logging.Service

	mu      sync.Mutex
	options Options
}

// NewCommand return a new instance of Command.
func NewCommand() *Command {
	return &Command{
		closing:       make(chan struct{}),
		Closed:        make(chan struct{}),
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		BootstrapDiag: diagnostic.BootstrapMainHandler(),
	}
}

// Run parses the config from args and runs the server.
func (cmd *Command) Run(args ...string) error {
	// Parse the command line flags.
	options, err := cmd.ParseFlags(args...)
	if err != nil {
		return err
	}
	cmd.options = options

	config, err := cmd.loadConfig()
	if err != nil {
		return err
	}

	// Initialize Logging Services
	cmd.logService = logging.NewService(config.Logging, cmd.Stdout, cmd.Stderr)
	if err := cmd.logService.Open(); err != nil {
		return fmt.Errorf("init logging: %s", err)
	}

	d := diagnostic.NewService(cmd.logService)
	diag := d.NewCmdHandler()
	cmd.Diag = diag

	// Mark start-up in log.
	diag.StartingRun(cmd.Version, cmd.Commit)
	diag.Info("go runtime",
		keyvalue.KV("version", runtime.Version()),
		keyvalue.KV("maxprocs", strconv.Itoa(runtime.GOMAXPROCS(0))),
	)

	// Write the PID file.
	if err := cmd.writePIDFile(options.PIDFile); err != nil {
		return fmt.Errorf("write pid file: %s", err)
	}
	cmd.pidfile = options.PIDFile

	// Create server from config and start it.
	buildInfo := server.BuildInfo{Version: cmd.Version, Commit: cmd.Commit, Branch: cmd.Branch}
	s, err := server.New(config, buildInfo, cmd.logService)
	if err != nil {
		return fmt.Errorf("create server: %s", err)
	}
	if err := s.Open(); err != nil {
		return fmt.Errorf("open server: %s", err)
	}
	cmd.Server = s

	// Begin monitoring the server's error channel.
	go cmd.monitorServerErrors()

	return nil
}

// loadConfig reads the configuration file and applies the environment and
// the command line overrides. Validation is left to server.New and Server.Update.
func (cmd *Command) loadConfig() (*server.Config, error) {
	path := FindConfigPath(cmd.options.ConfigPath)
	if path == "" {
		cmd.BootstrapDiag.Info("no configuration provided, using default settings")
	}
	config, err := readConfig(path, func(path string) {
		cmd.BootstrapDiag.Info("loading configuration", keyvalue.KV("path", path))
	})
	if err != nil {
		return nil, err
	}

	if cmd.options.LogFile != "" {
		config.Logging.File = cmd.options.LogFile
	}
	if cmd.options.LogLevel != "" {
		config.Logging.Level = cmd.options.LogLevel
	}
	return config, nil
}

// Reload reads the configuration file again, applies it to the running
// server and reloads the action definitions.
func (cmd *Command) Reload() {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if cmd.Server == nil {
		return
	}
	config, err := cmd.loadConfig()
	if err != nil {
		cmd.Diag.Error("failed to reload configuration", err)
		return
	}
	if err := cmd.Server.Update(config); err != nil {
		cmd.Diag.Error("failed to apply configuration", err)
		return
	}
	cmd.Server.Reload()
}

// Close shuts down the server.
func (cmd *Command) Close() error {
	defer close(cmd.Closed)
	defer cmd.removePIDFile()
	close(cmd.closing)
	if cmd.Server != nil {
		if err := cmd.Server.Close(); err != nil {
			return err
		}
	}
	if cmd.logService != nil {
		return cmd.logService.Close()
	}
	return nil
}

func (cmd *Command) monitorServerErrors() {
	for {
		select {
		case err := <-cmd.Server.Err():
			if err != nil {
				cmd.Diag.Error("server error", err)
			}
		case <-cmd.closing:
			return
		}
	}
}

func (cmd *Command) removePIDFile() {
	if cmd.pidfile != "" {
		if err := os.Remove(cmd.pidfile); err != nil {
			cmd.Diag.Error("unable to remove pidfile", err)
		}
	}
}

// ParseFlags parses the command line flags from args and returns an options set.
func (cmd *Command) ParseFlags(args ...string) (Options, error) {
	var options Options
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&options.ConfigPath, "config", "", "")
	fs.StringVar(&options.PIDFile, "pidfile", "", "")
	fs.StringVar(&options.LogFile, "log-file", "", "")
	fs.StringVar(&options.LogLevel, "log-level", "", "")
	fs.SetOutput(cmd.Stderr)
	fs.Usage = func() { fmt.Fprintln(cmd.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return options, nil
}

// writePIDFile writes the process ID to path.
func (cmd *Command) writePIDFile(path string) error {
	// Ignore if path is not set.
	if path == "" {
		return nil
	}

	// Ensure the required directory structure exists.
	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return fmt.Errorf("mkdir: %s", err)
	}

	// Retrieve the PID and write it.
	pid := strconv.Itoa(os.Getpid())
	if err := ioutil.WriteFile(path, []byte(pid), 0666); err != nil {
		return fmt.Errorf("write file: %s", err)
	}

	return nil
}

var usage = `usage: run [flags]

run starts the HTTP API that executes rundeck actions, loads the action
definitions found in the [load] directory and keeps running until SIGINT or
SIGTERM. SIGHUP re-reads the configuration, applies the [rundeck],
[pagerduty], [slack] and [load] sections and reloads the definitions.

	-config <path>
		Configuration file. Without it $RUNDECK_ACTION_CONFIG_PATH and the
		default locations are searched, then built-in defaults are used.

	-pidfile <path>
		Write the process ID to a file, removed on shutdown.

	-log-file <path>
		Write logs to a file instead of [logging] file.

	-log-level <level>
		One of debug, info, warn or error, overriding [logging] level.
`

// Options represents the command line options that can be parsed.
type Options struct {
	ConfigPath string
	PIDFile    string
	LogFile    string
	LogLevel   string
}
