package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/influxdata/rundeckaction/cmd/rundeckactiond/help"
	"github.com/influxdata/rundeckaction/cmd/rundeckactiond/run"
	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/services/diagnostic"
	"github.com/pkg/errors"
)

// DefaultShutdownTimeout bounds how long a clean shutdown may take before
// the daemon exits anyway.
const DefaultShutdownTimeout = 30 * time.Second

type Diagnostic interface {
	Error(msg string, err error)
	Info(msg string, ctx ...keyvalue.T)
}

// Populated via the Go linker.
var (
	version string
	commit  string
	branch  string
)

func init() {
	if commit == "" {
		commit = "unknown"
	}
	if branch == "" {
		branch = "unknown"
	}
}

func main() {
	m := NewMain()
	if err := m.Run(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main dispatches the daemon sub-commands.
type Main struct {
	Diag Diagnostic

	// Signals replaces the process signals when set.
	Signals         <-chan os.Signal
	ShutdownTimeout time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewMain() *Main {
	return &Main{
		Diag:            diagnostic.BootstrapMainHandler(),
		ShutdownTimeout: DefaultShutdownTimeout,
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

// Run determines and runs the command specified by the CLI args.
func (m *Main) Run(args ...string) error {
	name, args := ParseCommandName(args)

	var err error
	switch name {
	case "", "run":
		err = m.serve(args)
	case "config":
		cmd := run.NewPrintConfigCommand()
		cmd.Stdout, cmd.Stderr = m.Stdout, m.Stderr
		err = cmd.Run(args...)
	case "version":
		cmd := NewVersionCommand()
		cmd.Stdout, cmd.Stderr = m.Stdout, m.Stderr
		err = cmd.Run(args...)
	case "help":
		cmd := help.NewCommand()
		cmd.Stdout = m.Stdout
		err = cmd.Run(args...)
	default:
		return fmt.Errorf("unknown command %q\nRun 'rundeckactiond help' for usage\n", name)
	}
	if err == flag.ErrHelp {
		return nil
	}
	if err != nil {
		if name == "" {
			name = "run"
		}
		return errors.Wrap(err, name)
	}
	return nil
}

// serve starts the server and blocks until it has been shut down.
// SIGHUP re-reads the configuration file and the action definitions,
// any other signal shuts the server down.
func (m *Main) serve(args []string) error {
	cmd := run.NewCommand()
	cmd.Stdout, cmd.Stderr = m.Stdout, m.Stderr
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch

	err := cmd.Run(args...)
	if cmd.Diag != nil {
		// Logging is configured now, prefer it over the bootstrap handler.
		m.Diag = cmd.Diag
	}
	if err != nil {
		if err != flag.ErrHelp {
			m.Diag.Error("encountered error", err)
		}
		return err
	}

	signals := m.Signals
	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(ch)
		signals = ch
	}
	m.Diag.Info("listening for signals")

	for s := range signals {
		if isReload(s) {
			m.Diag.Info("reloading configuration and action definitions", keyvalue.KV("signal", s.String()))
			cmd.Reload()
			continue
		}
		m.Diag.Info("shutting down", keyvalue.KV("signal", s.String()))
		go cmd.Close()
		break
	}

	timeout := m.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	select {
	case s := <-signals:
		m.Diag.Info("second signal received, initializing hard shutdown", keyvalue.KV("signal", s.String()))
	case <-time.After(timeout):
		m.Diag.Info("time limit reached, initializing hard shutdown", keyvalue.KV("timeout", timeout.String()))
	case <-cmd.Closed:
		m.Diag.Info("server shutdown completed")
	}
	return nil
}

func isReload(s os.Signal) bool {
	return s == syscall.SIGHUP
}

// ParseCommandName extracts the command name and args from the args list.
// "help <command>" is rewritten to "<command> -h".
func ParseCommandName(args []string) (string, []string) {
	if len(args) == 0 {
		return "", args
	}
	if args[0] == "-h" || args[0] == "--help" {
		return "help", args[1:]
	}
	if strings.HasPrefix(args[0], "-") {
		return "", args
	}
	if args[0] == "help" && len(args) > 1 {
		args[0], args[1] = args[1], "-h"
	}
	return args[0], args[1:]
}

// VersionCommand represents the command executed by "rundeckactiond version".
type VersionCommand struct {
	Stdout io.Writer
	Stderr io.Writer
}

func NewVersionCommand() *VersionCommand {
	return &VersionCommand{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run prints the version, build branch and commit of the daemon.
func (cmd *VersionCommand) Run(args ...string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(cmd.Stderr)
	fs.Usage = func() { fmt.Fprintln(cmd.Stderr, strings.TrimSpace(versionUsage)) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Stdout, "rundeckactiond %s (git: %s %s, %s)\n", version, branch, commit, runtime.Version())
	return nil
}

const versionUsage = `
usage: version

	version prints the rundeckactiond version, the git branch and commit it
	was built from and the Go runtime version.
`
