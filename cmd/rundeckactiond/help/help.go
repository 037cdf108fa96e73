// Package help prints the top level usage of rundeckactiond.
package help

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type Command struct {
	Stdout io.Writer
}

func NewCommand() *Command {
	return &Command{
		Stdout: os.Stdout,
	}
}

// Run prints the usage. Arguments are ignored, "help <command>" is routed
// to the command itself.
func (cmd *Command) Run(args ...string) error {
	fmt.Fprintln(cmd.Stdout, strings.TrimSpace(usage))
	return nil
}

const usage = `
rundeckactiond serves the rundeck action over HTTP: each execution triggers a
Rundeck job and reports the execution link to a PagerDuty incident (when a
dedupKey is given) or to a Slack webhook.

Usage:

	rundeckactiond [command] [arguments]

The commands are:

	run        start the server (the default command)
	config     print the configuration with defaults applied
	version    print the version and build information
	help       print this help

Configuration is read from -config, $RUNDECK_ACTION_CONFIG_PATH,
~/.rundeck-action/rundeck-action.conf or /etc/rundeck-action/rundeck-action.conf,
and every option can be overridden with a RUNDECK_ACTION_<SECTION>_<OPTION>
environment variable. The sections are:

	[http]         API listener: bind-address, log-enabled, shutdown-timeout
	[http-client]  outbound requests: timeout, user-agent, TLS settings
	[logging]      file, level and encoding of the log
	[load]         directory of action definitions (id, config, secrets)
	[rundeck]      default api-version and headers sent with every job request
	[pagerduty]    REST API url and the From address used for incident notes
	[slack]        default username and icon of webhook messages

Sending SIGHUP to a running server re-reads the configuration file, applies
the [rundeck], [pagerduty], [slack] and [load] sections and reloads the action
definitions. SIGINT and SIGTERM shut the server down.

Use "rundeckactiond help <command>" for more information about a command.
`
