package main

import (
	"encoding/json"
	"fmt"

	client "github.com/influxdata/rundeckaction/client/v1"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const defaultServerURL = "http://localhost:9093"

func remoteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "URL of the rundeckactiond server",
			Value:   defaultServerURL,
			EnvVars: []string{"RUNDECK_ACTION_URL"},
		},
		&cli.BoolFlag{
			Name:  "skipVerify",
			Usage: "Disable SSL verification of the server certificate",
		},
	}
}

// withClient stores a client of the server named by the url flag in the app metadata.
func withClient() cli.BeforeFunc {
	return func(ctx *cli.Context) error {
		cl, err := client.New(client.Config{
			URL:                ctx.String("url"),
			InsecureSkipVerify: ctx.Bool("skipVerify"),
		})
		if err != nil {
			return err
		}
		if ctx.App.Metadata == nil {
			ctx.App.Metadata = make(map[string]interface{})
		}
		ctx.App.Metadata["client"] = cl
		return nil
	}
}

func getClient(ctx *cli.Context) *client.Client {
	c, ok := ctx.App.Metadata["client"].(*client.Client)
	if !ok {
		panic("missing client")
	}
	return c
}

func newTriggerCmd() *cli.Command {
	return &cli.Command{
		Name:      "trigger",
		Usage:     "Execute an action loaded by a rundeckactiond server, exits 1 when the result is an error",
		ArgsUsage: "<action id>",
		Before:    withClient(),
		Flags: append(remoteFlags(), &cli.StringFlag{
			Name:      "params",
			Usage:     "Path to the invocation params, a JSON or YAML object with dedupKey, name and jobParams, '-' reads stdin",
			Aliases:   []string{"p"},
			TakesFile: true,
		}),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("exactly one action id is required")
			}
			var params map[string]interface{}
			if path := ctx.String("params"); path != "" {
				var err error
				if params, err = readObject(ctx, path); err != nil {
					return errors.Wrap(err, "params")
				}
			}
			r, err := getClient(ctx).ExecuteAction(ctx.Args().First(), params)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(ctx.App.Writer)
			enc.SetIndent("", "    ")
			if err := enc.Encode(r); err != nil {
				return errors.Wrap(err, "failed to write result")
			}
			if !r.OK() {
				return errExecutionFailed
			}
			return nil
		},
	}
}

func newActionsCmd() *cli.Command {
	return &cli.Command{
		Name:   "actions",
		Usage:  "List the actions loaded by a rundeckactiond server",
		Before: withClient(),
		Flags:  remoteFlags(),
		Action: func(ctx *cli.Context) error {
			actions, err := getClient(ctx).ListActions()
			if err != nil {
				return err
			}
			for _, id := range actions {
				fmt.Fprintln(ctx.App.Writer, id)
			}
			return nil
		},
	}
}

func newLogLevelCmd() *cli.Command {
	return &cli.Command{
		Name:      "level",
		Usage:     "Set the log level of a rundeckactiond server",
		ArgsUsage: "<debug|info|warn|error>",
		Before:    withClient(),
		Flags:     remoteFlags(),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("exactly one level is required")
			}
			return getClient(ctx).LogLevel(ctx.Args().First())
		},
	}
}
