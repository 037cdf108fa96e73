package main

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
	"github.com/influxdata/rundeckaction/server"
	"github.com/influxdata/rundeckaction/services/action"
	"github.com/influxdata/rundeckaction/services/logging"
	"github.com/influxdata/rundeckaction/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var errExecutionFailed = errors.New("action execution failed")

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "rundeckaction",
		Usage:     "Run a Rundeck job and report its execution to PagerDuty or Slack",
		UsageText: "rundeckaction [command]",
		Version:   version + " (" + commit + ")",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			newExecuteCmd(),
			newTriggerCmd(),
			newActionsCmd(),
			newLogLevelCmd(),
		},
	}
}

func newExecuteCmd() *cli.Command {
	return &cli.Command{
		Name:  "execute",
		Usage: "Execute an action once and print the JSON result, exits 1 when the result is an error",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "config",
				Usage:     "Path to the action config, a JSON or YAML object with url, apiVersion, jobId and headers",
				Aliases:   []string{"c"},
				Required:  true,
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:      "secrets",
				Usage:     "Path to the action secrets, a JSON or YAML object with rundeckToken, pagerDutyApiKey and slackWebhookUrl",
				Aliases:   []string{"s"},
				Required:  true,
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:      "params",
				Usage:     "Path to the invocation params, a JSON or YAML object with dedupKey, name and jobParams, '-' reads stdin",
				Aliases:   []string{"p"},
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:  "action-id",
				Usage: "Identifier of the action in messages, a UUID is generated when empty",
			},
			&cli.StringFlag{
				Name:      "server-config",
				Usage:     "Path to a rundeckactiond configuration file, its http-client, rundeck, pagerduty and slack sections are used",
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "One of debug,info,warn,error",
				Value: "warn",
			},
		},
		Action: func(ctx *cli.Context) error {
			return execute(ctx.Context, ctx)
		},
	}
}

func execute(ctx context.Context, c *cli.Context) error {
	configOptions, err := readObject(c, c.String("config"))
	if err != nil {
		return errors.Wrap(err, "config")
	}
	config, err := action.DecodeConfig(configOptions)
	if err != nil {
		return err
	}
	secretOptions, err := readObject(c, c.String("secrets"))
	if err != nil {
		return errors.Wrap(err, "secrets")
	}
	secrets, err := action.DecodeSecrets(secretOptions)
	if err != nil {
		return err
	}
	var params action.Params
	if path := c.String("params"); path != "" {
		paramOptions, err := readObject(c, path)
		if err != nil {
			return errors.Wrap(err, "params")
		}
		if params, err = action.DecodeParams(paramOptions); err != nil {
			return err
		}
	}
	actionID := c.String("action-id")
	if actionID == "" {
		actionID = uuid.NewActionID()
	}

	serverConfig, err := readServerConfig(c.String("server-config"))
	if err != nil {
		return err
	}
	serverConfig.Logging.Level = c.String("log-level")
	serverConfig.Load.Enabled = false

	logService := logging.NewService(serverConfig.Logging, c.App.Writer, c.App.ErrWriter)
	if err := logService.Open(); err != nil {
		return errors.Wrap(err, "init logging")
	}
	defer logService.Close()

	s, err := server.New(serverConfig, server.BuildInfo{Version: version, Commit: commit}, logService)
	if err != nil {
		return err
	}

	r := s.ActionService.Execute(ctx, config, secrets, params, actionID)

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "failed to write result")
	}
	if !r.OK() {
		return errExecutionFailed
	}
	return nil
}

// readObject reads a JSON or YAML object from path, "-" reads the app input.
func readObject(c *cli.Context, path string) (map[string]interface{}, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = ioutil.ReadAll(c.App.Reader)
	} else {
		data, err = ioutil.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	data, err = yaml.YAMLToJSON(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s to JSON", path)
	}
	o := make(map[string]interface{})
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrapf(err, "failed to decode object in %s", path)
	}
	return o, nil
}

func readServerConfig(path string) (*server.Config, error) {
	config := server.NewConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
	}
	if err := config.ApplyEnvOverrides(); err != nil {
		return nil, errors.Wrap(err, "apply env config")
	}
	return config, nil
}
