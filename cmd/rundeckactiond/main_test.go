package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandName(t *testing.T) {
	testCases := []struct {
		args    []string
		expName string
		expArgs []string
	}{
		{args: nil, expName: "", expArgs: nil},
		{args: []string{"-config", "a.conf"}, expName: "", expArgs: []string{"-config", "a.conf"}},
		{args: []string{"run", "-config", "a.conf"}, expName: "run", expArgs: []string{"-config", "a.conf"}},
		{args: []string{"-h"}, expName: "help", expArgs: []string{}},
		{args: []string{"--help"}, expName: "help", expArgs: []string{}},
		{args: []string{"help"}, expName: "help", expArgs: []string{}},
		{args: []string{"help", "config"}, expName: "config", expArgs: []string{"-h"}},
	}
	for _, tc := range testCases {
		name, args := ParseCommandName(tc.args)
		assert.Equal(t, tc.expName, name, "args %v", tc.args)
		assert.Equal(t, tc.expArgs, args, "args %v", tc.args)
	}
}

func newTestMain() (*Main, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	m := NewMain()
	m.Stdout = &stdout
	m.Stderr = &stderr
	return m, &stdout, &stderr
}

func TestMain_Help(t *testing.T) {
	m, stdout, _ := newTestMain()
	require.NoError(t, m.Run("help"))
	out := stdout.String()
	for _, section := range []string{"[load]", "[rundeck]", "[pagerduty]", "[slack]", "SIGHUP"} {
		assert.Contains(t, out, section)
	}
}

func TestMain_HelpRun(t *testing.T) {
	m, _, stderr := newTestMain()
	require.NoError(t, m.Run("help", "run"))
	assert.Contains(t, stderr.String(), "usage: run [flags]")
	assert.Contains(t, stderr.String(), "-pidfile <path>")
}

func TestMain_Version(t *testing.T) {
	m, stdout, _ := newTestMain()
	require.NoError(t, m.Run("version"))
	assert.Contains(t, stdout.String(), "rundeckactiond ")
	assert.Contains(t, stdout.String(), "git: unknown unknown")
}

func TestMain_UnknownCommand(t *testing.T) {
	m, _, _ := newTestMain()
	err := m.Run("restart")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "restart"`)
}

func TestMain_Signals(t *testing.T) {
	dir := t.TempDir()
	actions := filepath.Join(dir, "actions")
	require.NoError(t, os.Mkdir(actions, 0755))
	logFile := filepath.Join(dir, "rundeck-action.log")
	configFile := filepath.Join(dir, "rundeck-action.conf")
	require.NoError(t, ioutil.WriteFile(configFile, []byte(fmt.Sprintf(`
[http]
  bind-address = "127.0.0.1:0"
[logging]
  file = %q
[load]
  enabled = true
  dir = %q
`, logFile, actions)), 0600))

	signals := make(chan os.Signal, 2)
	signals <- syscall.SIGHUP
	signals <- syscall.SIGTERM

	m, _, _ := newTestMain()
	m.Signals = signals
	m.ShutdownTimeout = 5 * time.Second

	done := make(chan error, 1)
	go func() { done <- m.Run("run", "-config", configFile) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	log, err := ioutil.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(log), "reloading configuration and action definitions")
	assert.Contains(t, string(log), "reloaded action definitions")
	assert.Contains(t, string(log), "shutting down")
}
