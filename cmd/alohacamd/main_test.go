package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam"
)

func run(args ...string) (string, error) {
	flagConfig, flagLogLevel = "", ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "alohacamd dev")
}

func TestHelpShowsBanner(t *testing.T) {
	out, err := run("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "|_| |_| |_|")
	assert.Contains(t, out, "--encoder")
	assert.Contains(t, out, "relay")
}

func TestInvalidConfigFailsBeforeStart(t *testing.T) {
	for _, args := range [][]string{
		{"serve", "--source", "testpattern", "--width", "641"},
		{"--source", "testpattern", "--framerate", "0"},
		{"serve", "--source", "nope"},
	} {
		_, err := run(args...)
		require.Error(t, err, "%v", args)
		assert.True(t, alohacam.IsConfigError(err), "%v: %v", args, err)
	}
}

func TestBadFlagValue(t *testing.T) {
	_, err := run("serve", "--encoder", "h264")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run("serve", "--config", "/nonexistent/alohacam.yaml")
	assert.Error(t, err)
}
