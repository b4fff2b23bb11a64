package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeCmdProperties(t *testing.T) {
	cmd := newServeCmd()

	assert.Equal(t, "serve", cmd.Use)
	assert.Equal(t, "Start the kbatch API server", cmd.Short)
	assert.True(t, strings.Contains(cmd.Long, "JupyterHub"))
	assert.True(t, strings.Contains(cmd.Long, "KBATCH_SETTINGS_PATH"))
	assert.True(t, strings.Contains(cmd.Long, "--in-cluster"))
}

func TestServeCmdFlags(t *testing.T) {
	cmd := newServeCmd()

	// Test that all expected flags exist
	flagNames := []string{
		"listen-addr",
		"metrics-addr",
		"kubeconfig",
		"kube-context",
		"in-cluster",
		"qps-limit",
		"burst-limit",
		"debug",
		"text-logs",
	}

	for _, flagName := range flagNames {
		flag := cmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "Flag %s should exist", flagName)
	}
}

func TestServeCmdFlagDefaults(t *testing.T) {
	cmd := newServeCmd()

	// Test flag default values
	tests := []struct {
		flagName string
		expected string
	}{
		{"listen-addr", ":8000"},
		{"metrics-addr", ":9090"},
		{"kubeconfig", ""},
		{"kube-context", ""},
		{"in-cluster", "false"},
		{"debug", "false"},
		{"text-logs", "false"},
	}

	for _, test := range tests {
		flag := cmd.Flags().Lookup(test.flagName)
		assert.Equal(t, test.expected, flag.DefValue,
			"Flag %s should have default value %s", test.flagName, test.expected)
	}
}

func TestServeCmdFlagUsage(t *testing.T) {
	cmd := newServeCmd()

	usage := cmd.UsageString()
	assert.Contains(t, usage, "--listen-addr")
	assert.Contains(t, usage, "--in-cluster")
	assert.Contains(t, usage, "KBATCH_LISTEN_ADDR")
}
