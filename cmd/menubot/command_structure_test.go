package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
		assert.NotEmpty(t, cmd.Short, "command %s should have short description", cmd.Name())
	}
	for _, want := range []string{"serve", "webhook", "migrate", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	sub := map[string]bool{}
	for _, cmd := range webhookCmd.Commands() {
		sub[cmd.Name()] = true
	}
	assert.Equal(t, map[string]bool{"set": true, "delete": true, "info": true}, sub)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestVersionJSON(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		versionJSON = false
	})
	require.NoError(t, rootCmd.Execute())

	var v VersionOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, "dev", v.Version)
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	rootCmd.SetArgs([]string{"migrate", "sideways"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})
	assert.Error(t, rootCmd.Execute())
}
