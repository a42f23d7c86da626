package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_Commands(t *testing.T) {
	expected := []string{"serve", "reindex", "status", "mcp", "migrate-tenant", "version"}
	for _, name := range expected {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "command %s not registered", name)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("server"))
}

func TestMigrateTenantCmd_Flags(t *testing.T) {
	assert.NotNil(t, migrateTenantCmd.Flags().Lookup("tenant"))
	assert.NotNil(t, migrateTenantCmd.Flags().Lookup("dry-run"))
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("CORPUSD_TEST_ENV", "set")
	assert.Equal(t, "set", getEnvOrDefault("CORPUSD_TEST_ENV", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("CORPUSD_TEST_ENV_MISSING", "fallback"))
}
