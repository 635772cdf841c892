package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"audit", "bulk", "serve", "import", "export", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "content-pulse", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAuditCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"id", "name", "url", "force"} {
		flag := auditCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "audit command should have --%s flag", flagName)
	}
}

func TestBulkCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"ids", "limit", "skip-days", "method", "dry-run"} {
		flag := bulkCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "bulk command should have --%s flag", flagName)
	}

	limit := bulkCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "0", limit.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"source", "notion"} {
		flag := importCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "import command should have --%s flag", flagName)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	out := exportCmd.Flags().Lookup("out")
	require.NotNil(t, out, "export command should have --out flag")
	assert.Equal(t, "content-pulse.xlsx", out.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	cmds := runsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "stats"}
	for _, name := range expected {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}
