package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevelFlagsDefaults(t *testing.T) {
	level, pkgs, err := parseLogLevelFlags(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "info", level)
	assert.Empty(t, pkgs)

	level, _, err = parseLogLevelFlags(nil, "warn")
	require.NoError(t, err)
	assert.Equal(t, "warn", level)
}

func TestParseLogLevelFlagsOverrides(t *testing.T) {
	level, pkgs, err := parseLogLevelFlags([]string{"debug"}, "info")
	require.NoError(t, err)
	assert.Equal(t, "debug", level)
	assert.Empty(t, pkgs)

	level, pkgs, err = parseLogLevelFlags([]string{"facts=debug", "pipeline=warn"}, "info")
	require.NoError(t, err)
	assert.Equal(t, "info", level)
	assert.Equal(t, map[string]string{"facts": "debug", "pipeline": "warn"}, pkgs)
}

func TestParseLogLevelFlagsRejectsBadLevels(t *testing.T) {
	_, _, err := parseLogLevelFlags([]string{"verbose"}, "info")
	assert.Error(t, err)

	_, _, err = parseLogLevelFlags([]string{"facts=loud"}, "info")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `package "facts"`)
}

func TestParseLogLevelFlagsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL_FACTS", "debug")

	_, pkgs, err := parseLogLevelFlags(nil, "info")
	require.NoError(t, err)
	assert.Equal(t, "debug", pkgs["facts"])

	// CLI flags override the environment.
	_, pkgs, err = parseLogLevelFlags([]string{"facts=warn"}, "info")
	require.NoError(t, err)
	assert.Equal(t, "warn", pkgs["facts"])
}
