package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	config, shouldExit, err := Parse(nil, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	config, shouldExit, err := Parse([]string{"-h"}, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
}

func TestParseProjectPath(t *testing.T) {
	var out bytes.Buffer

	t.Run("positional argument", func(t *testing.T) {
		config, shouldExit, err := Parse([]string{"demo.hcl"}, &out)
		require.NoError(t, err)
		require.False(t, shouldExit)
		assert.Equal(t, "demo.hcl", config.ProjectPath)
	})

	t.Run("long flag", func(t *testing.T) {
		config, _, err := Parse([]string{"-project", "demo.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "demo.hcl", config.ProjectPath)
	})

	t.Run("shorthand flag", func(t *testing.T) {
		config, _, err := Parse([]string{"-p", "demo.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "demo.hcl", config.ProjectPath)
	})
}

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer
	config, _, err := Parse([]string{"demo.hcl"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
	assert.Empty(t, config.Compiler)
	assert.Empty(t, config.CFlags)
	assert.False(t, config.Build)
	assert.False(t, config.Run)
	assert.Zero(t, config.Timeout)
}

func TestParseFullFlags(t *testing.T) {
	var out bytes.Buffer
	config, _, err := Parse([]string{
		"-p", "demo.hcl",
		"-catalog", "kinds/",
		"-compiler", "gcc",
		"-cflags", "-O2 -g",
		"-o", "out.c",
		"-run",
		"-log-level", "debug",
		"-log-format", "json",
		"-timeout", "30s",
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "kinds/", config.CatalogPath)
	assert.Equal(t, "gcc", config.Compiler)
	assert.Equal(t, []string{"-O2", "-g"}, config.CFlags)
	assert.Equal(t, "out.c", config.OutputPath)
	assert.True(t, config.Run)
	assert.True(t, config.Build, "-run implies -build")
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestParseInvalidValues(t *testing.T) {
	var out bytes.Buffer
	cases := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"-log-format", "xml", "demo.hcl"}},
		{"bad log level", []string{"-log-level", "loud", "demo.hcl"}},
		{"negative timeout", []string{"-timeout", "-5s", "demo.hcl"}},
		{"unknown flag", []string{"-frobnicate", "demo.hcl"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &out)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
