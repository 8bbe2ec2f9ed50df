package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			require.NoError(t, Initialize(tt.jsonOutput))
			require.NotNil(t, Logger, "Initialize() did not set global Logger")
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Cleanup()
		})
	}
}

func TestInitializeWithLevel(t *testing.T) {
	require.NoError(t, InitializeWithLevel(false, zapcore.WarnLevel))
	defer Cleanup()

	core := Logger.Desugar().Core()
	assert.False(t, core.Enabled(zapcore.InfoLevel), "INFO should be suppressed at WARN level")
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{7, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "User", LevelName(0))
	assert.Equal(t, "Info (-v)", LevelName(1))
	assert.Equal(t, "Debug (-vv)", LevelName(2))
	assert.Equal(t, "Debug (-vv+)", LevelName(5))
	assert.Equal(t, "Unknown", LevelName(-1))
}

func TestComponentLogger(t *testing.T) {
	Logger = nil
	require.NoError(t, Initialize(true))
	defer Cleanup()

	named := ComponentLogger("pulse")
	require.NotNil(t, named)
	child := ChildLogger(named, FieldJobID, "abc")
	require.NotNil(t, child)
}
