package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("chatty")
	assert.Error(t, err)
}

func TestSetLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogLevel(DebugLevel)

	SetLogLevel(ErrorLevel)
	LogInfo("hidden %d", 1)
	assert.Empty(t, buf.String())

	LogError("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}
