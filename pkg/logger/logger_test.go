package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	t.Cleanup(func() { Configure("", FormatConsole, os.Stdout) })

	var buf bytes.Buffer
	Configure("debug", FormatJSON, &buf)

	log.Debug().Str("component", "test").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "test", line["component"])
}

func TestConfigureLevels(t *testing.T) {
	t.Cleanup(func() { Configure("", FormatConsole, os.Stdout) })

	var buf bytes.Buffer
	Configure("", FormatJSON, &buf)
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())

	Configure("WARN", FormatJSON, &buf)
	assert.Equal(t, zerolog.WarnLevel, Log.GetLevel())

	buf.Reset()
	Configure("loud", FormatJSON, &buf)
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())
	assert.Contains(t, buf.String(), "invalid log level")
}
