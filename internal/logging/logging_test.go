package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupWithWriter(&buf, "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("league_id", "abc").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "abc", entry["league_id"])
}

func TestSetupWithWriterUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWithWriter(&buf, "loud")

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
