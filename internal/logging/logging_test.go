package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelForQuietDisables(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, levelFor(true, 3))
}

func TestLevelForVerbosityEscalates(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, levelFor(false, 0))
	assert.Equal(t, zerolog.InfoLevel, levelFor(false, 1))
	assert.Equal(t, zerolog.DebugLevel, levelFor(false, 2))
	assert.Equal(t, zerolog.TraceLevel, levelFor(false, 3))
	assert.Equal(t, zerolog.TraceLevel, levelFor(false, 10))
}

func TestNewProducesUsableLogger(t *testing.T) {
	log := New(Config{Quiet: true})
	// a disabled logger must not panic on use
	log.Info().Msg("unreachable")
	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}

func TestNewWithVerbosity(t *testing.T) {
	log := New(Config{Verbosity: 2, TimestampFormat: "ms"})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}
