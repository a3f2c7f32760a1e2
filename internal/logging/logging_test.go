package logging

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var out bytes.Buffer
	logger, err := New(&out, "info")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.WithField("vendor", "NVIDIA").Info("Detected GPU type")

	printed := out.String()
	assert.NotContains(t, printed, "hidden")
	assert.Contains(t, printed, "Detected GPU type")
	assert.Contains(t, printed, "NVIDIA")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud")

	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	require.NoError(t, Init("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.Error(t, Init("loud"))
}
