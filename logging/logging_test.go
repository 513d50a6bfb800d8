package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	logger, closer, err := NewWithWriter(&console, dir, "0xabc", log.LvlInfo)
	require.NoError(t, err)

	logger.Info("Pings: 3 | Pongs: 2")
	logger.Error("There are missing ping txs", "percentage", "66.67")
	logger.Debug("filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "0xabc.log"))
	require.NoError(t, err)

	for _, out := range []string{console.String(), string(data)} {
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "Pings: 3 | Pongs: 2")
		assert.Contains(t, out, "EROR")
		assert.Contains(t, out, "percentage=66.67")
		assert.Contains(t, out, "source="+Source)
		assert.NotContains(t, out, "filtered out")
	}
}

func TestNewAppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first run", "second run"} {
		logger, closer, err := NewWithWriter(&bytes.Buffer{}, dir, "bot", log.LvlInfo)
		require.NoError(t, err)
		logger.Info(msg)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "bot.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, log.LvlError, lvl)

	lvl, err = ParseLevel("3")
	require.NoError(t, err)
	assert.Equal(t, log.LvlInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
