package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json.log")

	require.NoError(t, Init(Options{Level: "info", JSONFile: jsonPath, Truncate: true}))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Debug("скрытое сообщение")
	Info("анализ завершен", zap.String("symbol", "BTCUSDT"))
	require.NoError(t, GetLogger().Sync())

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "анализ завершен")
	assert.Contains(t, string(data), `"symbol":"BTCUSDT"`)
	assert.NotContains(t, string(data), "скрытое сообщение")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNopByDefault(t *testing.T) {
	SetLogger(zap.NewNop())
	assert.NotPanics(t, func() { Warn("ничего не пишем") })
}
