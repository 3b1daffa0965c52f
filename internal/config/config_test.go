package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	require.NoError(t, Load(""))

	c := Get()
	assert.Equal(t, ":8080", c.HttpListenAddr)
	assert.Equal(t, "/api/v1", c.HttpBaseRequestUrl)
	assert.Equal(t, 3*time.Second, c.LedgerTxTimeout)
	assert.Equal(t, 168*time.Hour, c.PaymentProcessedTTL)
	assert.Equal(t, "notifications", c.NotifyQueueName)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"LEDGER_TX_TIMEOUT=750ms\nNOTIFY_WORKERS=3\nPROVIDER_SECONDARY_URL=http://sms-b:8081\n",
	), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LEDGER_TX_TIMEOUT")
		os.Unsetenv("NOTIFY_WORKERS")
		os.Unsetenv("PROVIDER_SECONDARY_URL")
	})

	require.NoError(t, Load(path))

	c := Get()
	assert.Equal(t, 750*time.Millisecond, c.LedgerTxTimeout)
	assert.Equal(t, 3, c.NotifyWorkers)
	assert.Equal(t, []string{"http://localhost:8081", "http://sms-b:8081"}, c.ProviderURLs())
}

func TestLoad_MissingFile(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.env")))
}
