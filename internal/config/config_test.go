package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/greenledger"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := write(t, `
nodeInfo:
  fqdn: registry.example.com
  privatekey: `+testKey+`
  admins:
    - con1admin
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8000", config.Server.Listen)
	assert.Equal(t, BackendMemory, config.Server.StoreBackend)
	assert.Equal(t, uint32(5000), config.Registry.LifetimeThresholdLedgers)
	assert.Equal(t, 5000*5*time.Second, config.Lifetime().ExtendTo)
	assert.True(t, greenledger.IsAddress(config.NodeInfo.CSID, greenledger.ServerPrefix))

	d := config.Domain()
	assert.Equal(t, "registry.example.com", d.FQDN)
	assert.Equal(t, []string{"con1admin"}, d.Admins)
	assert.Equal(t, config.NodeInfo.CSID, d.CSID)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown backend": `
nodeInfo: {privatekey: ` + testKey + `}
server: {storeBackend: etcd}
`,
		"redis without address": `
nodeInfo: {privatekey: ` + testKey + `}
server: {storeBackend: redis}
`,
		"postgres without dsn": `
nodeInfo: {privatekey: ` + testKey + `}
server: {storeBackend: postgres}
`,
		"extend below threshold": `
nodeInfo: {privatekey: ` + testKey + `}
registry: {lifetimeThresholdLedgers: 100, lifetimeExtendToLedgers: 10}
`,
		"bad private key": `
nodeInfo: {privatekey: zz}
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
