package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/issuer-service/pkg/storage"
)

func TestConfig(t *testing.T) {
	config, err := LoadConfig("dev.toml")
	assert.NoError(t, err)
	require.NotEmpty(t, config)

	assert.False(t, config.Server.ReadTimeout.String() == "")
	assert.False(t, config.Server.WriteTimeout.String() == "")
	assert.False(t, config.Server.ShutdownTimeout.String() == "")
	assert.False(t, config.Server.APIHost == "")
	assert.Equal(t, EnvironmentDev, config.Server.Environment)

	assert.Equal(t, string(storage.Bolt), config.Services.StorageProvider)
	require.Len(t, config.Services.StorageOptions, 1)
	assert.Equal(t, storage.BoltDBFilePathOption, config.Services.StorageOptions[0].ID)
	assert.Equal(t, "bolt.db", config.Services.StorageOptions[0].Option)

	assert.False(t, config.Services.AppLevelEncryptionConfiguration.EncryptionEnabled())
	assert.Equal(t, []string{"key", "web"}, config.Services.DIDConfig.LocalResolutionMethods)
	assert.Equal(t, 10*time.Second, config.Services.IssuanceConfig.ResolutionTimeout)
	assert.NotEmpty(t, config.Services.IssuerConfig.KeyPassword)
}

func TestDefaultConfig(t *testing.T) {
	config, err := LoadConfig("")
	assert.NoError(t, err)
	require.NotEmpty(t, config)

	assert.Equal(t, "0.0.0.0:3000", config.Server.APIHost)
	assert.Equal(t, 5*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, string(storage.Bolt), config.Services.StorageProvider)
	assert.Equal(t, DefaultResolutionTimeout, config.Services.IssuanceConfig.ResolutionTimeout)
}

func TestConfigErrors(t *testing.T) {
	t.Run("not toml", func(tt *testing.T) {
		_, err := LoadConfig("config.yaml")
		assert.ErrorContains(tt, err, "did not match the expected TOML format")
	})

	t.Run("missing file", func(tt *testing.T) {
		_, err := LoadConfig(filepath.Join(tt.TempDir(), "missing.toml"))
		assert.ErrorContains(tt, err, "could not load config")
	})

	t.Run("unknown storage", func(tt *testing.T) {
		path := writeConfig(tt, `
[services]
storage = "mongo"

[services.issuer]
key_password = "pw"
`)
		_, err := LoadConfig(path)
		assert.ErrorContains(tt, err, "unsupported storage provider: mongo")
	})

	t.Run("missing password", func(tt *testing.T) {
		path := writeConfig(tt, `
[services]
storage = "memory"
`)
		_, err := LoadConfig(path)
		assert.ErrorContains(tt, err, IssuerKeyPasswordEnv)
	})
}

func TestConfigPasswordFromEnv(t *testing.T) {
	t.Setenv(IssuerKeyPasswordEnv, "from-env")
	path := writeConfig(t, `
[services]
storage = "memory"

[services.issuance]
resolution_timeout = "250ms"
`)
	config, err := LoadConfig(path)
	assert.NoError(t, err)
	require.NotEmpty(t, config)
	assert.Equal(t, "from-env", config.Services.IssuerConfig.KeyPassword)
	assert.Equal(t, 250*time.Millisecond, config.Services.IssuanceConfig.ResolutionTimeout)
	assert.Equal(t, []string{"key", "web"}, config.Services.DIDConfig.LocalResolutionMethods)
}

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}
