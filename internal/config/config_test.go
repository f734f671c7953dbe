package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openracing/enrollment-service/internal/config"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ASAAS_API_KEY", "key")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "enrollment_service", cfg.Database.Database)
	assert.Equal(t, "https://sandbox.asaas.com/api/v3", cfg.Asaas.BaseURL)
	// zero defers timeout selection to the gateway client
	assert.Equal(t, 0, cfg.Asaas.Timeout)
	assert.False(t, cfg.Asaas.Production)
}

func TestLoadFromEnv_TimeoutOverride(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ASAAS_API_KEY", "key")
	t.Setenv("ASAAS_TIMEOUT", "45")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Asaas.Timeout)
}

func TestLoadFromEnv_RequiredFields(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("ASAAS_API_KEY", "key")
	_, err := config.LoadFromEnv()
	assert.Error(t, err)

	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ASAAS_API_KEY", "")
	_, err = config.LoadFromEnv()
	assert.Error(t, err)
}
