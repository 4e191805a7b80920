package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SWEEP_INITIAL_DELAY_SEC", "")
	t.Setenv("SWEEP_DELAY_SEC", "")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.SweepInitialDelay)
	assert.Equal(t, 300*time.Second, cfg.SweepDelay)
	assert.Equal(t, 30*time.Second, cfg.HTTPConnectTimeout)
	assert.Equal(t, 120*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, "9091", cfg.MetricsPort)
}

func TestLoad_SweepDelayIsClamped(t *testing.T) {
	t.Setenv("SWEEP_DELAY_SEC", "1")

	cfg := Load()

	assert.Equal(t, MinSweepDelay, cfg.SweepDelay)
}

func TestValidate_ReportsEveryMissingKey(t *testing.T) {
	cfg := &Config{HcwBackendURL: "http://hcw"}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HCW_USER_EMAIL")
	assert.Contains(t, err.Error(), "HCW_PASSWORD")
	assert.Contains(t, err.Error(), "EMAIL_ATTRIBUTE_TYPE_UUID")
	assert.Contains(t, err.Error(), "ENCOUNTER_TYPE_UUID")
	assert.NotContains(t, err.Error(), "HCW_BACKEND_URL")
}

func TestValidate_Complete(t *testing.T) {
	cfg := &Config{
		HcwBackendURL:          "http://hcw",
		HcwUserEmail:           "sync@hcw.org",
		HcwPassword:            "secret",
		EmailAttributeTypeUUID: "email-attr",
		EncounterTypeUUID:      "enc-type",
	}

	assert.NoError(t, cfg.Validate())
}
