package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/court-watch/internal/entity"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://resv.city.meguro.tokyo.jp", cfg.BaseURL)
	assert.Equal(t, ScanModeDetail, cfg.ScanMode)
	assert.Equal(t, 8, cfg.MaxMarksPerFacility)
	assert.Equal(t, 120*time.Second, cfg.PageLoadTimeout())
	assert.Equal(t, 1500*time.Millisecond, cfg.NavMinInterval())
	assert.Equal(t, 6*time.Hour, cfg.NotifyDedupTTL())
	assert.Zero(t, cfg.HeartbeatInterval())
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.NotifyOnError)
	assert.False(t, cfg.MailConfigured())

	facilities, err := cfg.Facilities()
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultFacilities(), facilities)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SCAN_MODE=calendar\nEXTRA_DELAY_MS=250\nNOTIFY_EMAIL=file@example.test\n"), 0o600))

	t.Setenv("NOTIFY_EMAIL", "env@example.test")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("NOTIFY_ON_ERROR", "true")
	t.Setenv("MAX_MARKS_PER_FACILITY", "3")

	cfg, err := LoadFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, ScanModeCalendar, cfg.ScanMode)
	assert.Equal(t, 250*time.Millisecond, cfg.ExtraDelay())
	assert.Equal(t, "env@example.test", cfg.NotifyEmail)
	assert.True(t, cfg.NotifyOnError)
	assert.Equal(t, 3, cfg.MaxMarksPerFacility)
	assert.True(t, cfg.MailConfigured())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("scan mode", func(t *testing.T) {
		t.Setenv("SCAN_MODE", "everything")
		_, err := LoadFile(missing)
		assert.ErrorIs(t, err, entity.ErrInvalidConfig)
	})
	t.Run("facility without patterns", func(t *testing.T) {
		t.Setenv("TARGET_FACILITIES", "駒場;碑文谷:")
		_, err := LoadFile(missing)
		assert.ErrorIs(t, err, entity.ErrInvalidConfig)
	})
}

func TestParseFacilities(t *testing.T) {
	got, err := ParseFacilities(" 駒場 ; 区民センター:区民センター|中央体育館 ;")
	require.NoError(t, err)
	assert.Equal(t, []entity.Facility{
		{Key: "駒場", NamePatterns: []string{"駒場"}},
		{Key: "区民センター", NamePatterns: []string{"区民センター", "中央体育館"}},
	}, got)

	_, err = ParseFacilities("駒場;駒場")
	assert.ErrorIs(t, err, entity.ErrInvalidConfig)

	_, err = ParseFacilities(":駒場")
	assert.ErrorIs(t, err, entity.ErrInvalidConfig)

	_, err = ParseFacilities(" ; ")
	assert.ErrorIs(t, err, entity.ErrInvalidConfig)
}
