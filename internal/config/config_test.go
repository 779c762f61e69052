package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finscale/internal/common"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Recurrence.Interval)
	assert.True(t, cfg.Recurrence.RunOnStart)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("database.path", "/tmp/ledger.db")
	v.Set("recurrence.interval", "15m")
	v.Set("session.backend", "sqlite")
	v.Set("telegram.token", "abc")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Minute, cfg.Recurrence.Interval)
	assert.Equal(t, SessionBackendSQLite, cfg.Session.Backend)
	assert.Equal(t, "abc", cfg.Telegram.Token)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "unknown session backend", key: "session.backend", value: "redis"},
		{name: "zero interval", key: "recurrence.interval", value: "0s"},
		{name: "bad log level", key: "logging.level", value: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestRequireServerSecrets(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	err = cfg.RequireServerSecrets()
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.RequireServerSecrets())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("FINSCALE_TEST_DIR", "/var/data")

	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "~", want: home},
		{input: "~/ledger.db", want: filepath.Join(home, "ledger.db")},
		{input: "$FINSCALE_TEST_DIR/ledger.db", want: "/var/data/ledger.db"},
		{input: "/abs/ledger.db", want: "/abs/ledger.db"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.input))
		})
	}
}
