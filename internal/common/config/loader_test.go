package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
mail:
  from_address: approvals@example.com
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "shop-notifier", cfg.App.Name)
	assert.Equal(t, MailProviderSMTP, cfg.Mail.Provider)
	assert.Equal(t, "Shop Approval", cfg.Mail.FromName)
	assert.Equal(t, "smtp.gmail.com", cfg.Mail.SMTP.Host)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, "pending_shops", cfg.ChangeFeed.Collection)
	assert.True(t, cfg.ChangeFeed.HTTP.Enabled)
	assert.False(t, cfg.ChangeFeed.Redis.Enabled)
	assert.Equal(t, "shop-approval-notify", cfg.ChangeFeed.Zeebe.JobType)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Output)
	assert.NotEmpty(t, cfg.ChangeFeed.Redis.Consumer)
}

func TestLoadFromFile_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("MAIL_SMTP_PASSWORD", "app-password")
	t.Setenv("SHOP_SENDER", "owner@example.com")

	path := writeConfig(t, `
mail:
  from_address: ${SHOP_SENDER}
  smtp:
    username: owner@example.com
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "app-password", cfg.Mail.SMTP.Password)
	assert.Equal(t, "owner@example.com", cfg.Mail.FromAddress)
}

func TestLoadFromFile_FromAddressFallsBackToSMTPUser(t *testing.T) {
	path := writeConfig(t, `
mail:
  smtp:
    username: owner@example.com
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", cfg.Mail.FromAddress)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing sender",
			body:   "mail:\n  provider: smtp\n",
			errMsg: "mail.from_address is required",
		},
		{
			name:   "unknown provider",
			body:   "mail:\n  provider: pigeon\n  from_address: a@example.com\n",
			errMsg: "mail.provider must be",
		},
		{
			name:   "ses without region",
			body:   "mail:\n  provider: ses\n  from_address: a@example.com\n",
			errMsg: "mail.ses.region is required",
		},
		{
			name:   "bad smtp port",
			body:   "mail:\n  from_address: a@example.com\n  smtp:\n    port: 70000\n",
			errMsg: "mail.smtp.port must be between 1 and 65535",
		},
		{
			name:   "no sources",
			body:   "mail:\n  from_address: a@example.com\nchangefeed:\n  http:\n    enabled: false\n",
			errMsg: "at least one changefeed source must be enabled",
		},
		{
			name:   "redis feed without address",
			body:   "mail:\n  from_address: a@example.com\nchangefeed:\n  redis:\n    enabled: true\n",
			errMsg: "database.redis.address is required",
		},
		{
			name:   "zeebe feed without broker",
			body:   "mail:\n  from_address: a@example.com\nchangefeed:\n  zeebe:\n    enabled: true\n",
			errMsg: "camunda.broker_address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_REGION", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
