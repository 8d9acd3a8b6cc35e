// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Mail       MailConfig       `mapstructure:"mail"`
	ChangeFeed ChangeFeedConfig `mapstructure:"changefeed"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Camunda    CamundaConfig    `mapstructure:"camunda"`
	Server     ServerConfig     `mapstructure:"server"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables span export. Output is "stdout" or a file path.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"`
}

// MailConfig selects the outbound transport and the fixed sender identity.
type MailConfig struct {
	Provider    string     `mapstructure:"provider"` // "smtp" or "ses"
	FromName    string     `mapstructure:"from_name"`
	FromAddress string     `mapstructure:"from_address"`
	SMTP        SMTPConfig `mapstructure:"smtp"`
	SES         SESConfig  `mapstructure:"ses"`
}

type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	TLSPolicy string `mapstructure:"tls_policy"` // "mandatory", "opportunistic", "none"
	Timeout   int    `mapstructure:"timeout"`    // milliseconds
}

type SESConfig struct {
	Region string `mapstructure:"region"`
}

// ChangeFeedConfig controls which change-event sources feed the notifier.
type ChangeFeedConfig struct {
	Collection   string            `mapstructure:"collection"`
	EventTimeout int               `mapstructure:"event_timeout"` // milliseconds, 0 disables
	Redis        RedisStreamConfig `mapstructure:"redis"`
	Zeebe        ZeebeJobConfig    `mapstructure:"zeebe"`
	HTTP         WebhookConfig     `mapstructure:"http"`
}

type RedisStreamConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Stream    string `mapstructure:"stream"`
	Group     string `mapstructure:"group"`
	Consumer  string `mapstructure:"consumer"`
	BatchSize int    `mapstructure:"batch_size"`
	Block     int    `mapstructure:"block"` // milliseconds
}

type ZeebeJobConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	JobType       string `mapstructure:"job_type"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type WebhookConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CamundaConfig struct {
	BrokerAddress string `mapstructure:"broker_address"`
	Plaintext     bool   `mapstructure:"plaintext"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
