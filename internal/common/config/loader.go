// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MailProviderSMTP = "smtp"
	MailProviderSES  = "ses"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides (MAIL_SMTP_PASSWORD etc).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return build(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "shop-notifier")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.output", "stdout")

	v.SetDefault("mail.provider", MailProviderSMTP)
	v.SetDefault("mail.from_name", "Shop Approval")
	v.SetDefault("mail.from_address", "")
	v.SetDefault("mail.smtp.host", "smtp.gmail.com")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.tls_policy", "mandatory")
	v.SetDefault("mail.smtp.timeout", 15000)
	v.SetDefault("mail.ses.region", "")

	v.SetDefault("changefeed.collection", "pending_shops")
	v.SetDefault("changefeed.event_timeout", 0)
	v.SetDefault("changefeed.redis.enabled", false)
	v.SetDefault("changefeed.redis.stream", "pending_shops:changes")
	v.SetDefault("changefeed.redis.group", "shop-notifier")
	v.SetDefault("changefeed.redis.consumer", "")
	v.SetDefault("changefeed.redis.batch_size", 10)
	v.SetDefault("changefeed.redis.block", 5000)
	v.SetDefault("changefeed.zeebe.enabled", false)
	v.SetDefault("changefeed.zeebe.job_type", "shop-approval-notify")
	v.SetDefault("changefeed.zeebe.max_jobs_active", 5)
	v.SetDefault("changefeed.zeebe.timeout", 30000)
	v.SetDefault("changefeed.http.enabled", true)

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("camunda.broker_address", "")
	v.SetDefault("camunda.plaintext", true)

	v.SetDefault("server.address", ":8080")
}

// overrideEmptyConfig fills credentials from the conventional variable names
// when the namespaced ones are not set.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Mail.SMTP.Username == "" {
		if val := os.Getenv("SMTP_USERNAME"); val != "" {
			cfg.Mail.SMTP.Username = val
		}
	}
	if cfg.Mail.SMTP.Password == "" {
		if val := os.Getenv("SMTP_PASSWORD"); val != "" {
			cfg.Mail.SMTP.Password = val
		}
	}
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = cfg.Mail.SMTP.Username
	}
	if cfg.Mail.SES.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Mail.SES.Region = val
		}
	}
	if cfg.ChangeFeed.Redis.Consumer == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.ChangeFeed.Redis.Consumer = host
		} else {
			cfg.ChangeFeed.Redis.Consumer = cfg.App.Name
		}
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Mail.Provider {
	case MailProviderSMTP:
		if cfg.Mail.SMTP.Host == "" {
			return fmt.Errorf("mail.smtp.host is required")
		}
		if cfg.Mail.SMTP.Port <= 0 || cfg.Mail.SMTP.Port > 65535 {
			return fmt.Errorf("mail.smtp.port must be between 1 and 65535")
		}
	case MailProviderSES:
		if cfg.Mail.SES.Region == "" {
			return fmt.Errorf("mail.ses.region is required")
		}
	default:
		return fmt.Errorf("mail.provider must be %q or %q, got %q", MailProviderSMTP, MailProviderSES, cfg.Mail.Provider)
	}

	if cfg.Mail.FromAddress == "" {
		return fmt.Errorf("mail.from_address is required")
	}
	if cfg.ChangeFeed.Collection == "" {
		return fmt.Errorf("changefeed.collection is required")
	}

	feeds := cfg.ChangeFeed
	if !feeds.Redis.Enabled && !feeds.Zeebe.Enabled && !feeds.HTTP.Enabled {
		return fmt.Errorf("at least one changefeed source must be enabled")
	}
	if feeds.Redis.Enabled {
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when changefeed.redis is enabled")
		}
		if feeds.Redis.Stream == "" || feeds.Redis.Group == "" {
			return fmt.Errorf("changefeed.redis.stream and changefeed.redis.group are required")
		}
	}
	if feeds.Zeebe.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when changefeed.zeebe is enabled")
	}
	return nil
}
