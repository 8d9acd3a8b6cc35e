package approvalnotify

import (
	"fmt"
	"time"

	"shop-notifier/internal/common/config"
	"shop-notifier/internal/models"
)

type Config struct {
	Enabled       bool
	JobType       string
	MaxJobsActive int
	Timeout       time.Duration
	// EventTimeout bounds one notification when positive.
	EventTimeout time.Duration
	Collection   string
	FromName     string
	FromAddress  string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		JobType:       DefaultTaskType,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		Collection:    models.DefaultCollection,
		FromName:      DefaultFromName,
	}
}

func (c *Config) Validate() error {
	if c.FromAddress == "" {
		return fmt.Errorf("from_address is required")
	}
	if c.FromName == "" {
		return fmt.Errorf("from_name is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.JobType == "" {
		return fmt.Errorf("job_type is required")
	}
	return nil
}

// ConfigFromAppConfig overlays the application config onto the defaults.
// A non-nil custom config wins outright.
func ConfigFromAppConfig(appCfg *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}

	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}

	if appCfg.Mail.FromName != "" {
		cfg.FromName = appCfg.Mail.FromName
	}
	cfg.FromAddress = appCfg.Mail.FromAddress

	feeds := appCfg.ChangeFeed
	if feeds.Collection != "" {
		cfg.Collection = feeds.Collection
	}
	cfg.EventTimeout = config.GetDuration(feeds.EventTimeout)
	cfg.Enabled = feeds.Zeebe.Enabled
	if feeds.Zeebe.JobType != "" {
		cfg.JobType = feeds.Zeebe.JobType
	}
	if feeds.Zeebe.MaxJobsActive > 0 {
		cfg.MaxJobsActive = feeds.Zeebe.MaxJobsActive
	}
	if feeds.Zeebe.Timeout > 0 {
		cfg.Timeout = config.GetDuration(feeds.Zeebe.Timeout)
	}
	return cfg
}
