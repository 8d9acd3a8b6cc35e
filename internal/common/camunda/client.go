// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-notifier/internal/common/config"
	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

const sourceName = "zeebe"

// RetryConfig defines how Connect retries an unreachable broker.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 10,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

// Connect creates a Zeebe client and waits until the gateway answers a
// topology request. Transient failures are retried with exponential backoff.
func Connect(ctx context.Context, cfg config.CamundaConfig, retry RetryConfig, log logger.Logger) (zbc.Client, error) {
	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.Plaintext,
	})
	if err != nil {
		return nil, errors.NewSourceUnavailableError(sourceName, fmt.Errorf("create client: %w", err))
	}

	delay := retry.BaseDelay
	for attempt := 0; ; attempt++ {
		err = HealthCheck(ctx, client)
		if err == nil {
			return client, nil
		}
		if !isRetryableZeebeError(err) || attempt >= retry.MaxRetries {
			_ = client.Close()
			return nil, errors.NewSourceUnavailableError(sourceName,
				fmt.Errorf("gateway %s unreachable after %d attempts: %w", cfg.BrokerAddress, attempt+1, err))
		}

		log.Warn("zeebe gateway not ready, retrying", map[string]interface{}{
			"gateway":     cfg.BrokerAddress,
			"attempt":     attempt + 1,
			"maxRetries":  retry.MaxRetries,
			"nextRetryIn": delay.String(),
			"error":       err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			_ = client.Close()
			return nil, errors.NewSourceUnavailableError(sourceName, ctx.Err())
		}

		delay *= 2
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}
}

// HealthCheck asks the gateway for its topology.
func HealthCheck(ctx context.Context, client zbc.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
