package resilience

import (
	"time"
)

// FromBulkConfig converts bulk audit config values to a RetryConfig.
// Negative retries collapse to zero; a non-positive delay means no wait.
func FromBulkConfig(retryAttempts, retryDelayMS int) RetryConfig {
	cfg := DefaultRetryConfig()
	if retryAttempts >= 0 {
		cfg.Retries = retryAttempts
	}
	if retryDelayMS >= 0 {
		cfg.Delay = time.Duration(retryDelayMS) * time.Millisecond
	}
	return cfg
}
