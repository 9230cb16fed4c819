package resilience

import "time"

// RetryAttempts returns the default policy with the given attempt count.
func RetryAttempts(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	return cfg
}

// FromCircuitConfig builds a named breaker config from config values.
func FromCircuitConfig(name string, failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	cfg.Name = name
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
