// Package retry wraps the outbound HTTP calls in exponential backoff.
// Transient network failures and retryable status codes get another attempt;
// everything else surfaces immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
	Multiplier      float64
}

func DefaultConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

// HTTPConfig is the backoff used by the LLM, embedding, and entailment
// clients.
func HTTPConfig() BackoffConfig {
	return DefaultConfig()
}

// IsRetryableError reports whether err is a transient transport failure.
// Context cancellation and NXDOMAIN are terminal.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE} {
			if errors.Is(opErr.Err, errno) {
				return true
			}
		}
	}
	return false
}

// IsRetryableHTTPStatus reports whether a status code is worth another
// attempt: 429, 408, and the 5xx range.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return true
	case statusCode == http.StatusRequestTimeout:
		return true
	case statusCode >= 500 && statusCode < 600:
		return true
	}
	return false
}

// WithBackoff retries fn on transient errors with exponential backoff.
func WithBackoff(ctx context.Context, cfg BackoffConfig, fn func() error) error {
	var lastErr error
	interval := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryableError(err) {
			return fmt.Errorf("non-retryable error on attempt %d: %w", attempt+1, err)
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if err := sleep(ctx, &interval, cfg); err != nil {
			return err
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// WithBackoffHTTP retries fn while it returns a transient error or a
// retryable status code. fn reports the response status alongside its error.
func WithBackoffHTTP(ctx context.Context, cfg BackoffConfig, fn func() (int, error)) error {
	var lastErr error
	var lastStatus int
	interval := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		statusCode, err := fn()
		lastStatus = statusCode
		lastErr = err

		if err == nil && statusCode >= 200 && statusCode < 300 {
			return nil
		}

		retryable := IsRetryableError(err)
		if err == nil && statusCode > 0 {
			retryable = IsRetryableHTTPStatus(statusCode)
		}
		if !retryable {
			if err != nil {
				return fmt.Errorf("non-retryable error on attempt %d (status %d): %w", attempt+1, statusCode, err)
			}
			return fmt.Errorf("non-retryable status code %d on attempt %d", statusCode, attempt+1)
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if err := sleep(ctx, &interval, cfg); err != nil {
			return err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("max retries (%d) exceeded (status %d): %w", cfg.MaxRetries, lastStatus, lastErr)
	}
	return fmt.Errorf("max retries (%d) exceeded with status code %d", cfg.MaxRetries, lastStatus)
}

// sleep waits one backoff interval, then grows it toward MaxInterval.
func sleep(ctx context.Context, interval *time.Duration, cfg BackoffConfig) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(*interval):
	}
	next := time.Duration(float64(*interval) * cfg.Multiplier)
	if next > cfg.MaxInterval {
		next = cfg.MaxInterval
	}
	*interval = next
	return nil
}
