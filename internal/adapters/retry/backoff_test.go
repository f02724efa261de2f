package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"connection refused", &net.OpError{Err: syscall.ECONNREFUSED}, true},
		{"connection reset", &net.OpError{Err: syscall.ECONNRESET}, true},
		{"broken pipe", &net.OpError{Err: syscall.EPIPE}, true},
		{"nxdomain", &net.DNSError{IsNotFound: true}, false},
		{"dns timeout", &net.DNSError{IsTimeout: true}, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for status, want := range map[int]bool{
		200: false,
		400: false,
		404: false,
		408: true,
		429: true,
		500: true,
		503: true,
	} {
		if got := IsRetryableHTTPStatus(status); got != want {
			t.Errorf("IsRetryableHTTPStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestWithBackoffRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return &net.OpError{Err: syscall.ECONNREFUSED}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoffStopsOnTerminalError(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return errors.New("bad request")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoffExhaustsRetries(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return &net.OpError{Err: syscall.ECONNRESET}
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", attempts)
	}
}

func TestWithBackoffHTTPRetriesServerErrors(t *testing.T) {
	attempts := 0
	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 503, nil
		}
		return 200, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithBackoffHTTPStopsOnClientError(t *testing.T) {
	attempts := 0
	err := WithBackoffHTTP(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		return 400, nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, fastConfig(), func() error {
		return &net.OpError{Err: syscall.ECONNREFUSED}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
