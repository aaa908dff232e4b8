package scanning

import (
	"fmt"
	"time"
)

// Default acquisition policy values
const (
	DefaultRequiredReads     = 10
	DefaultMaxConnectRetries = 5
	DefaultRetryDelay        = time.Second
	DefaultMaxReadFailures   = 3
)

// Policy bounds a single acquisition
type Policy struct {
	// RequiredReads is the number of frames with a non-empty decode needed before
	// the consensus is computed.
	RequiredReads int
	// MaxConnectRetries is how many times Open is retried after the first failure.
	MaxConnectRetries int
	// RetryDelay is the fixed wait between connect attempts.
	RetryDelay time.Duration
	// MaxReadFailures is how many consecutive failed reads are tolerated.
	MaxReadFailures int
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		RequiredReads:     DefaultRequiredReads,
		MaxConnectRetries: DefaultMaxConnectRetries,
		RetryDelay:        DefaultRetryDelay,
		MaxReadFailures:   DefaultMaxReadFailures,
	}
}

// Validate checks the policy bounds
func (p Policy) Validate() error {
	if p.RequiredReads < 1 {
		return fmt.Errorf("required reads must be at least 1, got %d", p.RequiredReads)
	}
	if p.MaxConnectRetries < 0 {
		return fmt.Errorf("max connect retries cannot be negative, got %d", p.MaxConnectRetries)
	}
	if p.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %s", p.RetryDelay)
	}
	if p.MaxReadFailures < 0 {
		return fmt.Errorf("max read failures cannot be negative, got %d", p.MaxReadFailures)
	}
	return nil
}

// MaxConnectWait is the longest time Acquire spends waiting between connect attempts
func (p Policy) MaxConnectWait() time.Duration {
	return time.Duration(p.MaxConnectRetries) * p.RetryDelay
}
