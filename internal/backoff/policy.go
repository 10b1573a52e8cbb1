// Package backoff retries fallible side effects under a bounded policy.
package backoff

import (
	"errors"
	"math"
	"time"
)

// ErrRetriesExhausted is returned by a policy when the maximum number of
// retries has been reached.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy decides how long to wait before the next retry.
type RetryPolicy interface {
	// ComputeNextInterval computes the wait before retry number
	// retryCount+1, or an error when no more retries should be attempted.
	ComputeNextInterval(retryCount int, elapsed time.Duration, err error) (time.Duration, error)
}

const (
	defaultBackoffFactor = 2.0
	defaultMaxInterval   = 10 * time.Second
)

// ExponentialBackoffPolicy grows the interval by BackoffFactor after each
// retry, capped at MaxInterval.
type ExponentialBackoffPolicy struct {
	// InitialInterval is the interval before the first retry.
	InitialInterval time.Duration
	// BackoffFactor is the factor by which the interval increases after each retry.
	BackoffFactor float64
	// MaxInterval is the cap for the computed interval.
	MaxInterval time.Duration
	// MaxRetries is the maximum number of retries. 0 means unlimited.
	MaxRetries int
}

// NewExponentialBackoffPolicy returns an exponential policy with the
// default factor (2.0) and interval cap (10s) and unlimited retries.
func NewExponentialBackoffPolicy(initialInterval time.Duration) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		InitialInterval: initialInterval,
		BackoffFactor:   defaultBackoffFactor,
		MaxInterval:     defaultMaxInterval,
	}
}

// ComputeNextInterval implements RetryPolicy.
func (p *ExponentialBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}

	interval := float64(p.InitialInterval) * math.Pow(p.BackoffFactor, float64(retryCount))
	if interval > float64(p.MaxInterval) {
		interval = float64(p.MaxInterval)
	}

	return time.Duration(interval), nil
}

// ConstantBackoffPolicy waits the same interval between retries.
type ConstantBackoffPolicy struct {
	// Interval is the constant interval between retries.
	Interval time.Duration
	// MaxRetries is the maximum number of retries. 0 means unlimited.
	MaxRetries int
}

// NewConstantBackoffPolicy returns a constant policy with unlimited retries.
func NewConstantBackoffPolicy(interval time.Duration) *ConstantBackoffPolicy {
	return &ConstantBackoffPolicy{Interval: interval}
}

// ComputeNextInterval implements RetryPolicy.
func (p *ConstantBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	return p.Interval, nil
}
