package upstream

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pysugar/checkin-nexus/internal/checkin"
)

const (
	DefaultSigninRetryDelay = 3 * time.Second
	maxRetryAfter           = 30 * time.Second
)

// Policy is a bounded, declarative retry rule. Only errors the policy names
// are retried; everything else is returned after the first attempt.
type Policy struct {
	MaxAttempts    uint
	Delay          time.Duration
	RetryTransport bool
	RetryCodes     []int
}

// SigninPolicy is the rule for sign-in submission: one delayed retry on
// transport failures and on the given application codes.
func SigninPolicy(delay time.Duration, codes []int) Policy {
	if delay <= 0 {
		delay = DefaultSigninRetryDelay
	}
	return Policy{
		MaxAttempts:    2,
		Delay:          delay,
		RetryTransport: true,
		RetryCodes:     append([]int(nil), codes...),
	}
}

// Retryable reports whether err may be retried under p.
func (p Policy) Retryable(err error) bool {
	var ce *checkin.Error
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Kind {
	case checkin.KindTransport:
		return p.RetryTransport
	case checkin.KindUpstreamApplication:
		for _, code := range p.RetryCodes {
			if code == ce.Code {
				return true
			}
		}
	}
	return false
}

// Retry runs op under policy p and returns the last error op produced.
func Retry[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var last error
	tries := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		tries++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err
		if !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		if d := retryAfter(err); d > 0 {
			return v, errors.Join(err, backoff.RetryAfter(int(math.Ceil(d.Seconds()))))
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("🔄 %s: attempt %d failed, retrying in %s: %v", name, tries, next, last)
		}),
	)
	if err != nil && last != nil {
		return result, last
	}
	return result, err
}

func retryAfter(err error) time.Duration {
	var ce *checkin.Error
	if !errors.As(err, &ce) || ce.RetryAfter <= 0 {
		return 0
	}
	return min(ce.RetryAfter, maxRetryAfter)
}
