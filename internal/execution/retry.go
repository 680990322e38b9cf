// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/metrics"
)

const (
	defaultMaxAttempts    = 5
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 60 * time.Second
)

// RetryPolicy wraps a single step-call with bounded exponential backoff.
// Only rate-limit-class failures are retried; everything else, and context
// cancellation, surfaces immediately with the original error.
type RetryPolicy struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	return p
}

// Invoke runs call under the policy. The backoff sleeps block only the
// calling worker, never its siblings.
func (p RetryPolicy) Invoke(ctx context.Context, call func() (StepOutcome, error)) (StepOutcome, error) {
	p = p.withDefaults()

	return retry.DoWithData(
		call,
		retry.Context(ctx),
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.InitialBackoff),
		retry.MaxDelay(p.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrRateLimited)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			metrics.IncStepRetries()
		}),
		retry.LastErrorOnly(true),
	)
}
