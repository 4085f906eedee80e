// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/retry"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// DefaultRetryAttempts bounds every optimistic read-modify-write cycle.
const DefaultRetryAttempts = 5

// Options carries the collaborators every handler shares.
type Options struct {
	Clock         timeutil.Clock
	Logger        *logger.Logger
	Publisher     shared.EventPublisher
	RetryAttempts int
	// RetryDelay overrides the first backoff delay. Zero keeps the default;
	// a negative value disables waiting (tests).
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = timeutil.System()
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	if o.Publisher == nil {
		o.Publisher = shared.NopPublisher{}
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	return o
}

func (o Options) retrier() *retry.Retrier {
	r := retry.OptimisticRetrier(o.RetryAttempts, shared.IsConflict)
	switch {
	case o.RetryDelay < 0:
		r = r.With(retry.WithInitialDelay(0))
	case o.RetryDelay > 0:
		r = r.With(retry.WithInitialDelay(o.RetryDelay))
	}
	return r
}

// optimistic runs fn until it stops failing with a concurrency conflict.
// Each run must re-read what it writes. When the budget is spent the caller
// gets shared.ErrTransient; the conflict itself never escapes.
func optimistic(ctx context.Context, r *retry.Retrier, domain, op string, fn func(ctx context.Context) error) error {
	err := r.Do(ctx, fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, retry.ErrExhausted) || shared.IsConflict(err) {
		return shared.NewDomainError(domain, op, shared.ErrTransient,
			fmt.Sprintf("gave up after %d conflicting writes", r.MaxAttempts()))
	}
	return err
}

// publish sends an event and logs delivery failures. Events are
// fire-and-forget.
func publish(log *logger.Logger, p shared.EventPublisher, ev shared.Event) {
	if err := p.Publish(ev); err != nil {
		log.Warn("event publish failed",
			logger.String("event_type", string(ev.EventType())),
			logger.String("aggregate_id", ev.AggregateID()),
			logger.Err(err),
		)
	}
}
