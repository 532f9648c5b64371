package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.vocdoni.io/dvote/log"
)

const (
	// breakerFailures is the number of consecutive upstream outages that opens
	// a breaker.
	breakerFailures = 5
	// breakerCooldown is how long an open breaker rejects calls before letting
	// a trial call through.
	breakerCooldown = 30 * time.Second
)

// ErrCallerGone marks a processor call aborted because the caller went away
// (closed page, aborted fetch) before the adapter timeout fired.
var ErrCallerGone = errors.New("request abandoned by the caller")

// CallerGone wraps err with ErrCallerGone when parent, the context received
// from the caller, is already done. Adapters wrap the result of the upstream
// call with it so the breaker does not count the abort as an outage.
func CallerGone(parent context.Context, err error) error {
	if err == nil || parent.Err() == nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCallerGone, err)
}

// NewBreaker returns a circuit breaker for calls to one processor. Only the
// errors for which isOutage returns true count against the breaker; vendor
// side errors (bad key, unknown subscription) and calls abandoned by the
// caller keep it closed.
func NewBreaker[T any](name string, isOutage func(error) bool) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, ErrCallerGone) || errors.Is(err, context.Canceled) {
				return true
			}
			return !isOutage(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("processor circuit breaker state changed",
				"processor", name, "from", from.String(), "to", to.String())
		},
	})
}
