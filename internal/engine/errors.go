package engine

import (
	"errors"
	"fmt"

	"github.com/harrison/maestro/internal/state"
)

// ErrTaskRequired is returned by Start when the task prompt is empty.
var ErrTaskRequired = errors.New("task prompt is required")

// StopError reports that a run halted for a reason the operator should act
// on: a circuit breaker trip, a double stall, or cancellation. Successful
// stops (no_more_work, max_cycles_reached, cost_limit_reached) return nil
// from Start and Resume; the stop reason is on the persisted state either
// way.
type StopError struct {
	RunID  string
	Reason state.StopReason
}

func (e *StopError) Error() string {
	return fmt.Sprintf("run %s stopped: %s", e.RunID, e.Reason)
}

// IsStop checks if an error is a StopError and returns its stop reason.
func IsStop(err error) (state.StopReason, bool) {
	var target *StopError
	if errors.As(err, &target) {
		return target.Reason, true
	}
	return "", false
}

// stopFailure reports whether a stop reason warrants a StopError. Limit
// stops and a clean no_more_work are boundaries, not failures.
func stopFailure(r state.StopReason) bool {
	switch r {
	case state.StopRepeatedError, state.StopTestOnlyLoop, state.StopStagnation,
		state.StopStalled, state.StopCancelled:
		return true
	}
	return false
}
