package vbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
)

// RetryPolicy is the exponential backoff schedule the Retry Controller
// applies around an Invoker call when the hypervisor reports its session
// lock code. BaseInterval doubles on each attempt, capped at MaxInterval.
type RetryPolicy struct {
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultRetryPolicy returns the 5-attempt, 1s-doubling-to-30s policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,                //nolint:mnd
		BaseInterval: time.Second,
		MaxInterval:  30 * time.Second, //nolint:mnd
	}
}

// RetryingInvoker wraps an Invoker, retrying calls that fail with the
// hypervisor's session-lock code and accumulating an operator-facing note
// describing what happened across attempts.
type RetryingInvoker struct {
	inv    *Invoker
	policy RetryPolicy
}

func NewRetryingInvoker(inv *Invoker, policy RetryPolicy) *RetryingInvoker {
	return &RetryingInvoker{inv: inv, policy: policy}
}

// sessionLockNote is appended, once per attempt that hit the lock, to the operator
// note accumulated across a retry run; it's the same wording VBoxManage
// itself prints when a concurrent management app holds the session lock.
const sessionLockNote = "Another VirtualBox management application has locked the session for a running VM"

// Invoke retries op under the session-lock condition only; any other
// failure (including timeout) is returned immediately to the caller
// without a retry. When logError is true, final failure
// after exhausting retries is logged with the arguments, error code,
// output, and the accumulated session-lock note.
func (r *RetryingInvoker) Invoke(ctx context.Context, op string, args []string, timeout time.Duration, logError bool) (int, string, error) {
	logger := log.WithFunc("vbox.retry")
	var lastErr error
	var lastOutput string
	var lastCode int
	var note strings.Builder
	interval := r.policy.BaseInterval

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		code, output, err := r.inv.Invoke(ctx, op, args, timeout)
		if err == nil {
			return code, output, nil
		}
		lastErr = err
		lastOutput = output
		lastCode = code

		if !IsSessionLocked(err) {
			return code, output, err
		}

		fmt.Fprintf(&note, "%s (attempt %d/%d); ", sessionLockNote, attempt, r.policy.MaxAttempts)

		if attempt == r.policy.MaxAttempts {
			break
		}

		logger.Warnf(ctx, "%s: session locked, retry %d/%d in %s", op, attempt, r.policy.MaxAttempts, interval)
		select {
		case <-ctx.Done():
			return code, output, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2 //nolint:mnd
		if interval > r.policy.MaxInterval {
			interval = r.policy.MaxInterval
		}
	}

	finalErr := fmt.Errorf("%s: giving up after %d attempts (args: %s; code: 0x%x; output: %s; %s): %w",
		op, r.policy.MaxAttempts, strings.Join(args, " "), lastCode, strings.TrimSpace(lastOutput), strings.TrimSpace(note.String()), lastErr)

	if logError {
		logger.Errorf(ctx, finalErr, "%v", finalErr)
	}

	return 0, lastOutput, finalErr
}
