package vbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
)

// Invoker runs the hypervisor control tool as a child process and exposes
// invoke(arguments, timeout) -> (exit_code, combined_output). Every CLI-as-API operation in this package is built as a
// (command, parser) pair around a single Invoker method rather than
// ad hoc exec.Command calls.
type Invoker struct {
	binary      string
	ensureAlive func(ctx context.Context) error // sandbox-only service liveness check
}

// NewInvoker creates an Invoker for the given VBoxManage-equivalent binary.
// ensureAlive may be nil; when set it is called before every invocation to
// guarantee the hypervisor service daemon is reachable under a sandboxed
// account context.
func NewInvoker(binary string, ensureAlive func(ctx context.Context) error) *Invoker {
	if binary == "" {
		binary = "VBoxManage"
	}
	return &Invoker{binary: binary, ensureAlive: ensureAlive}
}

// Invoke runs "<binary> -q <arguments...>", capturing combined
// stdout+stderr. timeout == 0 waits indefinitely. Output is normalized by
// stripping carriage returns. The returned exit code is the hypervisor's
// own (0x...) code scraped from the output when present; otherwise it is
// 0, and a nonzero process exit with no recognizable token is reported as
// a KindFopen (ERR_FOPEN) error.
func (inv *Invoker) Invoke(ctx context.Context, op string, args []string, timeout time.Duration) (int, string, error) {
	if inv.ensureAlive != nil {
		if err := inv.ensureAlive(ctx); err != nil {
			return 0, "", fmt.Errorf("%s: hypervisor service unreachable: %w", op, err)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fullArgs := append([]string{"-q"}, args...)
	cmd := exec.CommandContext(runCtx, inv.binary, fullArgs...) //nolint:gosec // args are supervisor-built CLI tokens
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := normalizeOutput(buf.String())

	if runCtx.Err() != nil && timeout > 0 {
		log.WithFunc("vbox.invoke").Warnf(ctx, "%s timed out after %s: %s", op, timeout, inv.binary)
		return 0, output, newErr(KindTimeout, op, 0, "timed out after %s", timeout)
	}

	if code, ok := extractExitCode(output); ok {
		if code != 0 {
			return code, output, newErr(KindExec, op, code, "%s", firstLine(output))
		}
		return 0, output, nil
	}

	if err != nil {
		return 0, output, newErr(KindFopen, op, 0, "%v: %s", err, firstLine(output))
	}
	return 0, output, nil
}

func normalizeOutput(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// IsSessionLocked reports whether err was raised for the hypervisor's
// "session locked by another management application" condition.
func IsSessionLocked(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == sessionLockCode
}
