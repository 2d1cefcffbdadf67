package vbox

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Kind classifies a supervisor error into one of a small fixed set of
// categories the outer wrapper reacts to differently.
type Kind int

const (
	// KindExec: guest state mismatch — start/stop did not take effect
	// within its budget. The outer wrapper treats this as abort.
	KindExec Kind = iota
	// KindTimeout: a CLI call did not return before its deadline.
	KindTimeout
	// KindNotFound: a missing external resource (log file, process id).
	// Non-fatal for the probe that raised it.
	KindNotFound
	// KindFopen: CLI spawn/pipe failure, or a nonzero exit with no
	// recognizable (0x...) code embedded in the output.
	KindFopen
	// KindBind: port bind failure for remote desktop (fatal for that
	// feature; port-forward falls back to a random port instead).
	KindBind
	// KindFwrite: floppy image creation failure, fatal for the job.
	KindFwrite
	// KindRegisterOnly: distinguished exit signalling "job done after
	// registration" to the outer wrapper.
	KindRegisterOnly
)

func (k Kind) String() string {
	switch k {
	case KindExec:
		return "ERR_EXEC"
	case KindTimeout:
		return "ERR_TIMEOUT"
	case KindNotFound:
		return "ERR_NOT_FOUND"
	case KindFopen:
		return "ERR_FOPEN"
	case KindBind:
		return "ERR_BIND"
	case KindFwrite:
		return "ERR_FWRITE"
	case KindRegisterOnly:
		return "ERR_REGISTER_ONLY"
	default:
		return "ERR_UNKNOWN"
	}
}

// Error carries a symbolic Kind and, for CLI-originated failures, the
// numeric hypervisor exit code extracted from the invocation's output.
type Error struct {
	Kind    Kind
	Code    int // hypervisor (0x...) code; 0 when not CLI-originated
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (0x%x): %s", e.Op, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Is makes errors.Is(err, ErrRegisterOnly) etc. work against Kind sentinels
// declared below, matching on Kind alone.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

func newErr(kind Kind, op string, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Sentinel values for errors.Is comparisons against a specific Kind,
// ignoring Op/Message/Code.
var (
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrExec         = &Error{Kind: KindExec}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrFopen        = &Error{Kind: KindFopen}
	ErrBind         = &Error{Kind: KindBind}
	ErrFwrite       = &Error{Kind: KindFwrite}
	ErrRegisterOnly = &Error{Kind: KindRegisterOnly}
)

// exitCodePattern matches the first "(0x...)" hex token in CLI output.
var exitCodePattern = regexp.MustCompile(`\(0x([0-9A-Fa-f]+)\)`)

// extractExitCode scans output for the first (0x...) token and returns its
// value. The second return is false when no such token is present.
func extractExitCode(output string) (int, bool) {
	m := exitCodePattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	code, err := strconv.ParseInt(m[1], 16, 64) //nolint:mnd
	if err != nil {
		return 0, false
	}
	return int(code), true
}

// sessionLockCode is the hypervisor's "session locked by another
// management application" code.
const sessionLockCode = 0x80bb0007
