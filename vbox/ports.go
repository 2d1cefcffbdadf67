package vbox

import (
	"fmt"
	"net"
)

// AllocatePort binds a loopback TCP socket to preferredPort (or to an
// ephemeral port when preferredPort is 0, or when binding preferredPort
// fails), reads back the assigned port, and releases the socket. The short
// window between release and the hypervisor's own bind is an accepted
// race with no higher-level reservation.
// AllocatePort tries preferredPort first, falling back to an ephemeral
// port chosen by the OS. If even the ephemeral bind fails, the error is
// wrapped as a KindBind *Error so callers can match it with errors.Is.
func AllocatePort(preferredPort int) (int, error) {
	if preferredPort != 0 {
		if port, err := bindAndRelease(preferredPort); err == nil {
			return port, nil
		}
	}
	port, err := bindAndRelease(0)
	if err != nil {
		return 0, newErr(KindBind, "allocate_port", 0, "%v", err)
	}
	return port, nil
}

func bindAndRelease(port int) (int, error) {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return 0, err
	}
	defer l.Close() //nolint:errcheck

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", l.Addr())
	}
	return addr.Port, nil
}
