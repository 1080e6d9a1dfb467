package llm

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

var connectionErrnos = []syscall.Errno{
	syscall.ETIMEDOUT,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
}

// IsConnectionError reports whether err looks like a transient network
// failure: a timed-out, refused or reset connection anywhere in the wrap
// chain, or a message mentioning "timeout" or "connection". The substring
// match is case-sensitive and intentionally loose so wrapped provider errors
// are caught too. Malformed errors (e.g. typed nils) report false.
func IsConnectionError(err error) (ok bool) {
	if err == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	for _, errno := range connectionErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection")
}
