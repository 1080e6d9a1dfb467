package llm

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline hit" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type panicErr struct{}

func (*panicErr) Error() string { panic("broken error value") }

func TestIsConnectionError(t *testing.T) {
	var typedNil *panicErr

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"reset", syscall.ECONNRESET, true},
		{"refused wrapped in OpError", &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, true},
		{"timed out errno", fmt.Errorf("read: %w", syscall.ETIMEDOUT), true},
		{"net timeout", timeoutErr{}, true},
		{"message mentions timeout", errors.New("gateway timeout while reading"), true},
		{"message mentions connection", errors.New("lost connection to peer"), true},
		{"case sensitive", errors.New("Connection Timeout"), false},
		{"transport wrapper", &TransportError{Provider: "OpenClaw", Err: syscall.ECONNRESET}, true},
		{"provider error", &ProviderError{Provider: "OpenClaw", Message: "invalid model"}, false},
		{"malformed json", errors.New("unexpected end of JSON input"), false},
		{"ill-formed error value", typedNil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}
