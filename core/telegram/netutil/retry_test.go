package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("telegram: Bad Request (400)")},
		{name: "canceled", err: context.Canceled},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("no route")}, want: true},
		{name: "reset", err: &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, want: true},
		{name: "url timeout", err: &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: os.ErrDeadlineExceeded}, want: true},
		{name: "unexpected eof", err: fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), want: true},
		{name: "dns not found", err: &net.DNSError{Err: "no such host", Name: "api.telegram.org", IsNotFound: true}},
		{name: "dns temporary", err: &net.DNSError{Err: "server misbehaving", Name: "api.telegram.org", IsTemporary: true}, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRetry(tc.err); got != tc.want {
				t.Fatalf("ShouldRetry(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
