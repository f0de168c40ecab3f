package retry

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/on-the-ground/wrapkit/fault"
)

// IsTransient is the default classifier of Resilient. It accepts errors
// marked with fault.Transient, network timeouts (including an attempt's own
// deadline), connection-level failures and truncated reads.
//
// A *net.OpError is transient unless its cause can never succeed on retry:
// an unknown network, a malformed address, or a DNS answer that is neither
// a timeout nor temporary (such as "no such host").
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if fault.IsTransient(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return !permanentNetCause(opErr.Err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTimeout || dnsErr.IsTemporary) {
		return true
	}

	for _, target := range []error{
		os.ErrDeadlineExceeded,
		io.ErrUnexpectedEOF,
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		syscall.ECONNABORTED,
		syscall.ETIMEDOUT,
		syscall.EPIPE,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func permanentNetCause(err error) bool {
	if err == nil {
		return false
	}
	var (
		dnsErr     *net.DNSError
		addrErr    *net.AddrError
		parseErr   *net.ParseError
		unknownNet net.UnknownNetworkError
		invalidErr net.InvalidAddrError
	)
	switch {
	case errors.As(err, &dnsErr):
		return !dnsErr.IsTimeout && !dnsErr.IsTemporary
	case errors.As(err, &addrErr), errors.As(err, &parseErr),
		errors.As(err, &unknownNet), errors.As(err, &invalidErr):
		return true
	}
	return false
}
