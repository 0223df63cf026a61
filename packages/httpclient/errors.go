package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"syscall"
)

// ErrorCode is the machine-readable transport failure reason.
type ErrorCode string

const (
	ErrDNS               ErrorCode = "dns_error"
	ErrConnectionRefused ErrorCode = "connection_refused"
	ErrConnectionReset   ErrorCode = "connection_reset"
	ErrTimeout           ErrorCode = "timeout"
	ErrTLS               ErrorCode = "tls_error"
	ErrNetwork           ErrorCode = "network_error"
)

// TransportError wraps a network-level failure with a stable code and a
// human-readable message.
type TransportError struct {
	Code ErrorCode
	Msg  string
	err  error
}

func (e *TransportError) Error() string {
	return e.Msg
}

func (e *TransportError) Unwrap() error {
	return e.err
}

// Classify maps a transport failure to its taxonomy entry. HTTP
// responses never reach here; only errors from the network stack do.
func Classify(err error) *TransportError {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return &TransportError{Code: ErrTimeout, Msg: "DNS lookup timed out: " + dnsErr.Name, err: err}
		}
		return &TransportError{Code: ErrDNS, Msg: "could not resolve host: " + dnsErr.Name, err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &TransportError{Code: ErrTimeout, Msg: "request timed out", err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Code: ErrTimeout, Msg: "request timed out", err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &TransportError{Code: ErrConnectionRefused, Msg: "connection refused", err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return &TransportError{Code: ErrConnectionReset, Msg: "connection reset by peer", err: err}
	}

	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return &TransportError{Code: ErrTLS, Msg: "TLS handshake failed: " + err.Error(), err: err}
	}

	return &TransportError{Code: ErrNetwork, Msg: "network error: " + err.Error(), err: err}
}
