package retry

import (
	"context"
	"errors"
	"net"
)

// ErrorClassifier reports whether an error is worth retrying.
type ErrorClassifier interface {
	IsTransient(err error) bool
}

// ClassifierFunc adapts a function to ErrorClassifier.
type ClassifierFunc func(err error) bool

// IsTransient calls f(err).
func (f ClassifierFunc) IsTransient(err error) bool {
	return f(err)
}

// IsNetworkError reports whether err is a network-level failure: a net.Error,
// a dial/read/write *net.OpError or a DNS failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsCanceled reports whether err comes from the caller giving up.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
