package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// UpstreamError is the only error type adapters return.
type UpstreamError struct {
	Kind ErrorKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Kind: KindTransient, Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Kind: KindPermanent, Err: err}
}

func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == KindTransient
}

func IsPermanent(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == KindPermanent
}

// Classify wraps err as transient or permanent. Errors that are already
// classified pass through unchanged. Unknown errors default to transient so a
// flaky upstream never marks an address degraded.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}

	lower := strings.ToLower(err.Error())
	for _, token := range permanentMessageTokens {
		if strings.Contains(lower, token) {
			return Permanent(err)
		}
	}
	return Transient(err)
}

// ClassifyHTTPStatus maps an upstream HTTP status to an error kind.
func ClassifyHTTPStatus(code int, err error) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return Transient(err)
	case code >= http.StatusBadRequest:
		return Permanent(err)
	}
	return Transient(err)
}

// ClassifyJSONRPCCode maps a JSON-RPC error code to an error kind.
func ClassifyJSONRPCCode(code int, err error) error {
	switch {
	case code == -32602, code == -32601, code == -32600, code == -32700:
		return Permanent(err)
	case code == -32603, code == -32005:
		return Transient(err)
	case code <= -32000 && code >= -32099:
		return Transient(err)
	}
	return Permanent(err)
}

var permanentMessageTokens = []string{
	"invalid address",
	"invalid argument",
	"invalid params",
	"unauthorized",
	"forbidden",
	"must be authenticated",
	"method not found",
}
