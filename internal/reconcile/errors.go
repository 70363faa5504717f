package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// NotFoundError reports a named tracker entity that does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s %q", e.Kind, e.Name)
}

// ProtocolError reports a tracker response that breaks an assumption this
// package relies on, such as a search spilling over a single page.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: unexpected tracker response: %s", e.Op, e.Detail)
}

// WriteError reports an edit the tracker accepted but did not fully apply.
type WriteError struct {
	Op       string
	Detail   string
	Response string
}

func (e *WriteError) Error() string {
	if e.Response == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: %s (response: %s)", e.Op, e.Detail, e.Response)
}

// Error kinds used as metric labels.
const (
	KindNotFound = "not_found"
	KindProtocol = "protocol"
	KindWrite    = "write"
	KindTracker  = "tracker"
	KindCanceled = "canceled"
)

// ErrorKind classifies err for metrics. Anything not in the taxonomy is a
// tracker (transport or API) failure.
func ErrorKind(err error) string {
	var (
		nf *NotFoundError
		pe *ProtocolError
		we *WriteError
	)
	switch {
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &pe):
		return KindProtocol
	case errors.As(err, &we):
		return KindWrite
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindTracker
	}
}
