package remote

import (
	"context"
	"errors"
	"net"

	"google.golang.org/api/googleapi"
)

// FailureClass separates "will self-heal" failures from "needs intervention"
// ones. Transient failures are retried and queued; permanent failures skip
// the retry budget because retrying is futile.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureTransient
	FailurePermanent
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrPermanent lets store implementations mark a failure as not worth
// retrying when no HTTP status is available to classify from.
var ErrPermanent = errors.New("permanent remote failure")

// Classify maps an error from a remote write to a failure class.
// Unknown errors classify as transient: the retry budget is bounded, so the
// cost of optimism is three attempts, while misclassifying a flaky network
// as permanent loses the record until the next drain.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrPermanent) {
		return FailurePermanent
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 408 || apiErr.Code == 429:
			return FailureTransient
		case apiErr.Code >= 500:
			return FailureTransient
		default:
			// Remaining 4xx: auth, permission, malformed payload.
			return FailurePermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}

	return FailureTransient
}
