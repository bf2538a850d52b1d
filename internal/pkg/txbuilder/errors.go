package txbuilder

import "errors"

// ErrorKind is the user-displayable taxonomy for assembly failures. Each
// precondition failure maps to exactly one kind; HTTP handlers translate kinds
// to status codes without inspecting messages.
type ErrorKind string

const (
	KindMerchantInactive ErrorKind = "merchant-inactive"
	KindInvalidID        ErrorKind = "invalid-id"
	KindExpired          ErrorKind = "expired"
	KindInvalidState     ErrorKind = "invalid-state"
	KindMissingToken     ErrorKind = "missing-token"
	KindBadStatus        ErrorKind = "bad_status"
	KindInvalidPayer     ErrorKind = "invalid_payer"
	KindTooEarly         ErrorKind = "too_early"
	KindNotFound         ErrorKind = "not-found"
	KindRefundCap        ErrorKind = "refund-cap"
)

// BuildError is a typed precondition failure. Local validation exists only to
// avoid wasting a signature on a doomed call; the chain stays authoritative.
type BuildError struct {
	Kind    ErrorKind
	Message string
}

func (e *BuildError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func newError(kind ErrorKind, message string) *BuildError {
	return &BuildError{Kind: kind, Message: message}
}

// AsBuildError unwraps err into a BuildError when possible.
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
