// internal/engine/errors.go
package engine

import "fmt"

// RejectionCode identifies why a move was refused. Rejections are always
// recoverable: state is unchanged and only the acting client sees them.
type RejectionCode string

const (
	RejectNotYourTurn       RejectionCode = "NotYourTurn"
	RejectWrongPhase        RejectionCode = "WrongPhase"
	RejectUnknownCard       RejectionCode = "UnknownCard"
	RejectInvalidCaptureSum RejectionCode = "InvalidCaptureSum"
	RejectInvalidBuild      RejectionCode = "InvalidBuild"
	RejectDeadBuild         RejectionCode = "DeadBuild"
	RejectDeadCardRequired  RejectionCode = "DeadCardRequired"
)

// Rejection is the structured validation error returned to the initiating
// client. It satisfies error so the room pipeline can pass it through.
type Rejection struct {
	Code    RejectionCode `json:"code"`
	Message string        `json:"message"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func reject(code RejectionCode, format string, args ...interface{}) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvariantError reports an unrecoverable internal inconsistency, e.g. the
// 52-card conservation total breaking. The room must be aborted rather than
// allowed to continue with corrupted state.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}
