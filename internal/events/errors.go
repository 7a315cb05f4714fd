package events

import "fmt"

// Code is a machine-readable event-subsystem error code.
type Code string

const (
	CodeSubscriptionNotFound Code = "SUBSCRIPTION_NOT_FOUND"
	CodeInsufficientScope    Code = "INSUFFICIENT_SCOPE"
	CodeInvalidWebhookURL    Code = "INVALID_WEBHOOK_URL"
)

// Error is the typed error surfaced by subscription operations. Dispatch
// failures never use this type — they are recorded in the ledger instead,
// per spec §7 ("the dispatcher never propagates webhook HTTP errors").
type Error struct {
	code    Code
	message string
}

func (e *Error) Error() string { return e.message }
func (e *Error) Code() Code    { return e.code }

func newErr(c Code, format string, args ...interface{}) *Error {
	return &Error{code: c, message: fmt.Sprintf(format, args...)}
}
