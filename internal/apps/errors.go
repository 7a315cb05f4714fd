package apps

import "fmt"

// Code is a machine-readable lifecycle/error code, matched programmatically
// by callers rather than by string comparison against Error().
type Code string

const (
	CodeManifestInvalid       Code = "MANIFEST_INVALID"
	CodeDuplicateAppID        Code = "DUPLICATE_APP_ID"
	CodeAppNotFound           Code = "APP_NOT_FOUND"
	CodeInstallationNotFound  Code = "INSTALLATION_NOT_FOUND"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeScopeNotInManifest    Code = "SCOPE_NOT_IN_MANIFEST"
	CodeInstallationExists    Code = "INSTALLATION_EXISTS"
)

// Error is the typed lifecycle error surfaced to callers. Never compare by
// Error() string — switch on Code().
type Error struct {
	code    Code
	message string
}

func (e *Error) Error() string { return e.message }

// Code returns the machine-readable error code.
func (e *Error) Code() Code { return e.code }

func newErr(c Code, format string, args ...interface{}) *Error {
	return &Error{code: c, message: fmt.Sprintf(format, args...)}
}
