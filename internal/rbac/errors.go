package rbac

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated matches denials caused by a missing caller.
	ErrUnauthenticated = errors.New("rbac: not logged in")
	// ErrForbidden matches denials caused by missing roles or permissions.
	ErrForbidden = errors.New("rbac: forbidden")
	// ErrMalformedRoleData is returned when a role's stored permissions cannot be interpreted.
	ErrMalformedRoleData = errors.New("rbac: malformed role permission data")
)

// DenyReason says why a gate rejected the caller.
type DenyReason string

const (
	ReasonNotLoggedIn       DenyReason = "not_logged_in"
	ReasonMissingRole       DenyReason = "missing_role"
	ReasonMissingPermission DenyReason = "missing_permission"
)

// DeniedError is returned by the gate when a caller may not proceed.
type DeniedError struct {
	Reason   DenyReason
	Required []string
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case ReasonNotLoggedIn:
		return "User is not logged in."
	case ReasonMissingRole:
		return "User does not have the right roles. Necessary roles are " + strings.Join(e.Required, ", ")
	default:
		return "User does not have the right permissions. Necessary permissions are " + strings.Join(e.Required, ", ")
	}
}

// Is lets callers match with errors.Is(err, ErrUnauthenticated) or ErrForbidden.
func (e *DeniedError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Reason == ReasonNotLoggedIn
	case ErrForbidden:
		return e.Reason != ReasonNotLoggedIn
	}
	return false
}

func notLoggedIn(required []string) error {
	return &DeniedError{Reason: ReasonNotLoggedIn, Required: required}
}

func missingRole(required []string) error {
	return &DeniedError{Reason: ReasonMissingRole, Required: required}
}

func missingPermission(required []string) error {
	return &DeniedError{Reason: ReasonMissingPermission, Required: required}
}
