package session

import (
	"fmt"

	"atlauth/internal/credentials"
	"atlauth/internal/instance"
)

// UnsupportedCombinationError is returned when a credential variant and
// instance kind have no entry in the scheme mapping, or a required field for
// the combination is missing. It names only kinds, never credential values.
type UnsupportedCombinationError struct {
	CredentialKind credentials.Kind
	InstanceKind   instance.Kind
	Reason         string
}

// Error implements the error interface.
func (e *UnsupportedCombinationError) Error() string {
	msg := fmt.Sprintf("unsupported combination: %s credentials with %s instance",
		e.CredentialKind, e.InstanceKind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
