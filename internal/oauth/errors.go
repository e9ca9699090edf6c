package oauth

import "errors"

// ErrAuthorizationDenied is returned when the authorization-code exchange
// fails: the state parameter does not match the pending flow, or the
// provider rejected the code.
var ErrAuthorizationDenied = errors.New("authorization denied")

// ErrReauthorizationRequired is returned when the refresh token is invalid
// or revoked. Recovery requires re-running the interactive setup flow; the
// session layer evicts the affected cache entry before propagating this.
var ErrReauthorizationRequired = errors.New("reauthorization required: run 'atlauth auth setup'")

// ErrNoPendingAuthorization is returned when ExchangeCode is called without
// a preceding Authorize.
var ErrNoPendingAuthorization = errors.New("no authorization flow in progress")
