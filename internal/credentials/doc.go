// Package credentials owns credential resolution for atlauth.
//
// Credentials form a tagged union (OAuth, PAT, Basic, HeaderOverride) decided
// exactly once: at configuration load for the process-wide sources, or per
// request for header-derived overrides. All downstream code matches on the
// tag via Credentials.Kind and never re-inspects raw configuration fields.
//
// Two independent entry points exist:
//
//   - Resolve arbitrates configured sources by fixed priority
//     (OAuth > PAT > Basic) and fails with ErrMissingCredentials when no
//     source is structurally complete.
//   - HeaderAuthGate.Admit consumes inbound request headers and yields an
//     ephemeral HeaderOverride credential, subject to the deployment-level
//     IgnoreHeaderAuth kill switch.
//
// No function in this package performs network I/O or logs secret values.
package credentials
