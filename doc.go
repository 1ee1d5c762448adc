// Package authcore implements the token lifecycle and abuse-protection core
// of a multi-role authentication service: JWT access/refresh issuance,
// verification, rotation and revocation, plus the fixed-window rate limiting
// and brute-force lockout counters that gate every sensitive flow.
//
// All shared mutable state (counters, the revocation set, per-user active
// refresh-token sets) lives in Redis; Engine methods are safe to call from
// multiple goroutines after initialization through [Builder.Build]. User
// records, outbound mail, and OAuth2 provider handshakes are external
// collaborators supplied as interfaces ([RoleStore], [Notifier],
// [IdentityProvider]).
package authcore
