// Package tenantauth is a multi-tenant authentication and authorization
// core: typed JWT access tokens, rotating refresh tokens, per-organisation
// TOTP enforcement, and plan-aware permission resolution over a Redis
// cache.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tenantauth is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (LoginResult, Session, MetricsSnapshot).
// Internal coordination (refresh records, provisioning secrets, lockout
// and resend limiters) lives under internal/ and is never exported.
// Persistence of identities, memberships, and permission grants belongs
// to the host application behind [CredentialStore]; tenantauth never
// owns a relational schema.
//
// # Trust model
//
// Access-token verification is stateless: signature, expiry, declared
// type, and environment tag. Everything security-critical beyond that,
// including membership status and group and plan grants, is resolved at
// permission-check time, with the membership status always read from the
// store so a deactivated membership is denied even while cached group
// data for it still exists.
package tenantauth
