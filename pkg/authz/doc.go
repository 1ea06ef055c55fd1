// Package authz implements the Boardwalk authorization engine: role-based
// permissions combined with resource-level rules, mandatory tenant
// isolation, and a tiered permission cache kept consistent with role
// changes.
//
// # Overview
//
// The engine answers one question, thousands of times per second: may this
// identity exercise this permission, possibly against this resource? The
// identity arrives pre-verified from the authentication layer; resource
// metadata arrives from the calling service. The engine does no I/O of its
// own on the decision path.
//
// # Components
//
//  1. Permission model: "resource:action" tokens with wildcard patterns
//     ("task:*", "*:*") and a static role table mapping role names to
//     pattern sets (permission.go).
//  2. Rule chain: tenant isolation, ownership, and project membership rules
//     composed with AND-short-circuit-deny semantics (rules.go).
//  3. Permission cache: an in-memory expirable-LRU tier, optionally layered
//     under a shared Redis tier with pub/sub invalidation fan-out
//     (cache.go, rediscache.go).
//  4. Engine facade: Authorize, ReloadRoleTable, InvalidateUser, and
//     asynchronous decision-event emission for the audit collaborator
//     (service.go).
//
// # Decision flow
//
// Authorize validates the permission format (malformed input is an error,
// never a denial), resolves the identity's permission set through the cache
// tiers, and short-circuits with "permission_not_granted" when no pattern
// matches, so resource-level rules never leak resource existence to
// unauthorized roles. With a nil resource the role check alone decides.
// Otherwise the rule chain runs and the first Deny produces a
// "<RuleName>_denied" reason.
//
// # Fail-secure
//
// Unknown roles resolve to the empty permission set. Cache trouble degrades
// to direct role-table resolution. Audit emission never blocks or vetoes a
// decision. The only error surfaced to callers is a malformed permission
// string.
package authz
