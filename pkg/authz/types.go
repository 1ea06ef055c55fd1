package authz

import (
	"time"
)

// Identity is the verified caller identity supplied by the authentication
// layer. The engine trusts it as-is and never re-verifies credentials.
type Identity struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Resource is the descriptor of the resource an authorization decision is
// about, as supplied by the calling service. Every field is optional; an
// absent field is a meaningful state (the corresponding rule does not apply),
// not an error. The engine only reads these fields, it never mutates them.
type Resource struct {
	// Ref is an opaque reference for audit events (e.g. "task/42").
	Ref string `json:"ref,omitempty"`

	TenantID *string `json:"tenant_id,omitempty"`

	// Owner-like fields, checked in this priority order by the ownership
	// rule: OwnerID, CreatedBy, AuthorID. The first present field wins.
	OwnerID   *string `json:"owner_id,omitempty"`
	CreatedBy *string `json:"created_by,omitempty"`
	AuthorID  *string `json:"author_id,omitempty"`

	// ProjectMemberIDs, when non-nil, declares the resource as
	// project-scoped and subject to the membership rule.
	ProjectMemberIDs []string `json:"project_member_ids,omitempty"`
}

// Decision is the outcome of a single rule evaluation.
type Decision int

const (
	// NotApplicable means the rule has no opinion about the request.
	// It is skipped during aggregation and never causes a denial.
	NotApplicable Decision = iota
	// Allow permits the request as far as this rule is concerned.
	Allow
	// Deny vetoes the request regardless of any other rule's opinion.
	Deny
)

// String returns the decision name for logs and diagnostics.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "not_applicable"
	}
}

// Stable reason codes returned by Authorize. Denied reasons never leak
// whether a resource exists: a caller lacking the base permission always
// sees ReasonPermissionNotGranted, the rule chain is never consulted.
const (
	ReasonPermissionNotGranted  = "permission_not_granted"
	ReasonRolePermissionGranted = "role_permission_granted"
	ReasonRuleChainPassed       = "rule_chain_passed"
)

// DeniedReason builds the reason code for a rule-chain denial,
// e.g. "TenantIsolationRule_denied".
func DeniedReason(ruleName string) string {
	return ruleName + "_denied"
}

// DecisionEvent records a single authorization decision for the audit
// collaborator. The engine guarantees an emission attempt, not delivery.
type DecisionEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TenantID    string    `json:"tenant_id"`
	Roles       []string  `json:"roles"`
	Permission  string    `json:"permission"`
	ResourceRef string    `json:"resource_ref,omitempty"`
	Allowed     bool      `json:"allowed"`
	MatchedRule string    `json:"matched_rule,omitempty"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}
