package authz

// Rule names reported in denial reasons and decision events.
const (
	RuleNameTenantIsolation = "TenantIsolationRule"
	RuleNameOwnership       = "OwnershipRule"
	RuleNameMembership      = "MembershipRule"
)

// Actions that put a resource's owner field in play.
const (
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// OwnershipExemptSuffix is appended to an action to form the elevated
// permission token that exempts an identity from the ownership rule,
// e.g. "task:update" -> "task:update_any". The exemption is an additional
// permission check, never a rule bypass.
const OwnershipExemptSuffix = "_any"

// EvaluationContext carries everything a rule may read. Rules are pure
// functions of this input.
type EvaluationContext struct {
	Identity     Identity
	Resource     *Resource
	ResourceType string
	Action       string
	// Permissions is the identity's resolved permission set, consulted by
	// the ownership rule for the elevated "_any" token.
	Permissions PermissionSet
}

// Rule is a single composable access predicate.
type Rule interface {
	// Name identifies the rule in denial reasons and audit events.
	Name() string
	// Evaluate returns the rule's opinion about the request.
	// NotApplicable means the rule has none and must be skipped.
	Evaluate(ec EvaluationContext) Decision
}

// Chain evaluates rules in a fixed order with AND-short-circuit-deny
// semantics: the first Deny vetoes the request, NotApplicable is skipped,
// and a chain with no Deny grants access. Absence of an opinion never causes
// denial, otherwise requests without resource context would incorrectly fail.
type Chain struct {
	rules []Rule
}

// NewChain builds a chain evaluating the given rules in order.
func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

// DefaultChain returns the standard chain: tenant isolation, ownership,
// membership. The order matters for diagnostic reporting only; the
// aggregation semantics are commutative.
func DefaultChain() *Chain {
	return NewChain(
		TenantIsolationRule{},
		OwnershipRule{},
		MembershipRule{},
	)
}

// Evaluate runs the chain. On a Deny it returns the vetoing rule's name.
func (c *Chain) Evaluate(ec EvaluationContext) (Decision, string) {
	for _, rule := range c.rules {
		if rule.Evaluate(ec) == Deny {
			return Deny, rule.Name()
		}
	}
	return Allow, ""
}

// TenantIsolationRule denies any request whose resource belongs to a
// different tenant than the identity. It is non-overridable: no role,
// super-admin included, bypasses it. Cross-tenant administrative access has
// to be an explicit identity-issuance decision upstream, never an exception
// here.
type TenantIsolationRule struct{}

// Name implements Rule.
func (TenantIsolationRule) Name() string { return RuleNameTenantIsolation }

// Evaluate implements Rule.
func (TenantIsolationRule) Evaluate(ec EvaluationContext) Decision {
	if ec.Resource == nil || ec.Resource.TenantID == nil {
		return NotApplicable
	}
	if *ec.Resource.TenantID != ec.Identity.TenantID {
		return Deny
	}
	return Allow
}

// OwnershipRule restricts update and delete to the resource's owner.
// The owner is the first present of OwnerID, CreatedBy, AuthorID. An
// identity holding the exact elevated token "<resource>:<action>_any" in its
// resolved permission set is exempt; a wildcard grant such as "task:*" is
// not, it must name the token explicitly.
type OwnershipRule struct{}

// Name implements Rule.
func (OwnershipRule) Name() string { return RuleNameOwnership }

// Evaluate implements Rule.
func (OwnershipRule) Evaluate(ec EvaluationContext) Decision {
	if ec.Action != ActionUpdate && ec.Action != ActionDelete {
		return NotApplicable
	}
	owner := ownerOf(ec.Resource)
	if owner == nil {
		return NotApplicable
	}
	exemptToken := ec.ResourceType + ":" + ec.Action + OwnershipExemptSuffix
	if ec.Permissions.Contains(exemptToken) {
		return Allow
	}
	if *owner == ec.Identity.UserID {
		return Allow
	}
	return Deny
}

func ownerOf(r *Resource) *string {
	if r == nil {
		return nil
	}
	switch {
	case r.OwnerID != nil:
		return r.OwnerID
	case r.CreatedBy != nil:
		return r.CreatedBy
	case r.AuthorID != nil:
		return r.AuthorID
	}
	return nil
}

// MembershipRule applies to resources that declare a project member list.
// Members of the resource's tenant implicitly have project access; everyone
// else must appear in the member list.
type MembershipRule struct{}

// Name implements Rule.
func (MembershipRule) Name() string { return RuleNameMembership }

// Evaluate implements Rule.
func (MembershipRule) Evaluate(ec EvaluationContext) Decision {
	if ec.Resource == nil || ec.Resource.ProjectMemberIDs == nil {
		return NotApplicable
	}
	if ec.Resource.TenantID != nil && ec.Identity.TenantID == *ec.Resource.TenantID {
		return Allow
	}
	for _, member := range ec.Resource.ProjectMemberIDs {
		if member == ec.Identity.UserID {
			return Allow
		}
	}
	return Deny
}
