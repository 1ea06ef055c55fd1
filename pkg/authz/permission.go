package authz

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPermissionFormat is returned when a requested permission is not
// of the form "resource:action" (two non-empty segments, exactly one colon).
// A malformed permission is a caller bug and is surfaced as an error so it
// cannot be mistaken for a legitimate denial.
var ErrInvalidPermissionFormat = errors.New("invalid permission format, want resource:action")

// Wildcard is the segment that matches any resource or action in a pattern.
const Wildcard = "*"

// ParsePermission splits a requested permission into its resource and action
// segments, validating the format.
func ParsePermission(permission string) (resource, action string, err error) {
	if strings.Count(permission, ":") != 1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, permission)
	}
	idx := strings.IndexByte(permission, ':')
	resource, action = permission[:idx], permission[idx+1:]
	if resource == "" || action == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, permission)
	}
	return resource, action, nil
}

// validatePattern checks a role-table pattern. Patterns accept the wildcard
// forms "resource:*" and "*:*" in addition to concrete "resource:action".
// A bare "*" action on a wildcard resource ("*:action") is rejected: granting
// one action across every resource has no safe meaning in this model.
func validatePattern(pattern string) error {
	resource, action, err := ParsePermission(pattern)
	if err != nil {
		return err
	}
	if resource == Wildcard && action != Wildcard {
		return fmt.Errorf("%w: %q (wildcard resource requires wildcard action)", ErrInvalidPermissionFormat, pattern)
	}
	return nil
}

// Matches reports whether a role-table pattern matches a requested
// permission. Matching is case-sensitive: "*:*" matches everything,
// "resource:*" matches any action on that resource, anything else requires
// an exact string match. The requested permission must already be validated
// by ParsePermission.
func Matches(pattern, requested string) bool {
	if pattern == requested {
		return true
	}
	if pattern == Wildcard+":"+Wildcard {
		return true
	}
	resource, action, err := ParsePermission(pattern)
	if err != nil {
		return false
	}
	if action != Wildcard {
		return false
	}
	reqResource, _, err := ParsePermission(requested)
	if err != nil {
		return false
	}
	return resource == reqResource
}

// PermissionSet is a resolved set of permission patterns for one identity.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of patterns.
func NewPermissionSet(patterns ...string) PermissionSet {
	set := make(PermissionSet, len(patterns))
	for _, p := range patterns {
		set[p] = struct{}{}
	}
	return set
}

// Match returns the first pattern in the set that matches the requested
// permission, or ok=false when none does.
func (s PermissionSet) Match(requested string) (pattern string, ok bool) {
	if _, exact := s[requested]; exact {
		return requested, true
	}
	for p := range s {
		if Matches(p, requested) {
			return p, true
		}
	}
	return "", false
}

// Contains reports whether the exact token is present in the set. Used for
// elevated tokens such as "task:update_any": wildcard patterns deliberately
// do not count, holding "task:*" must not implicitly grant the ownership
// exemption.
func (s PermissionSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Patterns returns the set's patterns in sorted order.
func (s PermissionSet) Patterns() []string {
	patterns := make([]string, 0, len(s))
	for p := range s {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}

// RoleTable is the static mapping of role names to permission patterns.
// It is immutable once constructed; changes happen by building a new table
// and swapping it in via Engine.ReloadRoleTable.
type RoleTable struct {
	roles map[string][]string
}

// NewRoleTable builds a role table, validating every pattern.
func NewRoleTable(roles map[string][]string) (*RoleTable, error) {
	copied := make(map[string][]string, len(roles))
	for name, patterns := range roles {
		if name == "" {
			return nil, errors.New("role table contains an empty role name")
		}
		for _, p := range patterns {
			if err := validatePattern(p); err != nil {
				return nil, fmt.Errorf("role %q: %w", name, err)
			}
		}
		copied[name] = append([]string(nil), patterns...)
	}
	return &RoleTable{roles: copied}, nil
}

// Expand unions the table entries for the given roles. Unknown roles resolve
// to nothing and are returned so the caller can log a warning; they are
// never an error that could be mistaken for a grant.
func (t *RoleTable) Expand(roles []string) (set PermissionSet, unknown []string) {
	set = make(PermissionSet)
	for _, role := range roles {
		patterns, ok := t.roles[role]
		if !ok {
			unknown = append(unknown, role)
			continue
		}
		for _, p := range patterns {
			set[p] = struct{}{}
		}
	}
	return set, unknown
}

// Roles returns the role names defined in the table, sorted.
func (t *RoleTable) Roles() []string {
	names := make([]string, 0, len(t.roles))
	for name := range t.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// roleTableFile is the on-disk YAML shape of a role table:
//
//	roles:
//	  ADMIN: ["*:*"]
//	  MEMBER: ["task:read", "task:create", "task:update"]
type roleTableFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadRoleTableFile reads and validates a role table from a YAML file.
func LoadRoleTableFile(path string) (*RoleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role table: %w", err)
	}
	return ParseRoleTable(data)
}

// ParseRoleTable parses a YAML role table document.
func ParseRoleTable(data []byte) (*RoleTable, error) {
	var file roleTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role table: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, errors.New("role table defines no roles")
	}
	return NewRoleTable(file.Roles)
}
