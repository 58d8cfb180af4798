package swarm

import "sort"

// roleCapabilities is the default capability set per agent role.
// Unknown roles fall back to the specialist set.
var roleCapabilities = map[string][]string{
	"coordinator": {"coordination", "planning", "delegation"},
	"researcher":  {"research", "analysis", "information-gathering"},
	"coder":       {"implementation", "code-generation", "debugging"},
	"analyst":     {"analysis", "data-analysis", "reporting"},
	"architect":   {"design", "architecture", "system-modeling"},
	"tester":      {"testing", "validation", "quality-assurance"},
	"reviewer":    {"review", "code-review", "quality"},
	"optimizer":   {"optimization", "profiling", "performance"},
	"documenter":  {"documentation", "writing"},
	"monitor":     {"monitoring", "alerting", "health-checks"},
	"specialist":  {"general"},
}

// DefaultCapabilities returns the capability set for a role as a fresh map.
func DefaultCapabilities(role string) map[string]bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		caps = roleCapabilities["specialist"]
	}
	set := make(map[string]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// KnownRoles lists the roles with predefined capability sets, sorted.
func KnownRoles() []string {
	roles := make([]string, 0, len(roleCapabilities))
	for r := range roleCapabilities {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
