package billing

import "fmt"

// Action is one of the four gated operations on an invoice item
type Action string

const (
	ActionView         Action = "view"
	ActionComplete     Action = "complete"
	ActionCollect      Action = "collect-payment"
	ActionMarkExternal Action = "mark-external"
)

// Universal grants. Holding one satisfies the whole action family
// regardless of category.
const (
	PermissionViewAll    = "invoices.view-all"
	PermissionCollectAll = "payments.collect-all"
)

// PermissionSet is a resolved, deduplicated set of permission strings held
// by a caller. Resolving the role/user union is the identity service's job;
// this package only consumes the result.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a PermissionSet from a list of permission strings
func NewPermissionSet(permissions []string) PermissionSet {
	set := make(PermissionSet, len(permissions))
	for _, p := range permissions {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the given permission string
func (s PermissionSet) Has(permission string) bool {
	_, ok := s[permission]
	return ok
}

// GateTable maps each category/action pair to the permission strings that
// satisfy it. It is static configuration: built once at startup and treated
// as read-only for the process lifetime.
type GateTable map[Category]map[Action][]string

// DefaultGateTable returns the standard per-department permission table.
// Permission strings follow the identity service's resource.action.scope
// convention.
func DefaultGateTable() GateTable {
	table := make(GateTable, len(AllCategories()))
	for _, category := range AllCategories() {
		table[category] = map[Action][]string{
			ActionView:         {fmt.Sprintf("invoices.view.%s", category)},
			ActionComplete:     {fmt.Sprintf("invoices.complete.%s", category)},
			ActionCollect:      {fmt.Sprintf("payments.collect.%s", category)},
			ActionMarkExternal: {fmt.Sprintf("invoices.mark-external.%s", category)},
		}
	}
	return table
}

// PermissionGate answers authorization queries for the category/action
// matrix. It is immutable after construction and safe for concurrent use;
// it is passed by reference into whatever needs it, never looked up through
// package-level state.
type PermissionGate struct {
	table GateTable
}

// NewPermissionGate builds a gate from the given table. The table is deep
// copied so later mutation of the argument cannot leak into the gate.
func NewPermissionGate(table GateTable) *PermissionGate {
	copied := make(GateTable, len(table))
	for category, actions := range table {
		actionCopy := make(map[Action][]string, len(actions))
		for action, permissions := range actions {
			permCopy := make([]string, len(permissions))
			copy(permCopy, permissions)
			actionCopy[action] = permCopy
		}
		copied[category] = actionCopy
	}
	return &PermissionGate{table: copied}
}

// CanPerform reports whether a caller holding the given permissions may
// perform the action on items of the category. The universal view and
// collect grants satisfy their whole action family.
func (g *PermissionGate) CanPerform(perms PermissionSet, category Category, action Action) bool {
	switch action {
	case ActionView:
		if perms.Has(PermissionViewAll) {
			return true
		}
	case ActionCollect:
		if perms.Has(PermissionCollectAll) {
			return true
		}
	}

	actions, ok := g.table[category]
	if !ok {
		return false
	}
	for _, required := range actions[action] {
		if perms.Has(required) {
			return true
		}
	}
	return false
}

// AllowedCategories returns the categories whose view action succeeds for
// the given permission set. The universal view grant yields the full set.
func (g *PermissionGate) AllowedCategories(perms PermissionSet) []Category {
	if perms.Has(PermissionViewAll) {
		return AllCategories()
	}
	allowed := make([]Category, 0, len(g.table))
	for _, category := range AllCategories() {
		if g.CanPerform(perms, category, ActionView) {
			allowed = append(allowed, category)
		}
	}
	return allowed
}
