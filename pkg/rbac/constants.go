package rbac

import "github.com/labtrace/lims/pkg/types"

// Role hierarchy levels (higher number = higher privilege)
var RoleLevels = map[types.UserRole]int{
	types.RoleNurse:         2,
	types.RoleLabTechnician: 3,
	types.RoleDoctor:        4,
	types.RoleLabManager:    5,
	types.RoleAdministrator: 6,
}

// Resource types in the system
const (
	ResourceLabOrder   = "lab_order"
	ResourceTechnician = "technician"
	ResourceCatalog    = "test_catalog"
)

// Action types
const (
	ActionCreate     = "create"
	ActionRead       = "read"
	ActionAssign     = "assign"
	ActionTransition = "transition"
	ActionCancel     = "cancel"
)

// Roles allowed to trigger technician assignment on an order.
var assignRoles = map[types.UserRole]bool{
	types.RoleLabManager:    true,
	types.RoleDoctor:        true,
	types.RoleAdministrator: true,
}

// CanAssignOrders reports whether the role may invoke order assignment.
func CanAssignOrders(role types.UserRole) bool {
	return assignRoles[role]
}

// CanCreateOrders reports whether the role may place new test orders.
func CanCreateOrders(role types.UserRole) bool {
	return role == types.RoleDoctor || role == types.RoleLabManager || role == types.RoleAdministrator
}

// IsKnownRole reports whether the role is part of the hierarchy.
func IsKnownRole(role types.UserRole) bool {
	_, ok := RoleLevels[role]
	return ok
}
