package types

// UserRole represents the different user roles in the system
type UserRole string

const (
	RoleDoctor        UserRole = "doctor"
	RoleLabManager    UserRole = "lab_manager"
	RoleLabTechnician UserRole = "lab_technician"
	RoleNurse         UserRole = "nurse"
	RoleAdministrator UserRole = "admin"
)

// UserContext carries the pre-validated identity of the caller. The identity
// provider is an out-of-scope collaborator; the engine trusts this pair.
type UserContext struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}
