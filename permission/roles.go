package permission

// Role names a fixed class of principal. The set is closed.
type Role string

const (
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RolePropertyManager Role = "PROPERTY_MANAGER"
	RoleLeasingAgent    Role = "LEASING_AGENT"
	RoleMaintenanceTech Role = "MAINTENANCE_TECH"
	RoleAccountant      Role = "ACCOUNTANT"
	RoleTenant          Role = "TENANT"
)

var allRoles = [...]Role{
	RoleSuperAdmin,
	RolePropertyManager,
	RoleLeasingAgent,
	RoleMaintenanceTech,
	RoleAccountant,
	RoleTenant,
}

// Roles returns the six known roles in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles[:])
	return out
}

// Known reports whether r is one of the six roles.
func (r Role) Known() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
