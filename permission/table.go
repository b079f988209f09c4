package permission

import "sort"

// Permission symbols. Suffix ":own" restricts the grant to records owned by
// or assigned to the principal; enforcing ownership is the caller's concern.
const (
	PropertyRead   = "property:read"
	PropertyWrite  = "property:write"
	PropertyDelete = "property:delete"
	UnitRead       = "unit:read"
	UnitWrite      = "unit:write"

	TenantRead    = "tenant:read"
	TenantReadOwn = "tenant:read:own"
	TenantWrite   = "tenant:write"

	LeaseRead    = "lease:read"
	LeaseReadOwn = "lease:read:own"
	LeaseWrite   = "lease:write"
	LeaseSignOwn = "lease:sign:own"

	WorkOrderRead    = "workorder:read"
	WorkOrderReadOwn = "workorder:read:own"
	WorkOrderCreate  = "workorder:create"
	WorkOrderUpdate  = "workorder:update"
	WorkOrderAssign  = "workorder:assign"

	PaymentRead    = "payment:read"
	PaymentReadOwn = "payment:read:own"
	PaymentRecord  = "payment:record"
	PaymentMakeOwn = "payment:make:own"

	ReportFinancial = "report:financial"
	ComplianceRead  = "compliance:read"
	ComplianceWrite = "compliance:write"
	DocumentRead    = "document:read"
	DocumentUpload  = "document:upload"

	UserManage = "user:manage"
	RoleAssign = "role:assign"
	AuditRead  = "audit:read"

	SessionReadOwn   = "session:read:own"
	SessionRevokeOwn = "session:revoke:own"
	SessionRevokeAny = "session:revoke:any"
)

// Table maps each role to the permissions it grants.
type Table map[Role][]string

var selfService = []string{SessionReadOwn, SessionRevokeOwn}

// DefaultTable returns a fresh copy of the built-in role table.
func DefaultTable() Table {
	t := Table{
		RolePropertyManager: {
			PropertyRead, PropertyWrite, UnitRead, UnitWrite,
			TenantRead, TenantWrite,
			LeaseRead, LeaseWrite,
			WorkOrderRead, WorkOrderCreate, WorkOrderUpdate, WorkOrderAssign,
			PaymentRead, ReportFinancial,
			ComplianceRead, ComplianceWrite,
			DocumentRead, DocumentUpload,
			AuditRead,
		},
		RoleLeasingAgent: {
			PropertyRead, UnitRead,
			TenantRead, TenantWrite,
			LeaseRead, LeaseWrite,
			DocumentRead, DocumentUpload,
		},
		RoleMaintenanceTech: {
			PropertyRead, UnitRead,
			WorkOrderReadOwn, WorkOrderUpdate,
			DocumentUpload,
		},
		RoleAccountant: {
			PropertyRead, TenantRead, LeaseRead,
			PaymentRead, PaymentRecord, ReportFinancial,
			DocumentRead,
		},
		RoleTenant: {
			TenantReadOwn, LeaseReadOwn, LeaseSignOwn,
			WorkOrderReadOwn, WorkOrderCreate,
			PaymentReadOwn, PaymentMakeOwn,
		},
	}
	for role, perms := range t {
		t[role] = append(perms, selfService...)
	}
	t[RoleSuperAdmin] = AllPermissions()
	return t
}

// AllPermissions returns every permission symbol defined by this package, sorted.
func AllPermissions() []string {
	out := []string{
		PropertyRead, PropertyWrite, PropertyDelete, UnitRead, UnitWrite,
		TenantRead, TenantReadOwn, TenantWrite,
		LeaseRead, LeaseReadOwn, LeaseWrite, LeaseSignOwn,
		WorkOrderRead, WorkOrderReadOwn, WorkOrderCreate, WorkOrderUpdate, WorkOrderAssign,
		PaymentRead, PaymentReadOwn, PaymentRecord, PaymentMakeOwn,
		ReportFinancial, ComplianceRead, ComplianceWrite, DocumentRead, DocumentUpload,
		UserManage, RoleAssign, AuditRead,
		SessionReadOwn, SessionRevokeOwn, SessionRevokeAny,
	}
	sort.Strings(out)
	return out
}
