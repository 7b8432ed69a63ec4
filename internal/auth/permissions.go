package auth

// Role is the fixed privilege enumeration of the platform.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"
)

// LowestPrivilegeRole is assigned to every account created through the
// external-identity path.
const LowestPrivilegeRole = RoleCustomer

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleVendor, RoleCustomer:
		return true
	}
	return false
}

// Capability is a fine-grained action identifier consumed by the
// authorization layer.
type Capability string

const (
	CapPlatformManage Capability = "platform.manage"
	CapUsersManage    Capability = "users.manage"
	CapCatalogWrite   Capability = "catalog.write"
	CapCatalogRead    Capability = "catalog.read"
	CapOrdersManage   Capability = "orders.manage"
	CapOrdersOwn      Capability = "orders.own"
	CapProfileOwn     Capability = "profile.own"
)

// roleCapabilities is the static role -> capability table. Order within each
// slice is stable and meaningful to consumers that render it.
var roleCapabilities = map[Role][]Capability{
	RoleOwner: {
		CapPlatformManage, CapUsersManage, CapCatalogWrite, CapCatalogRead,
		CapOrdersManage, CapOrdersOwn, CapProfileOwn,
	},
	RoleAdmin: {
		CapUsersManage, CapCatalogWrite, CapCatalogRead,
		CapOrdersManage, CapOrdersOwn, CapProfileOwn,
	},
	RoleVendor: {
		CapCatalogWrite, CapCatalogRead, CapOrdersOwn, CapProfileOwn,
	},
	RoleCustomer: {
		CapCatalogRead, CapOrdersOwn, CapProfileOwn,
	},
}

// CapabilitiesFor resolves a role to its ordered capability set. Unknown
// roles resolve to nothing.
func CapabilitiesFor(role Role) []Capability {
	caps, ok := roleCapabilities[role]
	if !ok {
		return nil
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Principal is a verified user with resolved capabilities.
type Principal struct {
	User         User
	Capabilities map[Capability]struct{}
}

// NewPrincipal builds a principal from a user's current role.
func NewPrincipal(user User) Principal {
	caps := CapabilitiesFor(user.Role)
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return Principal{User: user.View(), Capabilities: set}
}

// HasCapability reports whether the principal may perform the action.
func (p Principal) HasCapability(c Capability) bool {
	_, ok := p.Capabilities[c]
	return ok
}
