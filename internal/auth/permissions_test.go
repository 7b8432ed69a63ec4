package auth

import "testing"

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role    Role
		has     Capability
		lacks   Capability
		hasName string
	}{
		{RoleOwner, CapPlatformManage, "", "owner manages platform"},
		{RoleAdmin, CapUsersManage, CapPlatformManage, "admin lacks platform.manage"},
		{RoleVendor, CapCatalogWrite, CapUsersManage, "vendor lacks users.manage"},
		{RoleCustomer, CapCatalogRead, CapCatalogWrite, "customer lacks catalog.write"},
	}
	for _, tc := range cases {
		p := NewPrincipal(User{ID: "u", Role: tc.role, Active: true})
		if !p.HasCapability(tc.has) {
			t.Fatalf("%s: %s must have %s", tc.hasName, tc.role, tc.has)
		}
		if tc.lacks != "" && p.HasCapability(tc.lacks) {
			t.Fatalf("%s: %s must not have %s", tc.hasName, tc.role, tc.lacks)
		}
	}
}

func TestUnknownRoleResolvesToNothing(t *testing.T) {
	if caps := CapabilitiesFor(Role("superuser")); caps != nil {
		t.Fatalf("unknown role must resolve to nil, got %v", caps)
	}
	if Role("superuser").Valid() {
		t.Fatal("unknown role must not be valid")
	}
}

func TestCapabilitiesForReturnsCopy(t *testing.T) {
	a := CapabilitiesFor(RoleCustomer)
	a[0] = Capability("mutated")
	b := CapabilitiesFor(RoleCustomer)
	if b[0] == Capability("mutated") {
		t.Fatal("CapabilitiesFor must not expose the shared table")
	}
}
