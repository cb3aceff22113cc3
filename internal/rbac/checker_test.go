package rbac

import "testing"

func TestCheckerDefaults(t *testing.T) {
	c := NewChecker(nil)

	if !c.Has(RoleAdmin, "exam:delete") {
		t.Fatalf("admin wildcard should grant everything")
	}
	if !c.Has(RoleStudent, "attempt:submit") {
		t.Fatalf("student should hold attempt:submit")
	}
	if c.Has(RoleStudent, "exam:delete") {
		t.Fatalf("student must not hold admin permissions")
	}
	if c.Has(Role("teacher"), "exam:view") {
		t.Fatalf("unknown role must have no permissions")
	}
	if !c.Any(RoleStudent, "exam:delete", "result:view-own") {
		t.Fatalf("Any should succeed when one permission matches")
	}
}

func TestMatchPermPrefix(t *testing.T) {
	c := NewChecker(map[Role][]string{RoleStudent: {"attempt:*"}})
	if !c.Has(RoleStudent, "attempt:answer") {
		t.Fatalf("prefix pattern should match")
	}
	if c.Has(RoleStudent, "result:view-own") {
		t.Fatalf("prefix pattern must not match other namespaces")
	}
}
