package permission

import (
	"errors"
	"reflect"
	"testing"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	reg, err := NewRegistry("admin", "signer", "guardian")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	reg.Freeze()
	return NewTable(reg)
}

func TestRegistryAssignsBitsInOrder(t *testing.T) {
	reg, err := NewRegistry("a", "b")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if bit, _ := reg.Bit("b"); bit != 1 {
		t.Fatalf("bit of b = %d", bit)
	}
	if _, err := reg.Register("a"); err == nil {
		t.Fatal("duplicate role must fail")
	}
	if _, err := reg.Register(""); err == nil {
		t.Fatal("empty role must fail")
	}
	reg.Freeze()
	if _, err := reg.Register("c"); err == nil {
		t.Fatal("frozen registry must reject registration")
	}
	if name, ok := reg.Name(0); !ok || name != "a" {
		t.Fatalf("Name(0) = %q, %v", name, ok)
	}
}

func TestRegistryLimit(t *testing.T) {
	reg, _ := NewRegistry()
	for i := 0; i < MaxRoles; i++ {
		if _, err := reg.Register(string(rune('A' + i))); err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
	}
	if _, err := reg.Register("overflow"); err == nil {
		t.Fatal("expected role limit error")
	}
}

func TestGrantRevoke(t *testing.T) {
	tb := newTestTable(t)

	changed, err := tb.Grant("alice", "signer")
	if err != nil || !changed {
		t.Fatalf("Grant = %v, %v", changed, err)
	}
	if changed, _ := tb.Grant("alice", "signer"); changed {
		t.Fatal("second grant should not change the mask")
	}
	_, _ = tb.Grant("alice", "guardian")

	if !tb.Has("alice", "signer") || tb.Has("alice", "admin") {
		t.Fatal("unexpected membership")
	}
	if got := tb.Roles("alice"); !reflect.DeepEqual(got, []string{"signer", "guardian"}) {
		t.Fatalf("Roles = %v", got)
	}

	if _, err := tb.Grant("alice", "root"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := tb.Grant("", "signer"); !errors.Is(err, ErrEmptyMember) {
		t.Fatalf("expected ErrEmptyMember, got %v", err)
	}

	if changed, _ := tb.Revoke("alice", "signer"); !changed {
		t.Fatal("Revoke should change the mask")
	}
	if changed, _ := tb.Revoke("alice", "signer"); changed {
		t.Fatal("second revoke should be a no-op")
	}
	_, _ = tb.Revoke("alice", "guardian")
	if tb.Get("alice") != 0 {
		t.Fatal("member without roles should have an empty mask")
	}
}

func TestHasAnyAndMembers(t *testing.T) {
	tb := newTestTable(t)
	_, _ = tb.Grant("bob", "guardian")
	_, _ = tb.Grant("alice", "guardian")
	_, _ = tb.Grant("carol", "admin")

	want, err := tb.Mask("admin", "signer")
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	if tb.HasAny("bob", want) || !tb.HasAny("carol", want) {
		t.Fatal("HasAny mismatch")
	}
	if got := tb.Members("guardian"); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("Members = %v", got)
	}
	if _, err := tb.Mask("nope"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestRevokeUnlessLast(t *testing.T) {
	tbl := newTestTable(t)
	_, _ = tbl.Grant("a", "admin")

	if _, err := tbl.RevokeUnlessLast("a", "admin"); !errors.Is(err, ErrLastHolder) {
		t.Fatalf("expected ErrLastHolder, got %v", err)
	}
	if !tbl.Has("a", "admin") {
		t.Fatal("last holder lost the role")
	}

	_, _ = tbl.Grant("b", "admin")
	changed, err := tbl.RevokeUnlessLast("a", "admin")
	if err != nil || !changed {
		t.Fatalf("RevokeUnlessLast with two holders: changed=%v err=%v", changed, err)
	}
	if changed, err := tbl.RevokeUnlessLast("a", "admin"); err != nil || changed {
		t.Fatalf("revoking an absent role: changed=%v err=%v", changed, err)
	}
}
