package permission

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrUnknownRole is returned for role names missing from the registry.
	ErrUnknownRole = errors.New("unknown role")
	// ErrEmptyMember is returned for the null member identity.
	ErrEmptyMember = errors.New("member id cannot be empty")
	// ErrLastHolder is returned by RevokeUnlessLast for the sole holder of a role.
	ErrLastHolder = errors.New("member is the last holder of role")
)

// Table holds the role mask of every member.
type Table struct {
	registry *Registry

	mu      sync.RWMutex
	members map[string]Mask64
}

// NewTable creates an empty membership table over a frozen registry.
func NewTable(registry *Registry) *Table {
	return &Table{
		registry: registry,
		members:  make(map[string]Mask64),
	}
}

func (t *Table) Registry() *Registry { return t.registry }

// Mask builds the mask of the given role names.
func (t *Table) Mask(roles ...string) (Mask64, error) {
	var m Mask64
	for _, role := range roles {
		bit, ok := t.registry.Bit(role)
		if !ok {
			return 0, errors.Join(ErrUnknownRole, errors.New(role))
		}
		m.Set(bit)
	}
	return m, nil
}

// Grant adds role to member. It reports whether the member's mask changed.
func (t *Table) Grant(member, role string) (bool, error) {
	if member == "" {
		return false, ErrEmptyMember
	}
	bit, ok := t.registry.Bit(role)
	if !ok {
		return false, errors.Join(ErrUnknownRole, errors.New(role))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.members[member]
	if m.Has(bit) {
		return false, nil
	}
	m.Set(bit)
	t.members[member] = m
	return true, nil
}

// Revoke removes role from member. It reports whether the mask changed.
func (t *Table) Revoke(member, role string) (bool, error) {
	return t.revoke(member, role, false)
}

// RevokeUnlessLast is Revoke, refused with ErrLastHolder when member is the
// only holder of role. The count and the removal happen under one lock.
func (t *Table) RevokeUnlessLast(member, role string) (bool, error) {
	return t.revoke(member, role, true)
}

func (t *Table) revoke(member, role string, keepLast bool) (bool, error) {
	bit, ok := t.registry.Bit(role)
	if !ok {
		return false, errors.Join(ErrUnknownRole, errors.New(role))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.members[member]
	if !ok || !m.Has(bit) {
		return false, nil
	}
	if keepLast && t.holdersLocked(bit) == 1 {
		return false, ErrLastHolder
	}
	m.Clear(bit)
	if m == 0 {
		delete(t.members, member)
	} else {
		t.members[member] = m
	}
	return true, nil
}

func (t *Table) holdersLocked(bit int) int {
	n := 0
	for _, m := range t.members {
		if m.Has(bit) {
			n++
		}
	}
	return n
}

// Get returns the mask of member.
func (t *Table) Get(member string) Mask64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.members[member]
}

// Has reports whether member holds role.
func (t *Table) Has(member, role string) bool {
	bit, ok := t.registry.Bit(role)
	if !ok {
		return false
	}
	return t.Get(member).Has(bit)
}

// HasAny reports whether member holds at least one bit of want.
func (t *Table) HasAny(member string, want Mask64) bool {
	return t.Get(member).HasAny(want)
}

// Roles lists the role names of member.
func (t *Table) Roles(member string) []string {
	return t.registry.Names(t.Get(member))
}

// Members lists every member holding role, sorted.
func (t *Table) Members(role string) []string {
	bit, ok := t.registry.Bit(role)
	if !ok {
		return nil
	}

	t.mu.RLock()
	var out []string
	for id, m := range t.members {
		if m.Has(bit) {
			out = append(out, id)
		}
	}
	t.mu.RUnlock()

	sort.Strings(out)
	return out
}
