package permission

import (
	"errors"
	"fmt"
	"sort"
)

// Evaluator answers role/permission queries against a table fixed at
// construction. It is immutable and safe for concurrent use; build it once
// and share the pointer.
type Evaluator struct {
	registry *Registry
	masks    map[Role]Mask64
	sorted   map[Role][]string
}

// NewEvaluator compiles table into an [Evaluator].
//
// NewEvaluator returns an error when the table names a role outside the six
// known roles, contains an empty permission, or exceeds [MaxPermissions].
func NewEvaluator(table Table) (*Evaluator, error) {
	if len(table) == 0 {
		return nil, errors.New("permission table is empty")
	}

	names := make(map[string]struct{})
	for role, perms := range table {
		if !role.Known() {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		for _, perm := range perms {
			if perm == "" {
				return nil, fmt.Errorf("role %s: %w", role, errEmptyPermission)
			}
			names[perm] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	registry := NewRegistry()
	for _, name := range ordered {
		if _, err := registry.Register(name); err != nil {
			return nil, fmt.Errorf("register %q: %w", name, err)
		}
	}
	registry.Freeze()

	e := &Evaluator{
		registry: registry,
		masks:    make(map[Role]Mask64, len(table)),
		sorted:   make(map[Role][]string, len(table)),
	}
	for role, perms := range table {
		var mask Mask64
		for _, perm := range perms {
			bit, _ := registry.Bit(perm)
			mask.Set(bit)
		}
		e.masks[role] = mask
		e.sorted[role] = e.namesOf(mask)
	}

	return e, nil
}

// NewDefaultEvaluator compiles [DefaultTable].
func NewDefaultEvaluator() (*Evaluator, error) {
	return NewEvaluator(DefaultTable())
}

// HasPermission reports whether role grants perm. Unknown roles and
// unregistered permissions are denied.
func (e *Evaluator) HasPermission(role Role, perm string) bool {
	mask, ok := e.masks[role]
	if !ok {
		return false
	}
	bit, ok := e.registry.Bit(perm)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// HasAny reports whether role grants at least one of perms.
func (e *Evaluator) HasAny(role Role, perms ...string) bool {
	mask, ok := e.masks[role]
	if !ok {
		return false
	}
	var want Mask64
	for _, perm := range perms {
		if bit, ok := e.registry.Bit(perm); ok {
			want.Set(bit)
		}
	}
	return mask.Intersects(want)
}

// HasAll reports whether role grants every one of perms. It is false for an
// empty perms list.
func (e *Evaluator) HasAll(role Role, perms ...string) bool {
	if len(perms) == 0 {
		return false
	}
	mask, ok := e.masks[role]
	if !ok {
		return false
	}
	var want Mask64
	for _, perm := range perms {
		bit, ok := e.registry.Bit(perm)
		if !ok {
			return false
		}
		want.Set(bit)
	}
	return mask.Contains(want)
}

// PermissionsFor returns a sorted copy of the permissions granted to role.
// It returns an empty, non-nil slice for unknown roles.
func (e *Evaluator) PermissionsFor(role Role) []string {
	perms := e.sorted[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Known reports whether role has an entry in the compiled table.
func (e *Evaluator) Known(role Role) bool {
	_, ok := e.masks[role]
	return ok
}

func (e *Evaluator) namesOf(mask Mask64) []string {
	out := make([]string, 0, mask.Count())
	for bit := 0; bit < MaxPermissions; bit++ {
		if !mask.Has(bit) {
			continue
		}
		if name, ok := e.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	// Bits were assigned in sorted name order, so out is already sorted.
	return out
}
