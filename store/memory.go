// Package store provides PackageStore and AuditLog implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/package-engine/tctc"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps packages and audit entries in maps. Every read hands back a
// copy so callers can never mutate stored state behind the lock.
type Memory struct {
	mu       sync.RWMutex
	packages map[string]tctc.Package
	audit    map[string][]tctc.AuditEntry
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		packages: make(map[string]tctc.Package),
		audit:    make(map[string][]tctc.AuditEntry),
		nextID:   1,
	}
}

func (m *Memory) Get(_ context.Context, employeeID string) (tctc.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pkg, ok := m.packages[employeeID]
	if !ok {
		return tctc.Package{}, tctc.ErrPackageNotFound
	}
	return copyPackage(pkg), nil
}

func (m *Memory) Put(_ context.Context, pkg tctc.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.packages[pkg.EmployeeID] = copyPackage(pkg)
	return nil
}

// Append adds audit entries in order. Append-only; entries are assigned
// sequential IDs across all employees.
func (m *Memory) Append(_ context.Context, entries ...tctc.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		e.ID = m.nextID
		m.nextID++
		m.audit[e.EmployeeID] = append(m.audit[e.EmployeeID], e)
	}
	return nil
}

func (m *Memory) List(_ context.Context, employeeID string) ([]tctc.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audit[employeeID]
	result := make([]tctc.AuditEntry, len(entries))
	copy(result, entries)
	return result, nil
}

// copyPackage deep-copies the fields with reference semantics: the
// other-allowances slice and the submission timestamp.
func copyPackage(pkg tctc.Package) tctc.Package {
	out := pkg
	out.Components = pkg.Components.Clone()
	if pkg.SubmittedAt != nil {
		t := *pkg.SubmittedAt
		out.SubmittedAt = &t
	}
	return out
}
