/*
package.go - Package lifecycle, audit trail, storage interfaces

The lifecycle is the only stateful part of the engine. Every mutation runs
validate-then-commit: the change is evaluated on a copy, rejected changes
leave the stored package untouched, and accepted changes land together with
their audit entries.

AUDIT MODEL (append-only):
  - one entry per materially changed field (more than one cent)
  - one entry per recomputation that moved tax or UIF
  - one entry per lifecycle transition
  Entries are never updated or deleted; the trail is the history.
*/
package tctc

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/package-engine/payroll"
)

// =============================================================================
// PACKAGE STATE
// =============================================================================

// Status is the lifecycle state of a package.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
)

// Package is one employee's compensation package. Limit is fixed at
// creation; MonthlyTax and MonthlyUIF are derived figures kept current by
// the lifecycle.
type Package struct {
	EmployeeID string
	Limit      decimal.Decimal
	Components Components
	Status     Status

	CurrentTotal decimal.Decimal
	MonthlyTax   decimal.Decimal
	MonthlyUIF   decimal.Decimal

	// Tax profile.
	Age           int
	Dependents    int
	HasMedicalAid bool

	CreatedAt      time.Time
	LastModifiedAt time.Time
	SubmittedAt    *time.Time
}

// SeedRecord is the payroll-system snapshot a package starts from. The
// limit becomes the package's permanent ceiling.
type SeedRecord struct {
	EmployeeID    string
	Limit         decimal.Decimal
	Components    Components
	Age           int
	Dependents    int
	HasMedicalAid bool
}

// Actor identifies who performed a change, for the audit trail.
type Actor struct {
	ID   string
	Role string
}

// Audit actions.
const (
	ActionPackageCreated   = "package_created"
	ActionFieldChanged     = "field_changed"
	ActionRecalculated     = "recalculated"
	ActionPackageSubmitted = "package_submitted"
	ActionAdminOverride    = "admin_override"
)

// AuditEntry is one immutable line of package history. Old/NewValue are
// rendered strings so the trail survives schema drift in the components.
type AuditEntry struct {
	ID         int64
	EmployeeID string
	Action     string
	Field      string
	OldValue   string
	NewValue   string
	ActorID    string
	ActorRole  string
	Detail     string
	At         time.Time
}

// =============================================================================
// STORAGE INTERFACES - implemented by store/ (memory) and store/sqlite
// =============================================================================

// PackageStore persists package state keyed by employee.
type PackageStore interface {
	// Get returns the package, or ErrPackageNotFound.
	Get(ctx context.Context, employeeID string) (Package, error)
	// Put inserts or replaces the package.
	Put(ctx context.Context, pkg Package) error
}

// AuditLog is an append-only record of package changes.
type AuditLog interface {
	Append(ctx context.Context, entries ...AuditEntry) error
	// List returns the employee's entries in append order.
	List(ctx context.Context, employeeID string) ([]AuditEntry, error)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// changeEpsilon is the materiality threshold for audit entries: moves of a
// cent or less are rounding noise, not history.
var changeEpsilon = decimal.RequireFromString("0.01")

// Lifecycle drives packages through draft, change, and submission, keeping
// the store and the audit log consistent with each accepted change.
type Lifecycle struct {
	engine *Engine
	store  PackageStore
	audit  AuditLog
	now    func() time.Time
}

// NewLifecycle wires the engine to its storage. The clock is injectable for
// tests; nil means time.Now.
func NewLifecycle(engine *Engine, store PackageStore, audit AuditLog, now func() time.Time) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{engine: engine, store: store, audit: audit, now: now}
}

// Create opens a DRAFT package from a seed record. The seed's own cost must
// fit inside its limit; a seed already over budget is rejected with the
// same limit error a change would get.
func (l *Lifecycle) Create(ctx context.Context, seed SeedRecord, actor Actor) (Package, error) {
	res := l.engine.Validate(seed.Components, seed.Limit)
	if !res.Valid {
		return Package{}, res.LimitError
	}

	now := l.now()
	pkg := Package{
		EmployeeID:     seed.EmployeeID,
		Limit:          seed.Limit,
		Components:     seed.Components.Clone(),
		Status:         StatusDraft,
		CurrentTotal:   res.NewTotal,
		Age:            seed.Age,
		Dependents:     seed.Dependents,
		HasMedicalAid:  seed.HasMedicalAid,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	l.recompute(&pkg)

	if err := l.store.Put(ctx, pkg); err != nil {
		return Package{}, fmt.Errorf("persist package: %w", err)
	}
	entry := AuditEntry{
		EmployeeID: seed.EmployeeID,
		Action:     ActionPackageCreated,
		NewValue:   pkg.CurrentTotal.StringFixed(2),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Detail:     fmt.Sprintf("package seeded with limit %s", pkg.Limit.StringFixed(2)),
		At:         now,
	}
	if err := l.audit.Append(ctx, entry); err != nil {
		return Package{}, fmt.Errorf("audit package creation: %w", err)
	}
	return pkg, nil
}

// Get returns the stored package.
func (l *Lifecycle) Get(ctx context.Context, employeeID string) (Package, error) {
	return l.store.Get(ctx, employeeID)
}

// ApplyChange validates and commits a set of component changes on a DRAFT
// package. On rejection (limit breach, malformed value, wrong status) the
// stored package is untouched. The returned ValidationResult carries any
// soft-band warnings even when the change succeeds.
func (l *Lifecycle) ApplyChange(ctx context.Context, employeeID string, changes Changes, actor Actor) (Package, ValidationResult, error) {
	pkg, err := l.store.Get(ctx, employeeID)
	if err != nil {
		return Package{}, ValidationResult{}, err
	}
	if pkg.Status == StatusSubmitted {
		return Package{}, ValidationResult{}, ErrAlreadySubmitted
	}
	return l.commitChange(ctx, pkg, changes, actor, ActionFieldChanged)
}

// Submit freezes a DRAFT package. Submitting twice is ErrAlreadySubmitted.
func (l *Lifecycle) Submit(ctx context.Context, employeeID string, actor Actor) (Package, error) {
	pkg, err := l.store.Get(ctx, employeeID)
	if err != nil {
		return Package{}, err
	}
	if pkg.Status == StatusSubmitted {
		return Package{}, ErrAlreadySubmitted
	}

	now := l.now()
	pkg.Status = StatusSubmitted
	pkg.SubmittedAt = &now
	pkg.LastModifiedAt = now

	if err := l.store.Put(ctx, pkg); err != nil {
		return Package{}, fmt.Errorf("persist submission: %w", err)
	}
	entry := AuditEntry{
		EmployeeID: employeeID,
		Action:     ActionPackageSubmitted,
		NewValue:   pkg.CurrentTotal.StringFixed(2),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Detail:     "package frozen at submission",
		At:         now,
	}
	if err := l.audit.Append(ctx, entry); err != nil {
		return Package{}, fmt.Errorf("audit submission: %w", err)
	}
	return pkg, nil
}

// AdminOverride commits changes on a SUBMITTED package. The ceiling and the
// malformed-value rules still apply in full; only the status gate is lifted,
// and the trail records the entries under a distinct action so overrides are
// unmistakable in review.
func (l *Lifecycle) AdminOverride(ctx context.Context, employeeID string, changes Changes, actor Actor) (Package, ValidationResult, error) {
	pkg, err := l.store.Get(ctx, employeeID)
	if err != nil {
		return Package{}, ValidationResult{}, err
	}
	return l.commitChange(ctx, pkg, changes, actor, ActionAdminOverride)
}

// AuditTrail returns the employee's audit entries in append order.
func (l *Lifecycle) AuditTrail(ctx context.Context, employeeID string) ([]AuditEntry, error) {
	return l.audit.List(ctx, employeeID)
}

// commitChange is the shared validate-then-commit path for ApplyChange and
// AdminOverride.
func (l *Lifecycle) commitChange(ctx context.Context, pkg Package, changes Changes, actor Actor, action string) (Package, ValidationResult, error) {
	proposed, err := pkg.Components.Apply(changes)
	if err != nil {
		return Package{}, ValidationResult{}, err
	}

	res := l.engine.Validate(proposed, pkg.Limit)
	if !res.Valid {
		return Package{}, res, res.LimitError
	}

	now := l.now()
	entries := diffEntries(pkg.EmployeeID, pkg.Components, proposed, actor, action, now)

	oldTax, oldUIF := pkg.MonthlyTax, pkg.MonthlyUIF
	pkg.Components = proposed
	pkg.CurrentTotal = res.NewTotal
	pkg.LastModifiedAt = now
	l.recompute(&pkg)

	recalc := func(field string, oldV, newV decimal.Decimal) {
		if newV.Sub(oldV).Abs().GreaterThan(changeEpsilon) {
			entries = append(entries, AuditEntry{
				EmployeeID: pkg.EmployeeID,
				Action:     ActionRecalculated,
				Field:      field,
				OldValue:   oldV.StringFixed(2),
				NewValue:   newV.StringFixed(2),
				ActorID:    actor.ID,
				ActorRole:  actor.Role,
				At:         now,
			})
		}
	}
	recalc("monthly_tax", oldTax, pkg.MonthlyTax)
	recalc("monthly_uif", oldUIF, pkg.MonthlyUIF)

	if err := l.store.Put(ctx, pkg); err != nil {
		return Package{}, ValidationResult{}, fmt.Errorf("persist change: %w", err)
	}
	if len(entries) > 0 {
		if err := l.audit.Append(ctx, entries...); err != nil {
			return Package{}, ValidationResult{}, fmt.Errorf("audit change: %w", err)
		}
	}
	return pkg, res, nil
}

// recompute refreshes the derived tax and UIF figures from the current
// components and tax profile.
func (l *Lifecycle) recompute(pkg *Package) {
	c := pkg.Components
	gross := l.engine.GrossPay(c)
	pension := l.engine.PensionContribution(c)

	result := l.engine.Calculator().MonthlyPAYE(payroll.PAYEInput{
		GrossMonthly:    gross,
		TravelAllowance: c.CarAllowance,
		PensionEmployee: pension.Employee,
		PensionEmployer: pension.Employer,
		Age:             pkg.Age,
		Dependents:      pkg.Dependents,
		HasMedicalAid:   pkg.HasMedicalAid,
	})
	pkg.MonthlyTax = result.MonthlyTax
	pkg.MonthlyUIF = l.engine.Calculator().UIF(gross)
}

// diffEntries builds one audit entry per materially changed field.
func diffEntries(employeeID string, before, after Components, actor Actor, action string, at time.Time) []AuditEntry {
	var entries []AuditEntry
	add := func(field, oldVal, newVal string) {
		entries = append(entries, AuditEntry{
			EmployeeID: employeeID,
			Action:     action,
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			At:         at,
		})
	}

	for _, field := range orderedMonetaryFields {
		acc := monetaryFields[field]
		oldV, newV := acc.get(&before), acc.get(&after)
		if newV.Sub(oldV).Abs().GreaterThan(changeEpsilon) {
			add(field, oldV.StringFixed(2), newV.StringFixed(2))
		}
	}
	if sumAllowances(before.OtherAllowances).Sub(sumAllowances(after.OtherAllowances)).Abs().GreaterThan(changeEpsilon) {
		add("other_allowances",
			sumAllowances(before.OtherAllowances).StringFixed(2),
			sumAllowances(after.OtherAllowances).StringFixed(2))
	}
	if before.PensionOption != after.PensionOption {
		add(FieldPensionOption, before.PensionOption, after.PensionOption)
	}
	if before.GroupLifeOption != after.GroupLifeOption {
		add(FieldGroupLifeOption, before.GroupLifeOption, after.GroupLifeOption)
	}
	return entries
}

func sumAllowances(as []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range as {
		total = total.Add(a)
	}
	return total
}
