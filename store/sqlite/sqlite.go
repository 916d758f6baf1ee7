/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  tctc.PackageStore: package state, one row per employee
  tctc.AuditLog:     append-only change history

APPEND-ONLY ENFORCEMENT:
  The audit_entries table is insert-only: no UPDATE or DELETE statements
  exist in this package. Corrections show up as further entries.

KEY TABLES:
  packages:      current package per employee (components stored as JSON)
  audit_entries: immutable change history, ordered by rowid

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer and crash recovery is cleaner.

USAGE:
  store, err := sqlite.New("./data/packages.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  lifecycle := tctc.NewLifecycle(engine, store, store, nil)

SEE ALSO:
  - tctc/package.go: interface definitions
  - store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/package-engine/tctc"
)

// Store implements tctc.PackageStore and tctc.AuditLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Current package state, one row per employee
	CREATE TABLE IF NOT EXISTS packages (
		employee_id     TEXT PRIMARY KEY,
		status          TEXT NOT NULL,
		package_limit   TEXT NOT NULL,
		current_total   TEXT NOT NULL,
		monthly_tax     TEXT NOT NULL,
		monthly_uif     TEXT NOT NULL,
		age             INTEGER NOT NULL,
		dependents      INTEGER NOT NULL,
		has_medical_aid BOOLEAN NOT NULL,
		components_json TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		last_modified   TEXT NOT NULL,
		submitted_at    TEXT
	);

	-- Audit entries (append-only; rowid preserves insertion order)
	CREATE TABLE IF NOT EXISTS audit_entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL,
		action      TEXT NOT NULL,
		field       TEXT,
		old_value   TEXT,
		new_value   TEXT,
		actor_id    TEXT,
		actor_role  TEXT,
		detail      TEXT,
		at          TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_entries(employee_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PACKAGE STORE (tctc.PackageStore interface)
// =============================================================================

// componentsJSON is the persisted shape of tctc.Components. Decimals travel
// as strings so no precision is lost in the round-trip.
type componentsJSON struct {
	BasicSalary        string   `json:"basic_salary"`
	CarAllowance       string   `json:"car_allowance"`
	HousingAllowance   string   `json:"housing_allowance"`
	CellphoneAllowance string   `json:"cellphone_allowance"`
	DataAllowance      string   `json:"data_service_allowance"`
	CashAllowance      string   `json:"cash_allowance"`
	OtherAllowances    []string `json:"other_allowances,omitempty"`
	Bonus              string   `json:"bonus"`
	MedicalAid         string   `json:"medical_aid"`
	UIF                string   `json:"uif"`
	PensionOption      string   `json:"pension_option"`
	GroupLifeOption    string   `json:"group_life_option"`
}

func encodeComponents(c tctc.Components) (string, error) {
	doc := componentsJSON{
		BasicSalary:        c.BasicSalary.String(),
		CarAllowance:       c.CarAllowance.String(),
		HousingAllowance:   c.HousingAllowance.String(),
		CellphoneAllowance: c.CellphoneAllowance.String(),
		DataAllowance:      c.DataAllowance.String(),
		CashAllowance:      c.CashAllowance.String(),
		Bonus:              c.Bonus.String(),
		MedicalAid:         c.MedicalAid.String(),
		UIF:                c.UIF.String(),
		PensionOption:      c.PensionOption,
		GroupLifeOption:    c.GroupLifeOption,
	}
	for _, a := range c.OtherAllowances {
		doc.OtherAllowances = append(doc.OtherAllowances, a.String())
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode components: %w", err)
	}
	return string(data), nil
}

func decodeComponents(data string) (tctc.Components, error) {
	var doc componentsJSON
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return tctc.Components{}, fmt.Errorf("decode components: %w", err)
	}

	var c tctc.Components
	var err error
	parse := func(s string) decimal.Decimal {
		if err != nil || s == "" {
			return decimal.Zero
		}
		var d decimal.Decimal
		d, err = decimal.NewFromString(s)
		return d
	}

	c.BasicSalary = parse(doc.BasicSalary)
	c.CarAllowance = parse(doc.CarAllowance)
	c.HousingAllowance = parse(doc.HousingAllowance)
	c.CellphoneAllowance = parse(doc.CellphoneAllowance)
	c.DataAllowance = parse(doc.DataAllowance)
	c.CashAllowance = parse(doc.CashAllowance)
	c.Bonus = parse(doc.Bonus)
	c.MedicalAid = parse(doc.MedicalAid)
	c.UIF = parse(doc.UIF)
	for _, s := range doc.OtherAllowances {
		c.OtherAllowances = append(c.OtherAllowances, parse(s))
	}
	c.PensionOption = doc.PensionOption
	c.GroupLifeOption = doc.GroupLifeOption

	if err != nil {
		return tctc.Components{}, fmt.Errorf("decode components: %w", err)
	}
	return c, nil
}

// Put inserts or replaces the employee's package.
func (s *Store) Put(ctx context.Context, pkg tctc.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	components, err := encodeComponents(pkg.Components)
	if err != nil {
		return err
	}

	var submittedAt *string
	if pkg.SubmittedAt != nil {
		t := pkg.SubmittedAt.Format(time.RFC3339Nano)
		submittedAt = &t
	}

	query := `
		INSERT INTO packages
		(employee_id, status, package_limit, current_total, monthly_tax, monthly_uif,
		 age, dependents, has_medical_aid, components_json, created_at, last_modified, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			status = excluded.status,
			current_total = excluded.current_total,
			monthly_tax = excluded.monthly_tax,
			monthly_uif = excluded.monthly_uif,
			age = excluded.age,
			dependents = excluded.dependents,
			has_medical_aid = excluded.has_medical_aid,
			components_json = excluded.components_json,
			last_modified = excluded.last_modified,
			submitted_at = excluded.submitted_at
	`

	_, err = s.db.ExecContext(ctx, query,
		pkg.EmployeeID,
		string(pkg.Status),
		pkg.Limit.String(),
		pkg.CurrentTotal.String(),
		pkg.MonthlyTax.String(),
		pkg.MonthlyUIF.String(),
		pkg.Age,
		pkg.Dependents,
		pkg.HasMedicalAid,
		components,
		pkg.CreatedAt.Format(time.RFC3339Nano),
		pkg.LastModifiedAt.Format(time.RFC3339Nano),
		submittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save package: %w", err)
	}
	return nil
}

// Get returns the employee's package, or tctc.ErrPackageNotFound.
func (s *Store) Get(ctx context.Context, employeeID string) (tctc.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT employee_id, status, package_limit, current_total, monthly_tax, monthly_uif,
		       age, dependents, has_medical_aid, components_json, created_at, last_modified, submitted_at
		FROM packages
		WHERE employee_id = ?
	`

	var (
		pkg                     tctc.Package
		status                  string
		limit, total, tax, uif  string
		components              string
		createdAt, lastModified string
		submittedAt             sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, employeeID).Scan(
		&pkg.EmployeeID, &status, &limit, &total, &tax, &uif,
		&pkg.Age, &pkg.Dependents, &pkg.HasMedicalAid,
		&components, &createdAt, &lastModified, &submittedAt,
	)
	if err == sql.ErrNoRows {
		return tctc.Package{}, tctc.ErrPackageNotFound
	}
	if err != nil {
		return tctc.Package{}, fmt.Errorf("failed to load package: %w", err)
	}

	pkg.Status = tctc.Status(status)
	if pkg.Limit, err = decimal.NewFromString(limit); err != nil {
		return tctc.Package{}, fmt.Errorf("corrupt package limit: %w", err)
	}
	if pkg.CurrentTotal, err = decimal.NewFromString(total); err != nil {
		return tctc.Package{}, fmt.Errorf("corrupt package total: %w", err)
	}
	if pkg.MonthlyTax, err = decimal.NewFromString(tax); err != nil {
		return tctc.Package{}, fmt.Errorf("corrupt monthly tax: %w", err)
	}
	if pkg.MonthlyUIF, err = decimal.NewFromString(uif); err != nil {
		return tctc.Package{}, fmt.Errorf("corrupt monthly uif: %w", err)
	}
	if pkg.Components, err = decodeComponents(components); err != nil {
		return tctc.Package{}, err
	}
	if pkg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return tctc.Package{}, fmt.Errorf("corrupt created timestamp: %w", err)
	}
	if pkg.LastModifiedAt, err = time.Parse(time.RFC3339Nano, lastModified); err != nil {
		return tctc.Package{}, fmt.Errorf("corrupt last-modified timestamp: %w", err)
	}
	if submittedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, submittedAt.String)
		if err != nil {
			return tctc.Package{}, fmt.Errorf("corrupt submission timestamp: %w", err)
		}
		pkg.SubmittedAt = &t
	}

	return pkg, nil
}

// =============================================================================
// AUDIT LOG (tctc.AuditLog interface)
// =============================================================================

// Append inserts the entries in order inside one transaction, so a
// multi-field change lands in the trail completely or not at all.
func (s *Store) Append(ctx context.Context, entries ...tctc.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO audit_entries
		(employee_id, action, field, old_value, new_value, actor_id, actor_role, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			e.EmployeeID, e.Action, e.Field, e.OldValue, e.NewValue,
			e.ActorID, e.ActorRole, e.Detail, e.At.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}

	return tx.Commit()
}

// List returns the employee's audit entries in append order.
func (s *Store) List(ctx context.Context, employeeID string) ([]tctc.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, action, field, old_value, new_value, actor_id, actor_role, detail, at
		FROM audit_entries
		WHERE employee_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []tctc.AuditEntry
	for rows.Next() {
		var e tctc.AuditEntry
		var at string
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Action, &e.Field,
			&e.OldValue, &e.NewValue, &e.ActorID, &e.ActorRole, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("corrupt audit timestamp: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
