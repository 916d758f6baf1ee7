package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/package-engine/store/sqlite"
	"github.com/warp/package-engine/tctc"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// =============================================================================
// PACKAGE ROUND-TRIPS
// =============================================================================

func TestPackage_RoundTrip(t *testing.T) {
	// GIVEN: A package with every field populated, including the
	//        submission timestamp and an other-allowances list
	// WHEN: Saving and loading
	// THEN: Everything comes back exactly, decimals included

	s := newTestStore(t)
	ctx := context.Background()

	submitted := time.Date(2025, time.April, 1, 10, 30, 0, 0, time.UTC)
	pkg := tctc.Package{
		EmployeeID: "1001",
		Limit:      dec(t, "50000"),
		Components: tctc.Components{
			BasicSalary:        dec(t, "30000"),
			CarAllowance:       dec(t, "9000.50"),
			HousingAllowance:   dec(t, "1000"),
			CellphoneAllowance: dec(t, "350"),
			DataAllowance:      dec(t, "149.99"),
			CashAllowance:      dec(t, "500"),
			OtherAllowances:    []decimal.Decimal{dec(t, "120"), dec(t, "80.01")},
			Bonus:              dec(t, "2500"),
			MedicalAid:         dec(t, "1800"),
			UIF:                dec(t, "177.12"),
			PensionOption:      "C",
			GroupLifeOption:    "ENHANCED",
		},
		Status:         tctc.StatusSubmitted,
		CurrentTotal:   dec(t, "46780.45"),
		MonthlyTax:     dec(t, "6100.23"),
		MonthlyUIF:     dec(t, "177.12"),
		Age:            52,
		Dependents:     3,
		HasMedicalAid:  true,
		CreatedAt:      time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
		LastModifiedAt: submitted,
		SubmittedAt:    &submitted,
	}

	require.NoError(t, s.Put(ctx, pkg))

	got, err := s.Get(ctx, "1001")
	require.NoError(t, err)

	assert.Equal(t, tctc.StatusSubmitted, got.Status)
	assert.True(t, got.Limit.Equal(pkg.Limit))
	assert.True(t, got.CurrentTotal.Equal(pkg.CurrentTotal))
	assert.True(t, got.MonthlyTax.Equal(pkg.MonthlyTax))
	assert.True(t, got.Components.CarAllowance.Equal(dec(t, "9000.50")))
	assert.True(t, got.Components.DataAllowance.Equal(dec(t, "149.99")))
	require.Len(t, got.Components.OtherAllowances, 2)
	assert.True(t, got.Components.OtherAllowances[1].Equal(dec(t, "80.01")))
	assert.Equal(t, "C", got.Components.PensionOption)
	assert.Equal(t, 3, got.Dependents)
	assert.True(t, got.HasMedicalAid)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.SubmittedAt.Equal(submitted))
	assert.True(t, got.CreatedAt.Equal(pkg.CreatedAt))
}

func TestPackage_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, tctc.ErrPackageNotFound)
}

func TestPackage_PutReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pkg := tctc.Package{
		EmployeeID:   "1001",
		Limit:        dec(t, "50000"),
		Status:       tctc.StatusDraft,
		CurrentTotal: dec(t, "30000"),
		Components:   tctc.Components{BasicSalary: dec(t, "30000")},
	}
	require.NoError(t, s.Put(ctx, pkg))

	pkg.CurrentTotal = dec(t, "35000")
	pkg.Components.CarAllowance = dec(t, "5000")
	require.NoError(t, s.Put(ctx, pkg))

	got, err := s.Get(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, got.CurrentTotal.Equal(dec(t, "35000")))
	assert.True(t, got.Components.CarAllowance.Equal(dec(t, "5000")))
}

func TestPackage_CorruptTimestampFailsLoudly(t *testing.T) {
	// GIVEN: A stored package whose created_at column is mangled on disk
	// WHEN: Loading it
	// THEN: Get errors like it does for a corrupt decimal, instead of
	//       handing back a zero timestamp

	path := filepath.Join(t.TempDir(), "packages.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	pkg := tctc.Package{
		EmployeeID:     "1001",
		Limit:          dec(t, "50000"),
		Status:         tctc.StatusDraft,
		CurrentTotal:   dec(t, "30000"),
		Components:     tctc.Components{BasicSalary: dec(t, "30000")},
		CreatedAt:      time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
		LastModifiedAt: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Put(ctx, pkg))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE packages SET created_at = 'last tuesday' WHERE employee_id = '1001'`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = s.Get(ctx, "1001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestAudit_AppendOrderAndIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx,
		tctc.AuditEntry{EmployeeID: "1001", Action: tctc.ActionPackageCreated, At: at},
		tctc.AuditEntry{EmployeeID: "1001", Action: tctc.ActionFieldChanged,
			Field: "bonus", OldValue: "0.00", NewValue: "2500.00",
			ActorID: "hr-12", ActorRole: "hr", At: at},
	))
	require.NoError(t, s.Append(ctx,
		tctc.AuditEntry{EmployeeID: "1001", Action: tctc.ActionPackageSubmitted, At: at},
	))

	entries, err := s.List(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, tctc.ActionPackageCreated, entries[0].Action)
	assert.Equal(t, tctc.ActionFieldChanged, entries[1].Action)
	assert.Equal(t, tctc.ActionPackageSubmitted, entries[2].Action)
	assert.Less(t, entries[0].ID, entries[1].ID)
	assert.Less(t, entries[1].ID, entries[2].ID)

	change := entries[1]
	assert.Equal(t, "bonus", change.Field)
	assert.Equal(t, "2500.00", change.NewValue)
	assert.Equal(t, "hr-12", change.ActorID)
	assert.True(t, change.At.Equal(at))
}

func TestAudit_ListIsolatedPerEmployee(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, tctc.AuditEntry{EmployeeID: "1001", Action: tctc.ActionPackageCreated}))
	require.NoError(t, s.Append(ctx, tctc.AuditEntry{EmployeeID: "2002", Action: tctc.ActionPackageCreated}))

	entries, err := s.List(ctx, "1001")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAudit_EmptyTrail(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
