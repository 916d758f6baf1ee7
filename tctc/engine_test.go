package tctc_test

import (
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/package-engine/rates"
	"github.com/warp/package-engine/tctc"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine(t *testing.T) *tctc.Engine {
	t.Helper()
	engine, err := tctc.NewEngine(rates.Default(), tctc.DefaultBands(), quietLogger())
	require.NoError(t, err)
	return engine
}

// noContribs makes totals easy to reason about in budget tests.
func noContribs(c tctc.Components) tctc.Components {
	c.PensionOption = "none"
	c.GroupLifeOption = "none"
	return c
}

// =============================================================================
// ENGINE CONSTRUCTION
// =============================================================================

func TestNewEngine_RefusesMalformedTables(t *testing.T) {
	// GIVEN: A bracket table with a hole in it
	// WHEN: Constructing the engine
	// THEN: Construction fails; there is no engine that computes wrong tax

	tables := rates.Default()
	tables.Brackets = tables.Brackets[:3] // last bracket now bounded

	_, err := tctc.NewEngine(tables, tctc.DefaultBands(), quietLogger())
	assert.ErrorIs(t, err, rates.ErrInvalidTables)
}

// =============================================================================
// TOTAL COST
// =============================================================================

func TestTotalCost_SumsComponentsAndEmployerContributions(t *testing.T) {
	// GIVEN: 30000 basic on pension option B and standard group life
	// THEN: Total = 30000 + 17.19% employer pension + 0.5% employer
	//       group life = 30000 + 5157 + 150

	engine := newTestEngine(t)
	c := tctc.Components{
		BasicSalary:     dec(t, "30000"),
		PensionOption:   "B",
		GroupLifeOption: "STANDARD",
	}

	total := engine.TotalCost(c)
	assert.Equal(t, "35307.00", total.StringFixed(2))
}

func TestTotalCost_IncludesAllowancesAndBonus(t *testing.T) {
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{
		BasicSalary:        dec(t, "20000"),
		CarAllowance:       dec(t, "6000"),
		HousingAllowance:   dec(t, "2000"),
		CellphoneAllowance: dec(t, "500"),
		DataAllowance:      dec(t, "300"),
		CashAllowance:      dec(t, "1200"),
		OtherAllowances:    []decimal.Decimal{dec(t, "150"), dec(t, "350")},
		Bonus:              dec(t, "1500"),
	})

	total := engine.TotalCost(c)
	assert.Equal(t, "32000.00", total.StringFixed(2))
}

func TestTotalCost_MedicalAidAndUIFExcluded(t *testing.T) {
	// GIVEN: A package total
	// WHEN: Medical aid and UIF change
	// THEN: The total does not move; both are net-pay deductions, not
	//       employer cost

	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "25000")})
	before := engine.TotalCost(c)

	c.MedicalAid = dec(t, "4500")
	c.UIF = dec(t, "177.12")
	after := engine.TotalCost(c)

	assert.True(t, before.Equal(after), "total moved from %s to %s", before, after)
}

func TestTotalCost_UnknownOptionUsesDefaultRates(t *testing.T) {
	// Seed data sometimes carries codes the tables no longer know. The
	// default option's employer rate must be applied, not zero.
	engine := newTestEngine(t)
	c := tctc.Components{
		BasicSalary:     dec(t, "10000"),
		PensionOption:   "Z9",
		GroupLifeOption: "none",
	}

	total := engine.TotalCost(c)
	assert.Equal(t, "11719.00", total.StringFixed(2)) // 10000 + 17.19%
}

// =============================================================================
// VALIDATION - HARD CEILING
// =============================================================================

func TestValidate_WithinLimit(t *testing.T) {
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "30000")})

	res := engine.Validate(c, dec(t, "50000"))

	assert.True(t, res.Valid)
	assert.Nil(t, res.LimitError)
	assert.Equal(t, "20000.00", res.Remaining.StringFixed(2))
}

func TestValidate_OverLimitNamesBothFigures(t *testing.T) {
	// GIVEN: A 50000 limit and a proposal totalling 51000
	// WHEN: Validating
	// THEN: Rejected, and the error carries both the attempted total and
	//       the limit

	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "51000")})

	res := engine.Validate(c, dec(t, "50000"))

	require.False(t, res.Valid)
	require.NotNil(t, res.LimitError)
	assert.True(t, res.LimitError.Attempted.Equal(dec(t, "51000")))
	assert.True(t, res.LimitError.Limit.Equal(dec(t, "50000")))
	assert.True(t, res.LimitError.Exceeded().Equal(dec(t, "1000")))
	assert.True(t, errors.Is(res.LimitError, tctc.ErrLimitExceeded))
	assert.Contains(t, res.LimitError.Error(), "51000.00")
	assert.Contains(t, res.LimitError.Error(), "50000.00")
}

func TestValidate_ExactlyAtLimitIsValid(t *testing.T) {
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "50000")})

	res := engine.Validate(c, dec(t, "50000"))
	assert.True(t, res.Valid)
	assert.True(t, res.Remaining.IsZero())
}

// =============================================================================
// VALIDATION - SOFT BANDS
// =============================================================================

func TestValidate_BaseSalaryBandWarning(t *testing.T) {
	// GIVEN: Basic salary at 80% of the limit
	// THEN: The change is allowed but the 50-70% band warning fires

	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "40000")})

	res := engine.Validate(c, dec(t, "50000"))

	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "basic salary")
	assert.Contains(t, res.Warnings[0], "80.00")
}

func TestValidate_CarAllowanceBelowFloor(t *testing.T) {
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{
		BasicSalary:  dec(t, "30000"), // 60%, inside band
		CarAllowance: dec(t, "5000"),  // 10%, below the 30% floor
	})

	res := engine.Validate(c, dec(t, "50000"))

	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "car allowance")
}

func TestValidate_NoCarAllowanceNoCarWarning(t *testing.T) {
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "30000")})

	res := engine.Validate(c, dec(t, "50000"))
	assert.Empty(t, res.Warnings)
}

func TestValidate_BonusBand(t *testing.T) {
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{
		BasicSalary: dec(t, "30000"),
		Bonus:       dec(t, "1000"), // 2%, below the 10% floor
	})

	res := engine.Validate(c, dec(t, "50000"))

	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "bonus")
}

func TestValidate_ZeroLimitShortCircuitsPercentages(t *testing.T) {
	// A zero limit must produce zero percentages, not a division blow-up.
	engine := newTestEngine(t)
	c := noContribs(tctc.Components{BasicSalary: dec(t, "1000")})

	res := engine.Validate(c, decimal.Zero)

	require.False(t, res.Valid) // 1000 > 0 is still over the ceiling
	for field, pct := range res.Percentages {
		assert.True(t, pct.IsZero(), "field %s", field)
	}
}

func TestValidate_CustomBands(t *testing.T) {
	bands := tctc.Bands{
		BaseMin:  dec(t, "10"),
		BaseMax:  dec(t, "95"),
		CarMin:   dec(t, "5"),
		BonusMin: dec(t, "1"),
		BonusMax: dec(t, "95"),
	}
	engine, err := tctc.NewEngine(rates.Default(), bands, quietLogger())
	require.NoError(t, err)

	c := noContribs(tctc.Components{BasicSalary: dec(t, "40000")}) // 80%
	res := engine.Validate(c, dec(t, "50000"))

	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}
