/*
Package payroll contains the pure statutory calculators: progressive income
tax with rebates and medical credits, the travel-allowance and
pension-deduction taxable-income rules, UIF, and percentage-based pension /
group-life contributions.

Every function here is a deterministic computation over its inputs. Rate
tables are passed in explicitly; there is no ambient configuration and no
I/O, so the calculators are safe to call from any number of goroutines.

KEY RULES (statutory, not negotiable):
  - Only 80% of a car/travel allowance is taxable; the untaxed 20% stays
    in gross pay and in cost-to-company.
  - Pension contributions are deductible up to min(27.5% of pre-deduction
    taxable income, 350000) per year, applied once before the bracket scan.
  - UIF is 1% of gross monthly earnings capped at a flat monthly ceiling.

SEE ALSO:
  - rates package: the tables these calculators consume
  - contrib.go: contribution calculation (no capping at that layer)
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/package-engine/rates"
)

var (
	twelve            = decimal.NewFromInt(12)
	hundred           = decimal.NewFromInt(100)
	travelTaxableFrac = decimal.RequireFromString("0.8")
	pensionCapFrac    = decimal.RequireFromString("0.275")
	pensionCapAmount  = decimal.NewFromInt(350000)
	uifRate           = decimal.RequireFromString("0.01")
)

// AnnualTax computes gross progressive tax on annual taxable income.
// Negative income is treated as zero. Brackets are scanned ascending and the
// first bracket whose upper bound covers the income wins, so fractional
// incomes between the integer bracket bounds are still taxed; a validated
// table's unbounded top bracket catches everything else. Returns 0 only for
// an empty table.
func AnnualTax(taxableIncome decimal.Decimal, brackets rates.BracketTable) decimal.Decimal {
	if taxableIncome.IsNegative() {
		taxableIncome = decimal.Zero
	}
	for _, b := range brackets {
		if b.Matches(taxableIncome) {
			return b.BaseTax.Add(taxableIncome.Sub(b.Lower).Mul(b.Rate))
		}
	}
	return decimal.Zero
}

// AnnualMedicalCredit computes the annual medical-scheme tax credit. The
// main member is always the first covered life; the first dependent uses the
// first-dependent rate and every further dependent the additional rate.
// Zero without medical aid.
func AnnualMedicalCredit(dependents int, hasMedicalAid bool, sched rates.MedicalCreditSchedule) decimal.Decimal {
	if !hasMedicalAid {
		return decimal.Zero
	}
	monthly := sched.MainMember
	if dependents >= 1 {
		monthly = monthly.Add(sched.FirstDependent)
	}
	if dependents > 1 {
		extra := decimal.NewFromInt(int64(dependents - 1))
		monthly = monthly.Add(extra.Mul(sched.AdditionalDependent))
	}
	return monthly.Mul(twelve)
}

// NetMonthlyTax subtracts age-banded rebates and the medical credit from
// gross annual tax, clamps at zero, and returns the monthly figure rounded
// to cents (half-up).
func NetMonthlyTax(grossAnnualTax decimal.Decimal, age, dependents int, hasMedicalAid bool,
	rebates rates.RebateSchedule, credits rates.MedicalCreditSchedule) decimal.Decimal {

	net := grossAnnualTax.
		Sub(rebates.TotalFor(age)).
		Sub(AnnualMedicalCredit(dependents, hasMedicalAid, credits))
	if net.IsNegative() {
		net = decimal.Zero
	}
	return net.Div(twelve).Round(2)
}

// =============================================================================
// CALCULATOR - full monthly PAYE pipeline over a rate-table set
// =============================================================================

// Calculator binds the calculators to one tax year's tables.
type Calculator struct {
	Tables rates.Tables
}

// PAYEInput describes one employee-month for tax purposes. All monetary
// fields are monthly amounts; TravelAllowance must already be included in
// GrossMonthly.
type PAYEInput struct {
	GrossMonthly    decimal.Decimal
	TravelAllowance decimal.Decimal
	PensionEmployee decimal.Decimal
	PensionEmployer decimal.Decimal
	Age             int
	Dependents      int
	HasMedicalAid   bool
}

// PAYEResult is the annualized breakdown behind the monthly figure.
type PAYEResult struct {
	TaxableIncome    decimal.Decimal // annual, after the pension deduction
	PensionDeduction decimal.Decimal // annual amount actually deducted
	GrossAnnualTax   decimal.Decimal
	MonthlyTax       decimal.Decimal
}

// MonthlyPAYE runs the full pipeline: travel-allowance split, pension
// deduction cap, bracket scan, rebates, and medical credits.
func (c Calculator) MonthlyPAYE(in PAYEInput) PAYEResult {
	// 80% of the travel allowance is taxable; the rest of gross is fully so.
	annualTravelTaxable := in.TravelAllowance.Mul(twelve).Mul(travelTaxableFrac)
	grossExclTravel := in.GrossMonthly.Sub(in.TravelAllowance)
	taxable := grossExclTravel.Mul(twelve).Add(annualTravelTaxable)

	// Deduction cap is relative to pre-deduction taxable income.
	annualPension := in.PensionEmployee.Add(in.PensionEmployer).Mul(twelve)
	deduction := decimal.Min(annualPension, taxable.Mul(pensionCapFrac), pensionCapAmount)
	if deduction.IsNegative() {
		deduction = decimal.Zero
	}
	taxable = taxable.Sub(deduction)

	gross := AnnualTax(taxable, c.Tables.Brackets)
	monthly := NetMonthlyTax(gross, in.Age, in.Dependents, in.HasMedicalAid,
		c.Tables.Rebates, c.Tables.MedicalCredits)

	return PAYEResult{
		TaxableIncome:    taxable,
		PensionDeduction: deduction,
		GrossAnnualTax:   gross,
		MonthlyTax:       monthly,
	}
}

// UIF returns the monthly Unemployment Insurance Fund contribution:
// 1% of gross monthly earnings, capped at the configured ceiling.
func (c Calculator) UIF(grossMonthly decimal.Decimal) decimal.Decimal {
	if grossMonthly.IsNegative() {
		grossMonthly = decimal.Zero
	}
	return decimal.Min(c.Tables.UIFCeiling, grossMonthly.Mul(uifRate)).Round(2)
}
