/*
Package rates defines the statutory rate tables the package engine computes
against: progressive tax brackets, age-banded rebates, medical tax credits,
pension and group-life contribution options, and the UIF ceiling.

PURPOSE:
  Every figure the calculators use comes from an explicit Tables value passed
  in at engine construction. Nothing in this module reads ambient/global
  state; Default() carries the hard-coded statutory values, and load.go
  applies overrides from an external configuration source.

KEY CONCEPTS:
  - BracketTable: ordered, contiguous brackets covering [0, +inf)
  - RebateSchedule: flat annual rebates, additive by age threshold
  - MedicalCreditSchedule: flat monthly credits per covered life
  - OptionTable: contribution rates keyed by option code, with a
    documented default for unknown codes ("none" always means zero)

VALIDATION:
  Tables.Validate() rejects malformed configuration. Callers treat a
  validation failure as fatal at startup: a corrupted tax table silently
  computing wrong tax is worse than refusing to start.

SEE ALSO:
  - load.go: JSON override parsing
  - payroll package: the calculators that consume these tables
*/
package rates

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TAX BRACKETS
// =============================================================================

// TaxBracket is one band of the progressive income-tax table. Bounds are
// annual amounts. Upper is nil for the top (unbounded) bracket.
type TaxBracket struct {
	Lower   decimal.Decimal
	Upper   *decimal.Decimal
	Rate    decimal.Decimal // fraction in [0, 1]
	BaseTax decimal.Decimal // cumulative tax owed at Lower
}

// BracketTable is ordered ascending by Lower and must cover [0, +inf)
// with no gaps and no overlaps. Immutable per tax year.
type BracketTable []TaxBracket

// Matches reports whether income falls at or below the bracket's upper
// bound. Brackets are scanned ascending with the first match winning, so a
// fractional income between one bracket's integer upper bound and the next
// bracket's lower bound lands in the higher bracket instead of falling
// through. Lower bounds are checked by Validate, not here.
func (b TaxBracket) Matches(income decimal.Decimal) bool {
	return b.Upper == nil || income.LessThanOrEqual(*b.Upper)
}

// =============================================================================
// REBATES AND MEDICAL CREDITS
// =============================================================================

// RebateSchedule holds the flat annual tax rebates. Secondary applies from
// age 65, tertiary from age 75; they are additive.
type RebateSchedule struct {
	Primary   decimal.Decimal
	Secondary decimal.Decimal
	Tertiary  decimal.Decimal
}

// TotalFor returns the combined annual rebate for the given age.
func (r RebateSchedule) TotalFor(age int) decimal.Decimal {
	total := r.Primary
	if age >= 65 {
		total = total.Add(r.Secondary)
	}
	if age >= 75 {
		total = total.Add(r.Tertiary)
	}
	return total
}

// MedicalCreditSchedule holds the monthly medical-scheme tax credits.
// The main member and the first dependent use the first two rates; every
// further dependent uses the additional rate.
type MedicalCreditSchedule struct {
	MainMember          decimal.Decimal
	FirstDependent      decimal.Decimal
	AdditionalDependent decimal.Decimal
}

// =============================================================================
// CONTRIBUTION OPTIONS (pension / group life)
// =============================================================================

// ContributionOption is a pair of percentage rates applied to the
// pensionable-earnings base.
type ContributionOption struct {
	EmployeeRate decimal.Decimal // percent, e.g. 8.67
	EmployerRate decimal.Decimal // percent, e.g. 17.19
}

// OptionTable maps option codes (upper-cased) to contribution rates.
// Unknown codes resolve to DefaultCode, never to zero; the literal code
// "none" always resolves to zero rates.
type OptionTable struct {
	Options     map[string]ContributionOption
	DefaultCode string
}

// CodeNone disables a contribution entirely.
const CodeNone = "NONE"

func normalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Resolve looks up an option code case-insensitively. fellBack is true when
// the code was unknown and the default was substituted, so callers can log
// the fallback; it is never an error.
func (t OptionTable) Resolve(code string) (opt ContributionOption, fellBack bool) {
	key := normalizeCode(code)
	if key == CodeNone {
		return ContributionOption{EmployeeRate: decimal.Zero, EmployerRate: decimal.Zero}, false
	}
	if o, ok := t.Options[key]; ok {
		return o, false
	}
	return t.Options[strings.ToUpper(t.DefaultCode)], true
}

// =============================================================================
// TABLES - the complete rate configuration
// =============================================================================

// Tables bundles every rate the engine needs for one tax year.
type Tables struct {
	Brackets         BracketTable
	Rebates          RebateSchedule
	MedicalCredits   MedicalCreditSchedule
	PensionOptions   OptionTable
	GroupLifeOptions OptionTable
	UIFCeiling       decimal.Decimal // monthly amount, not a percentage
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bracket(lower, upper, rate, base string) TaxBracket {
	b := TaxBracket{Lower: dec(lower), Rate: dec(rate), BaseTax: dec(base)}
	if upper != "" {
		u := dec(upper)
		b.Upper = &u
	}
	return b
}

// Default returns the 2024/25 statutory tables.
func Default() Tables {
	return Tables{
		Brackets: BracketTable{
			bracket("0", "237100", "0.18", "0"),
			bracket("237101", "370500", "0.26", "42678"),
			bracket("370501", "512800", "0.31", "77362"),
			bracket("512801", "673000", "0.36", "121475"),
			bracket("673001", "857900", "0.39", "179147"),
			bracket("857901", "1817000", "0.41", "251258"),
			bracket("1817001", "", "0.45", "644489"),
		},
		Rebates: RebateSchedule{
			Primary:   dec("17235"),
			Secondary: dec("9444"),
			Tertiary:  dec("3145"),
		},
		MedicalCredits: MedicalCreditSchedule{
			MainMember:          dec("364"),
			FirstDependent:      dec("364"),
			AdditionalDependent: dec("246"),
		},
		PensionOptions: OptionTable{
			DefaultCode: "B",
			Options: map[string]ContributionOption{
				"A":     {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
				"B":     {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
				"C":     {EmployeeRate: dec("8.67"), EmployerRate: dec("9.45")},
				"D":     {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
				"E":     {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
				"F":     {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
				"G":     {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
				"SAMWU": {EmployeeRate: dec("8.67"), EmployerRate: dec("17.19")},
			},
		},
		GroupLifeOptions: OptionTable{
			DefaultCode: "STANDARD",
			Options: map[string]ContributionOption{
				"STANDARD": {EmployeeRate: dec("0.2"), EmployerRate: dec("0.5")},
				"ENHANCED": {EmployeeRate: dec("1"), EmployerRate: dec("2")},
			},
		},
		UIFCeiling: dec("177.12"),
	}
}
