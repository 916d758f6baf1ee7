/*
engine.go - TCTC aggregation and budget validation

The engine is the pure heart of the package: given components and a ceiling
it produces the total, the verdict, and the advisory warnings. It holds the
rate tables and a logger but no package state.

VALIDATION MODEL:
  - Hard rule: total <= limit. Breach -> LimitExceededError, change rejected.
  - Soft rules: composition bands (base share, car share, bonus share).
    Breach -> warning strings, change still allowed.
  The caller decides what to do with warnings; the engine never blocks on
  them.
*/
package tctc

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/package-engine/payroll"
	"github.com/warp/package-engine/rates"
)

var hundred = decimal.NewFromInt(100)

// Bands are the advisory composition thresholds, expressed as percentages
// of the package limit. Zero-valued bands make no sense; use DefaultBands
// or load overrides through the config package.
type Bands struct {
	BaseMin  decimal.Decimal // basic salary floor, percent of limit
	BaseMax  decimal.Decimal // basic salary ceiling, percent of limit
	CarMin   decimal.Decimal // car allowance floor when a car allowance exists
	BonusMin decimal.Decimal // bonus floor when a bonus exists
	BonusMax decimal.Decimal // bonus ceiling when a bonus exists
}

// DefaultBands returns the remuneration-policy defaults: basic salary
// between 50% and 70% of the limit, car allowance at least 30% when
// present, bonus between 10% and 70% when present.
func DefaultBands() Bands {
	return Bands{
		BaseMin:  decimal.NewFromInt(50),
		BaseMax:  decimal.NewFromInt(70),
		CarMin:   decimal.NewFromInt(30),
		BonusMin: decimal.NewFromInt(10),
		BonusMax: decimal.NewFromInt(70),
	}
}

// Engine computes totals and validates proposed packages against a limit.
// Safe for concurrent use; it never mutates its inputs.
type Engine struct {
	tables rates.Tables
	bands  Bands
	calc   payroll.Calculator
	log    *logrus.Logger
}

// NewEngine builds an engine over a validated rate-table set. Malformed
// tables are refused outright; an engine that would compute wrong statutory
// figures must not exist.
func NewEngine(tables rates.Tables, bands Bands, log *logrus.Logger) (*Engine, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		tables: tables,
		bands:  bands,
		calc:   payroll.Calculator{Tables: tables},
		log:    log,
	}, nil
}

// Tables exposes the engine's rate tables for callers that need to run the
// payroll calculators directly.
func (e *Engine) Tables() rates.Tables { return e.tables }

// Calculator exposes the bound PAYE/UIF calculator.
func (e *Engine) Calculator() payroll.Calculator { return e.calc }

// resolveOption resolves an option code, logging when an unknown code fell
// back to the table default. Unknown codes are seed-data noise, not errors.
func (e *Engine) resolveOption(kind, code string, table rates.OptionTable) rates.ContributionOption {
	opt, fellBack := table.Resolve(code)
	if fellBack {
		e.log.WithFields(logrus.Fields{
			"kind":    kind,
			"code":    code,
			"default": table.DefaultCode,
		}).Warn("unknown contribution option code, using default")
	}
	return opt
}

// PensionContribution returns the employee/employer pension pair for the
// components' option, on the basic-salary base.
func (e *Engine) PensionContribution(c Components) payroll.Contribution {
	opt := e.resolveOption("pension", c.PensionOption, e.tables.PensionOptions)
	return payroll.ContributionFor(c.BasicSalary, opt)
}

// GroupLifeContribution returns the employee/employer group-life pair for
// the components' option, on the basic-salary base.
func (e *Engine) GroupLifeContribution(c Components) payroll.Contribution {
	opt := e.resolveOption("group life", c.GroupLifeOption, e.tables.GroupLifeOptions)
	return payroll.ContributionFor(c.BasicSalary, opt)
}

// TotalCost aggregates the employer's cost: every cash component plus the
// employer share of pension and group life. Medical aid and UIF are
// employee-side deductions and deliberately excluded.
func (e *Engine) TotalCost(c Components) decimal.Decimal {
	total := c.BasicSalary.
		Add(c.CarAllowance).
		Add(c.HousingAllowance).
		Add(c.CellphoneAllowance).
		Add(c.DataAllowance).
		Add(c.CashAllowance).
		Add(c.Bonus)
	for _, a := range c.OtherAllowances {
		total = total.Add(a)
	}
	total = total.Add(e.PensionContribution(c).Employer)
	total = total.Add(e.GroupLifeContribution(c).Employer)
	return total.Round(2)
}

// GrossPay is the employee-facing monthly gross: the cash components
// without the employer contributions.
func (e *Engine) GrossPay(c Components) decimal.Decimal {
	gross := c.BasicSalary.
		Add(c.CarAllowance).
		Add(c.HousingAllowance).
		Add(c.CellphoneAllowance).
		Add(c.DataAllowance).
		Add(c.CashAllowance)
	for _, a := range c.OtherAllowances {
		gross = gross.Add(a)
	}
	return gross
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationResult is the full verdict on a proposed component set.
type ValidationResult struct {
	Valid       bool
	LimitError  *LimitExceededError // nil when Valid
	Warnings    []string            // soft band breaches, advisory only
	Components  Components          // the proposed set that was evaluated
	NewTotal    decimal.Decimal
	Remaining   decimal.Decimal // limit minus new total; negative on breach
	Percentages map[string]decimal.Decimal
}

// Validate evaluates a proposed component set against the limit. The hard
// ceiling decides Valid; the composition bands only produce warnings.
func (e *Engine) Validate(proposed Components, limit decimal.Decimal) ValidationResult {
	total := e.TotalCost(proposed)
	res := ValidationResult{
		Valid:       true,
		Components:  proposed,
		NewTotal:    total,
		Remaining:   limit.Sub(total),
		Percentages: e.percentages(proposed, limit),
	}

	if total.GreaterThan(limit) {
		res.Valid = false
		res.LimitError = &LimitExceededError{Attempted: total, Limit: limit}
		return res
	}

	res.Warnings = e.bandWarnings(res.Percentages, proposed)
	return res
}

// percentages expresses the key components as a share of the limit. A zero
// or negative limit yields all-zero percentages rather than a division
// blow-up.
func (e *Engine) percentages(c Components, limit decimal.Decimal) map[string]decimal.Decimal {
	pcts := map[string]decimal.Decimal{
		FieldBasicSalary:  decimal.Zero,
		FieldCarAllowance: decimal.Zero,
		FieldBonus:        decimal.Zero,
	}
	if !limit.IsPositive() {
		return pcts
	}
	pcts[FieldBasicSalary] = c.BasicSalary.Mul(hundred).Div(limit).Round(2)
	pcts[FieldCarAllowance] = c.CarAllowance.Mul(hundred).Div(limit).Round(2)
	pcts[FieldBonus] = c.Bonus.Mul(hundred).Div(limit).Round(2)
	return pcts
}

func (e *Engine) bandWarnings(pcts map[string]decimal.Decimal, c Components) []string {
	var warnings []string

	base := pcts[FieldBasicSalary]
	switch {
	case base.LessThan(e.bands.BaseMin):
		warnings = append(warnings, fmt.Sprintf(
			"basic salary is %s%% of the package limit, below the %s-%s%% band",
			base.StringFixed(2), e.bands.BaseMin, e.bands.BaseMax))
	case base.GreaterThan(e.bands.BaseMax):
		warnings = append(warnings, fmt.Sprintf(
			"basic salary is %s%% of the package limit, above the %s-%s%% band",
			base.StringFixed(2), e.bands.BaseMin, e.bands.BaseMax))
	}

	if c.CarAllowance.IsPositive() {
		if car := pcts[FieldCarAllowance]; car.LessThan(e.bands.CarMin) {
			warnings = append(warnings, fmt.Sprintf(
				"car allowance is %s%% of the package limit, below the %s%% floor",
				car.StringFixed(2), e.bands.CarMin))
		}
	}

	if c.Bonus.IsPositive() {
		switch bonus := pcts[FieldBonus]; {
		case bonus.LessThan(e.bands.BonusMin):
			warnings = append(warnings, fmt.Sprintf(
				"bonus is %s%% of the package limit, below the %s-%s%% band",
				bonus.StringFixed(2), e.bands.BonusMin, e.bands.BonusMax))
		case bonus.GreaterThan(e.bands.BonusMax):
			warnings = append(warnings, fmt.Sprintf(
				"bonus is %s%% of the package limit, above the %s-%s%% band",
				bonus.StringFixed(2), e.bands.BonusMin, e.bands.BonusMax))
		}
	}

	return warnings
}
