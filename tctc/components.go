/*
Package tctc is the Total-Cost-to-Company package engine: it aggregates a
compensation package into a single employer-cost figure, validates proposed
component changes against a fixed cost ceiling, and owns the package
lifecycle (draft -> submitted) with an append-only audit trail.

Data flows one direction: rate tables -> tax/contribution calculators ->
TCTC aggregation -> budget validation -> lifecycle. Everything up to the
lifecycle is a pure computation; only the lifecycle touches storage.

KEY INVARIANTS:
  - A package's cost ceiling (Limit) is fixed at creation and never changes.
  - A DRAFT package's CurrentTotal always equals TotalCost(components);
    it is recomputed on every accepted mutation, never stored stale.
  - A SUBMITTED package's CurrentTotal is frozen at submission.
  - Medical aid and UIF are deductions from net pay, not employer cost:
    they never contribute to the total.

CONCURRENCY:
  The engine is stateless and side-effect free; the caller must ensure
  at-most-one concurrent writer per employee package, because
  validate-then-apply is not atomic across interleaved callers.
*/
package tctc

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPONENT FIELD NAMES - the external vocabulary of a package
// =============================================================================

// Field names match the payroll-system column vocabulary the seed data and
// proposed-change maps use.
const (
	FieldBasicSalary        = "basic_salary" // TPE: total pensionable emolument
	FieldCarAllowance       = "car_allowance"
	FieldHousingAllowance   = "housing_allowance"
	FieldCellphoneAllowance = "cellphone_allowance"
	FieldDataAllowance      = "data_service_allowance"
	FieldCashAllowance      = "cash_allowance"
	FieldBonus              = "bonus"
	FieldMedicalAid         = "medical_aid"
	FieldUIF                = "uif"
	FieldPensionOption      = "pension_option"
	FieldGroupLifeOption    = "group_life_option"
)

// Components is the flat set of monetary fields and option codes that make
// up one employee's package. All monetary fields are monthly, non-negative
// amounts; a zero value means the component is absent.
type Components struct {
	BasicSalary        decimal.Decimal
	CarAllowance       decimal.Decimal
	HousingAllowance   decimal.Decimal
	CellphoneAllowance decimal.Decimal
	DataAllowance      decimal.Decimal
	CashAllowance      decimal.Decimal
	OtherAllowances    []decimal.Decimal // itemized extras, summed into the total
	Bonus              decimal.Decimal   // annual bonus provision
	MedicalAid         decimal.Decimal   // employee medical-aid cost; not employer cost
	UIF                decimal.Decimal   // employee deduction; not employer cost
	PensionOption      string
	GroupLifeOption    string
}

// Clone returns a deep copy. Validation always works on a copy so a
// rejected change can never leak into the caller's package.
func (c Components) Clone() Components {
	out := c
	if c.OtherAllowances != nil {
		out.OtherAllowances = make([]decimal.Decimal, len(c.OtherAllowances))
		copy(out.OtherAllowances, c.OtherAllowances)
	}
	return out
}

// monetaryFields maps field name -> accessor, shared by Apply and the audit
// diff in the lifecycle.
var monetaryFields = map[string]struct {
	get func(*Components) decimal.Decimal
	set func(*Components, decimal.Decimal)
}{
	FieldBasicSalary:        {func(c *Components) decimal.Decimal { return c.BasicSalary }, func(c *Components, v decimal.Decimal) { c.BasicSalary = v }},
	FieldCarAllowance:       {func(c *Components) decimal.Decimal { return c.CarAllowance }, func(c *Components, v decimal.Decimal) { c.CarAllowance = v }},
	FieldHousingAllowance:   {func(c *Components) decimal.Decimal { return c.HousingAllowance }, func(c *Components, v decimal.Decimal) { c.HousingAllowance = v }},
	FieldCellphoneAllowance: {func(c *Components) decimal.Decimal { return c.CellphoneAllowance }, func(c *Components, v decimal.Decimal) { c.CellphoneAllowance = v }},
	FieldDataAllowance:      {func(c *Components) decimal.Decimal { return c.DataAllowance }, func(c *Components, v decimal.Decimal) { c.DataAllowance = v }},
	FieldCashAllowance:      {func(c *Components) decimal.Decimal { return c.CashAllowance }, func(c *Components, v decimal.Decimal) { c.CashAllowance = v }},
	FieldBonus:              {func(c *Components) decimal.Decimal { return c.Bonus }, func(c *Components, v decimal.Decimal) { c.Bonus = v }},
	FieldMedicalAid:         {func(c *Components) decimal.Decimal { return c.MedicalAid }, func(c *Components, v decimal.Decimal) { c.MedicalAid = v }},
	FieldUIF:                {func(c *Components) decimal.Decimal { return c.UIF }, func(c *Components, v decimal.Decimal) { c.UIF = v }},
}

// orderedMonetaryFields fixes the iteration order for audit diffs so a
// multi-field change always produces entries in the same sequence.
var orderedMonetaryFields = []string{
	FieldBasicSalary,
	FieldCarAllowance,
	FieldHousingAllowance,
	FieldCellphoneAllowance,
	FieldDataAllowance,
	FieldCashAllowance,
	FieldBonus,
	FieldMedicalAid,
	FieldUIF,
}

// Changes is a partial mapping of field name to new value: numeric values
// for monetary fields, option-code strings for the pension and group-life
// selections.
type Changes map[string]any

// Apply returns a copy of c with the changes applied. A non-numeric value
// for a monetary field is rejected with MalformedValueError before any
// computation runs; nothing is partially applied. Field names outside the
// component vocabulary are ignored.
func (c Components) Apply(changes Changes) (Components, error) {
	out := c.Clone()
	for field, raw := range changes {
		switch field {
		case FieldPensionOption, FieldGroupLifeOption:
			code, ok := raw.(string)
			if !ok {
				return Components{}, &MalformedValueError{Field: field, Value: raw}
			}
			if field == FieldPensionOption {
				out.PensionOption = code
			} else {
				out.GroupLifeOption = code
			}
		default:
			acc, known := monetaryFields[field]
			if !known {
				continue
			}
			v, err := toDecimal(raw)
			if err != nil || v.IsNegative() {
				return Components{}, &MalformedValueError{Field: field, Value: raw}
			}
			acc.set(&out, v)
		}
	}
	return out, nil
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return decimal.Decimal{}, fmt.Errorf("not numeric: %q", v)
		}
		return decimal.NewFromString(v)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", raw)
	}
}
