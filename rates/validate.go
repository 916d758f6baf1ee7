package rates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidTables wraps every table-validation failure so callers can treat
// any malformed configuration as fatal with a single errors.Is check.
var ErrInvalidTables = errors.New("invalid rate tables")

var one = decimal.NewFromInt(1)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTables, fmt.Sprintf(format, args...))
}

// Validate checks the bracket table covers [0, +inf) contiguously.
// Bounds are currency amounts, so "contiguous" means each lower bound sits
// at most one currency unit above the previous upper bound.
func (t BracketTable) Validate() error {
	if len(t) == 0 {
		return invalid("bracket table is empty")
	}
	if !t[0].Lower.IsZero() {
		return invalid("first bracket must start at 0, got %s", t[0].Lower)
	}
	for i, b := range t {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return invalid("bracket %d rate %s outside [0,1]", i, b.Rate)
		}
		if b.BaseTax.IsNegative() {
			return invalid("bracket %d has negative base tax", i)
		}
		if b.Upper == nil {
			if i != len(t)-1 {
				return invalid("bracket %d is unbounded but not last", i)
			}
			continue
		}
		if b.Upper.LessThanOrEqual(b.Lower) {
			return invalid("bracket %d upper bound %s not above lower bound %s", i, b.Upper, b.Lower)
		}
		if i == len(t)-1 {
			return invalid("last bracket must be unbounded")
		}
		gap := t[i+1].Lower.Sub(*b.Upper)
		if gap.LessThanOrEqual(decimal.Zero) {
			return invalid("brackets %d and %d overlap", i, i+1)
		}
		if gap.GreaterThan(one) {
			return invalid("gap between brackets %d and %d", i, i+1)
		}
	}
	return nil
}

func (t OptionTable) validate(name string) error {
	if len(t.Options) == 0 {
		return invalid("%s option table is empty", name)
	}
	if _, ok := t.Options[strings.ToUpper(t.DefaultCode)]; !ok {
		return invalid("%s default option %q not present in table", name, t.DefaultCode)
	}
	for code, opt := range t.Options {
		if opt.EmployeeRate.IsNegative() || opt.EmployerRate.IsNegative() {
			return invalid("%s option %q has a negative rate", name, code)
		}
	}
	return nil
}

// Validate checks every table. An error here means the configuration is
// corrupt and the engine must not start.
func (t Tables) Validate() error {
	if err := t.Brackets.Validate(); err != nil {
		return err
	}
	for _, amt := range []decimal.Decimal{
		t.Rebates.Primary, t.Rebates.Secondary, t.Rebates.Tertiary,
		t.MedicalCredits.MainMember, t.MedicalCredits.FirstDependent, t.MedicalCredits.AdditionalDependent,
	} {
		if amt.IsNegative() {
			return invalid("rebate and medical-credit amounts must be non-negative")
		}
	}
	if err := t.PensionOptions.validate("pension"); err != nil {
		return err
	}
	if err := t.GroupLifeOptions.validate("group life"); err != nil {
		return err
	}
	if t.UIFCeiling.IsNegative() {
		return invalid("UIF ceiling must be non-negative")
	}
	return nil
}
