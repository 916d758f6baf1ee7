package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/package-engine/rates"
)

// Contribution is the employee/employer pair produced by applying an option's
// percentage rates to a pensionable-earnings base.
type Contribution struct {
	Employee decimal.Decimal
	Employer decimal.Decimal
}

// Total returns the combined monthly cost of both sides.
func (c Contribution) Total() decimal.Decimal { return c.Employee.Add(c.Employer) }

// ContributionFor applies the option's rates to the pensionable base, each
// side independently. No capping happens here: the 27.5%/350k pension limit
// is a tax-deductibility rule and belongs to the tax pipeline.
func ContributionFor(pensionableBase decimal.Decimal, opt rates.ContributionOption) Contribution {
	return Contribution{
		Employee: pensionableBase.Mul(opt.EmployeeRate.Div(hundred)),
		Employer: pensionableBase.Mul(opt.EmployerRate.Div(hundred)),
	}
}
