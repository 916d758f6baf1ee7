/*
load.go - Rate-table overrides from external configuration

Each section of the JSON document independently overrides the matching
default table; sections that are absent keep their defaults. The merged
result is validated before it is returned, so a malformed file fails at
load time rather than mis-computing tax per call.

JSON SCHEMA:
  {
    "tax_brackets": [
      {"lower": 0, "upper": 237100, "rate": 0.18, "base_tax": 0},
      {"lower": 1817001, "rate": 0.45, "base_tax": 644489}
    ],
    "rebates": {"primary": 17235, "secondary": 9444, "tertiary": 3145},
    "medical_credits": {"main_member": 364, "first_dependent": 364, "additional_dependent": 246},
    "uif_ceiling": 177.12,
    "pension_options": {
      "default": "B",
      "options": {"B": {"employee_rate": 8.67, "employer_rate": 17.19}}
    },
    "group_life_options": { ... }
  }
*/
package rates

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type bracketJSON struct {
	Lower   float64  `json:"lower"`
	Upper   *float64 `json:"upper,omitempty"` // absent = unbounded
	Rate    float64  `json:"rate"`
	BaseTax float64  `json:"base_tax"`
}

type rebatesJSON struct {
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	Tertiary  float64 `json:"tertiary"`
}

type medicalJSON struct {
	MainMember          float64 `json:"main_member"`
	FirstDependent      float64 `json:"first_dependent"`
	AdditionalDependent float64 `json:"additional_dependent"`
}

type optionJSON struct {
	EmployeeRate float64 `json:"employee_rate"`
	EmployerRate float64 `json:"employer_rate"`
}

type optionTableJSON struct {
	Default string                `json:"default"`
	Options map[string]optionJSON `json:"options"`
}

type tablesJSON struct {
	TaxBrackets      []bracketJSON    `json:"tax_brackets,omitempty"`
	Rebates          *rebatesJSON     `json:"rebates,omitempty"`
	MedicalCredits   *medicalJSON     `json:"medical_credits,omitempty"`
	UIFCeiling       *float64         `json:"uif_ceiling,omitempty"`
	PensionOptions   *optionTableJSON `json:"pension_options,omitempty"`
	GroupLifeOptions *optionTableJSON `json:"group_life_options,omitempty"`
}

// LoadTables reads a JSON override file and merges it over Default().
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read rate tables: %w", err)
	}
	return ParseTables(data)
}

// ParseTables merges a JSON override document over Default() and validates
// the result.
func ParseTables(data []byte) (Tables, error) {
	var doc tablesJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return Tables{}, fmt.Errorf("%w: %v", ErrInvalidTables, err)
	}

	t := Default()

	if doc.TaxBrackets != nil {
		brackets := make(BracketTable, 0, len(doc.TaxBrackets))
		for _, bj := range doc.TaxBrackets {
			b := TaxBracket{
				Lower:   decimal.NewFromFloat(bj.Lower),
				Rate:    decimal.NewFromFloat(bj.Rate),
				BaseTax: decimal.NewFromFloat(bj.BaseTax),
			}
			if bj.Upper != nil {
				u := decimal.NewFromFloat(*bj.Upper)
				b.Upper = &u
			}
			brackets = append(brackets, b)
		}
		t.Brackets = brackets
	}
	if doc.Rebates != nil {
		t.Rebates = RebateSchedule{
			Primary:   decimal.NewFromFloat(doc.Rebates.Primary),
			Secondary: decimal.NewFromFloat(doc.Rebates.Secondary),
			Tertiary:  decimal.NewFromFloat(doc.Rebates.Tertiary),
		}
	}
	if doc.MedicalCredits != nil {
		t.MedicalCredits = MedicalCreditSchedule{
			MainMember:          decimal.NewFromFloat(doc.MedicalCredits.MainMember),
			FirstDependent:      decimal.NewFromFloat(doc.MedicalCredits.FirstDependent),
			AdditionalDependent: decimal.NewFromFloat(doc.MedicalCredits.AdditionalDependent),
		}
	}
	if doc.UIFCeiling != nil {
		t.UIFCeiling = decimal.NewFromFloat(*doc.UIFCeiling)
	}
	if doc.PensionOptions != nil {
		t.PensionOptions = parseOptionTable(*doc.PensionOptions)
	}
	if doc.GroupLifeOptions != nil {
		t.GroupLifeOptions = parseOptionTable(*doc.GroupLifeOptions)
	}

	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

func parseOptionTable(tj optionTableJSON) OptionTable {
	table := OptionTable{
		DefaultCode: tj.Default,
		Options:     make(map[string]ContributionOption, len(tj.Options)),
	}
	for code, oj := range tj.Options {
		table.Options[normalizeCode(code)] = ContributionOption{
			EmployeeRate: decimal.NewFromFloat(oj.EmployeeRate),
			EmployerRate: decimal.NewFromFloat(oj.EmployerRate),
		}
	}
	return table
}
