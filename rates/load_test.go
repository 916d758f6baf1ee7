package rates_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/package-engine/rates"
)

func TestParseTables_EmptyDocumentKeepsDefaults(t *testing.T) {
	tables, err := rates.ParseTables([]byte(`{}`))
	require.NoError(t, err)

	assert.Len(t, tables.Brackets, 7)
	assert.True(t, tables.UIFCeiling.Equal(dec(t, "177.12")))
}

func TestParseTables_SectionOverride(t *testing.T) {
	// GIVEN: An override that only touches the UIF ceiling and rebates
	// WHEN: Parsing
	// THEN: Those sections change, everything else keeps its default

	doc := `{
		"uif_ceiling": 200.50,
		"rebates": {"primary": 18000, "secondary": 9500, "tertiary": 3200}
	}`

	tables, err := rates.ParseTables([]byte(doc))
	require.NoError(t, err)

	assert.True(t, tables.UIFCeiling.Equal(dec(t, "200.5")))
	assert.True(t, tables.Rebates.Primary.Equal(dec(t, "18000")))
	assert.Len(t, tables.Brackets, 7)
	assert.Equal(t, "B", tables.PensionOptions.DefaultCode)
}

func TestParseTables_BracketOverride(t *testing.T) {
	doc := `{
		"tax_brackets": [
			{"lower": 0, "upper": 100000, "rate": 0.10, "base_tax": 0},
			{"lower": 100001, "rate": 0.30, "base_tax": 10000}
		]
	}`

	tables, err := rates.ParseTables([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tables.Brackets, 2)
	assert.Nil(t, tables.Brackets[1].Upper)
}

func TestParseTables_MalformedJSONIsFatal(t *testing.T) {
	_, err := rates.ParseTables([]byte(`{"tax_brackets": [`))
	assert.ErrorIs(t, err, rates.ErrInvalidTables)
}

func TestParseTables_InvalidOverrideIsFatal(t *testing.T) {
	// A syntactically fine override that breaks coverage must be refused,
	// not silently patched.
	doc := `{
		"tax_brackets": [
			{"lower": 0, "upper": 100000, "rate": 0.10, "base_tax": 0},
			{"lower": 500000, "rate": 0.30, "base_tax": 10000}
		]
	}`

	_, err := rates.ParseTables([]byte(doc))
	assert.ErrorIs(t, err, rates.ErrInvalidTables)
}

func TestParseTables_OptionCodesNormalized(t *testing.T) {
	doc := `{
		"group_life_options": {
			"default": "basic",
			"options": {"basic": {"employee_rate": 0.3, "employer_rate": 0.6}}
		}
	}`

	tables, err := rates.ParseTables([]byte(doc))
	require.NoError(t, err)

	opt, fellBack := tables.GroupLifeOptions.Resolve("BASIC")
	assert.False(t, fellBack)
	assert.True(t, opt.EmployerRate.Equal(dec(t, "0.6")))
}

func TestLoadTables_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"uif_ceiling": 180}`), 0o644))

	tables, err := rates.LoadTables(path)
	require.NoError(t, err)
	assert.True(t, tables.UIFCeiling.Equal(dec(t, "180")))
}

func TestLoadTables_MissingFile(t *testing.T) {
	_, err := rates.LoadTables(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
