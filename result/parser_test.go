package result

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(config.DefaultResultSchemaVersion, config.DefaultFieldAliases())
	require.NoError(t, err)
	return p
}

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestNewParser_UnknownVersion(t *testing.T) {
	_, err := NewParser("bda-custom-output/v0", nil)
	assert.ErrorIs(t, err, ErrUnknownSchemaVersion)
}

func TestSchemaVersions(t *testing.T) {
	assert.Contains(t, SchemaVersions(), config.DefaultResultSchemaVersion)
}

func TestParse_SinglePage(t *testing.T) {
	p := newTestParser(t)

	parsed, err := p.Parse(readTestdata(t, "inv-001.json"))
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:bedrock:us-east-1:123456789012:blueprint/invoice-v1", parsed.MatchedSchemaID)
	assert.Equal(t, 1.0, parsed.MatchedSchemaConfidence)
	assert.Equal(t, "Invoice", parsed.Classification)

	require.Len(t, parsed.Fields, 3)
	byName := map[string]core.ExtractedField{}
	for _, f := range parsed.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "INV-001", byName["invoice_number"].Value)
	assert.Equal(t, 0.88, byName["invoice_number"].Confidence)
	assert.Equal(t, "Acme Supplies", byName["vendor_name"].Value)
	assert.Equal(t, "1250.5", byName["total_amount"].Value, "numbers keep their literal form")
	assert.Equal(t, 0.5, byName["total_amount"].Confidence)

	require.NotNil(t, byName["invoice_number"].PageIndex)
	assert.Equal(t, 0, *byName["invoice_number"].PageIndex)
	assert.Contains(t, string(byName["invoice_number"].Geometry), "boundingBox")

	assert.Equal(t, []string{"due_date"}, parsed.Excluded, "unsuccessful fields are excluded, not zeroed")
}

func TestParse_AlternateFieldNames(t *testing.T) {
	p := newTestParser(t)

	parsed, err := p.Parse(readTestdata(t, "inv-002.json"))
	require.NoError(t, err)

	assert.Equal(t, "invoice-v1", parsed.MatchedSchemaID)
	assert.Equal(t, 0.97, parsed.MatchedSchemaConfidence)
	assert.Equal(t, "Invoice", parsed.Classification)
	assert.Len(t, parsed.Fields, 3)
}

func TestParse_MultiPage(t *testing.T) {
	p := newTestParser(t)

	parsed, err := p.Parse(readTestdata(t, "multipage.json"))
	require.NoError(t, err)

	names := make([]string, len(parsed.Fields))
	for i, f := range parsed.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{
		"billing_address.city",
		"billing_address.street",
		"invoice_number",
		"subtotal",
		"tax_amount",
	}, names)

	fields := map[string]core.ExtractedField{}
	for _, f := range parsed.Fields {
		fields[f.Name] = f
	}

	t.Run("first occurrence wins", func(t *testing.T) {
		assert.Equal(t, "INV-777", fields["invoice_number"].Value)
		assert.Equal(t, 0.95, fields["invoice_number"].Confidence)
	})
	t.Run("value falls back to inference result", func(t *testing.T) {
		assert.Equal(t, "Springfield", fields["billing_address.city"].Value)
	})
	t.Run("page from geometry", func(t *testing.T) {
		require.NotNil(t, fields["tax_amount"].PageIndex)
		assert.Equal(t, 1, *fields["tax_amount"].PageIndex)
	})
	t.Run("page from entry index", func(t *testing.T) {
		require.NotNil(t, fields["subtotal"].PageIndex)
		assert.Equal(t, 1, *fields["subtotal"].PageIndex)
		assert.Empty(t, fields["subtotal"].Geometry)
	})
	t.Run("recovered on later page", func(t *testing.T) {
		assert.Equal(t, 0.75, fields["tax_amount"].Confidence)
		assert.Empty(t, parsed.Excluded)
	})
}

func TestParse_Exclusions(t *testing.T) {
	p := newTestParser(t)

	raw := []byte(`{
		"inference_result": {"Present": "x"},
		"explainability_info": [{
			"Present": {"confidence": 0.9},
			"Null value": {"success": true, "confidence": 0.9, "value": null},
			"No confidence": {"success": true, "value": "y"},
			"Failed": {"success": false, "confidence": 0.9, "value": "z"}
		}]
	}`)

	parsed, err := p.Parse(raw)
	require.NoError(t, err)
	require.Len(t, parsed.Fields, 1)
	assert.Equal(t, "present", parsed.Fields[0].Name)
	assert.Equal(t, "x", parsed.Fields[0].Value)
	assert.ElementsMatch(t, []string{"null_value", "no_confidence", "failed"}, parsed.Excluded)
}

func TestParse_EmptyExplainability(t *testing.T) {
	p := newTestParser(t)

	parsed, err := p.Parse([]byte(`{"explainability_info": []}`))
	require.NoError(t, err)
	assert.Empty(t, parsed.Fields)
}

func TestParse_Malformed(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"not json", `{"explainability_info": [`, nil},
		{"trailing data", `{"explainability_info": []} {}`, nil},
		{"top-level array", `[]`, nil},
		{"missing explainability", `{"inference_result": {}}`, nil},
		{"explainability not array", `{"explainability_info": {}}`, nil},
		{"wrong classification type", `{"classification": 3, "explainability_info": []}`, nil},
		{"confidence above one", `{"explainability_info": [{"total": {"confidence": 1.2, "value": "1"}}]}`, core.ErrInvalidConfidence},
		{"negative confidence", `{"explainability_info": [{"total": {"confidence": -0.1, "value": "1"}}]}`, core.ErrInvalidConfidence},
		{"confidence not a number", `{"explainability_info": [{"total": {"confidence": "high", "value": "1"}}]}`, nil},
		{"scalar beside a field", `{"explainability_info": [{"Invoice number": {"confidence": 0.95, "value": "X"}, "Total amount due": 0.10}]}`, nil},
		{"null member", `{"explainability_info": [{"Invoice number": {"confidence": 0.95, "value": "X"}, "Total amount due": null}]}`, nil},
		{"array of scalars", `{"explainability_info": [{"Invoice number": {"confidence": 0.95, "value": "X"}, "Line items": [0.1, 0.2]}]}`, nil},
		{"renamed leaf members", `{"explainability_info": [{"Invoice number": {"confidence": 0.95, "value": "X"}, "Total amount due": {"score": 0.10, "val": "9"}}]}`, nil},
		{"scalar in nested group", `{"explainability_info": [{"Billing address": {"City": {"confidence": 0.9, "value": "S"}, "Zip": 0.1}}]}`, nil},
		{"scalars in nested array", `{"explainability_info": [{"Billing address": {"Lines": ["a", "b"]}}]}`, nil},
		{"empty nested group", `{"explainability_info": [{"Invoice number": {"confidence": 0.95, "value": "X"}, "Billing address": {}}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tt.raw))
			require.Error(t, err)

			var malformedErr *core.MalformedResultError
			require.True(t, errors.As(err, &malformedErr))
			assert.Equal(t, []byte(tt.raw), malformedErr.Payload, "raw payload is preserved")
			assert.False(t, core.IsRetryable(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParse_DriftNamesField(t *testing.T) {
	p := newTestParser(t)

	tests := map[string]string{
		"renamed leaf":    `{"explainability_info": [{"Total amount due": {"score": 0.10, "val": "9"}}]}`,
		"nested scalar":   `{"explainability_info": [{"Billing address": {"City": {"confidence": 0.9, "value": "S"}, "Zip": 0.1}}]}`,
		"array item type": `{"explainability_info": [{"Billing address": {"Lines": [{"confidence": 0.9, "value": "a"}, 7]}}]}`,
	}
	wantField := map[string]string{
		"renamed leaf":    "total_amount",
		"nested scalar":   "billing_address.zip",
		"array item type": "billing_address.lines.1",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, err := p.Parse([]byte(raw))
			assert.Nil(t, parsed, "no partial result is returned")

			var malformedErr *core.MalformedResultError
			require.ErrorAs(t, err, &malformedErr)
			assert.Contains(t, err.Error(), wantField[name])
		})
	}
}

func TestParse_CustomAliases(t *testing.T) {
	p, err := NewParser(config.DefaultResultSchemaVersion, map[string]string{"Amount": "total"})
	require.NoError(t, err)

	parsed, err := p.Parse([]byte(`{"explainability_info": [{"Amount": {"confidence": 0.6, "value": "9"}}]}`))
	require.NoError(t, err)
	require.Len(t, parsed.Fields, 1)
	assert.Equal(t, "total", parsed.Fields[0].Name)
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Total amount due":    "total_amount_due",
		"VendorSupplier name": "vendor_supplier_name",
		"dueDate":             "due_date",
		"invoice_number":      "invoice_number",
		"  Tax -- amount  ":   "tax_amount",
		"Line2Total":          "line2_total",
		"":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), "input %q", in)
	}
}
