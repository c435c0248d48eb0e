package formulation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"sample", sampleDocument, true},
		{"wrapped", `{"formulation": {"ingredients": []}}`, true},
		{"string numbers allowed", `{"ingredients": [{"name": "A", "percent": "x"}]}`, true},
		{"missing ingredients", `{"productName": "A"}`, false},
		{"ingredients not array", `{"ingredients": {"name": "A"}}`, false},
		{"ingredient without name", `{"ingredients": [{"percent": 3}]}`, false},
		{"empty name", `{"ingredients": [{"name": ""}]}`, false},
		{"not an object", `"hello"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tc.doc))
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestValidateDocumentReportsViolations(t *testing.T) {
	err := ValidateDocument([]byte(`{"ingredients": [{"percent": 3}]}`))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.NotEmpty(t, se.Violations)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestValidateDocumentMalformed(t *testing.T) {
	err := ValidateDocument([]byte(`{"ingredients": `))
	assert.True(t, errors.Is(err, ErrMalformedJSON))
}
