package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProfile = `{
  "name": "Jan Kowalski",
  "first_name": "Jan",
  "position": "Go Developer",
  "why_points": ["8 years of Go"],
  "education": [{"dates": "2010 – 2015", "institution": "AGH", "degree": "MSc", "location": "Kraków, Poland"}],
  "skills": [{"label": "Languages:", "content": "Go, Python"}],
  "certifications": [],
  "languages": ["Polish – native"],
  "experience": [{"dates": "03.2020 – currently", "company": "Acme", "position": "Engineer", "responsibilities": ["APIs"], "technologies": ["Go"]}]
}`

func TestLoad_CandidateProfile(t *testing.T) {
	s1, err := Load(CandidateProfile)
	require.NoError(t, err)
	s2, err := Load(CandidateProfile)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("missing.schema.json")

	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "missing.schema.json", loadErr.Path)
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(CandidateProfile, []byte(validProfile)))
}

func TestValidate_MissingFields(t *testing.T) {
	err := Validate(CandidateProfile, []byte(`{"name": "Jan", "first_name": "Jan", "position": "Dev", "why_points": [], "education": [], "skills": [], "languages": []}`))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"certifications", "experience"}, ve.MissingRequired())
	assert.True(t, ve.OnlyMissingRequired())
	assert.Contains(t, ve.Error(), "experience")
}

func TestValidate_WrongType(t *testing.T) {
	doc := []byte(`{"name": "Jan", "first_name": "Jan", "position": "Dev", "why_points": "many", "education": [], "skills": [], "certifications": [], "languages": [], "experience": []}`)
	err := Validate(CandidateProfile, doc)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Empty(t, ve.MissingRequired())
	assert.False(t, ve.OnlyMissingRequired())
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "why_points", ve.Errors[0].Field)
	assert.Equal(t, "invalid_type", ve.Errors[0].Type)
}

func TestValidate_NotAnObject(t *testing.T) {
	err := Validate(CandidateProfile, []byte(`["a", "b"]`))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "(root)", ve.Errors[0].Field)
}

func TestValidate_NestedRequiredIsNotRootMissing(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{{Field: "experience.0.company", Type: "required"}}}
	assert.Empty(t, ve.MissingRequired())
	assert.False(t, ve.OnlyMissingRequired())
}
