package filter

import (
	"testing"

	"github.com/siahsang/portfolio/internal/validator"
	"github.com/stretchr/testify/assert"
)

func TestValidateFilters(t *testing.T) {
	v := validator.New()
	ValidateFilters(NewFilter(20, 0), v)
	assert.True(t, v.IsValid())

	v = validator.New()
	ValidateFilters(NewFilter(101, -1), v)
	assert.Contains(t, v.Errors, "limit")
	assert.Contains(t, v.Errors, "offset")
}

func TestFilterSQL(t *testing.T) {
	assert.Equal(t, "", NewFilter(0, 0).SQL())
	assert.False(t, NewFilter(0, 0).IsPaged())
	assert.Equal(t, " LIMIT 5 OFFSET 10", NewFilter(5, 10).SQL())
	assert.Equal(t, " LIMIT 1000000 OFFSET 3", NewFilter(0, 3).SQL())
}
