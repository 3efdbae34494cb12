package filter

import (
	"strconv"

	"github.com/siahsang/portfolio/internal/validator"
)

// Filter narrows a list query. A zero Limit means "everything", which is
// what the dashboard asks for; the public pages page through with limit/offset.
type Filter struct {
	Limit  int64
	Offset int64
}

func NewFilter(limit, offset int64) Filter {
	return Filter{
		Limit:  limit,
		Offset: offset,
	}
}

func (f Filter) IsPaged() bool {
	return f.Limit > 0 || f.Offset > 0
}

func ValidateFilters(filters Filter, v *validator.Validator) {
	v.Check(filters.Limit >= 0, "limit", "must be greater than or equal to 0")
	v.Check(filters.Limit <= 100, "limit", "must be a maximum of 100")
	v.Check(filters.Offset >= 0, "offset", "must be greater than or equal to 0")
	v.Check(filters.Offset <= 10_000_000, "offset", "must be a maximum of 10_000_000")
}

// SQL returns the LIMIT/OFFSET clause for the filter, or "" when unpaged.
func (f Filter) SQL() string {
	switch {
	case f.Limit > 0:
		return " LIMIT " + strconv.FormatInt(f.Limit, 10) + " OFFSET " + strconv.FormatInt(f.Offset, 10)
	case f.Offset > 0:
		return " LIMIT 1000000 OFFSET " + strconv.FormatInt(f.Offset, 10)
	default:
		return ""
	}
}
