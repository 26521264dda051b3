package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-notices/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=-created_at,is_read`, skipping fields missing from allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]bool) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !allowed[field] {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindPagination(ctx echo.Context) (core.Pagination, error) {
	var page core.Pagination
	for param, dest := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		val := ctx.QueryParam(param)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return page, core.NewValidationError(nil, core.FieldError{Field: param, Error: param + " must be an integer"})
		}
		*dest = n
	}
	page.Clean()
	return page, nil
}

// bindOptionalBool parses an optional boolean query param; absent means nil.
func bindOptionalBool(ctx echo.Context, param string) (*bool, error) {
	val := ctx.QueryParam(param)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: param, Error: param + " must be a boolean"})
	}
	return &b, nil
}
