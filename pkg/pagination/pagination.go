package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts limit and offset query parameters, clamping the limit
// to MaxLimit and falling back to def when the caller sends none.
func FromContext(c echo.Context, def int) Params {
	if def <= 0 || def > MaxLimit {
		def = DefaultLimit
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Probe is the row count a repository should fetch: one past the page so the
// caller can tell whether another page exists without a COUNT query.
func (p Params) Probe() int {
	return p.Limit + 1
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Page wraps a paginated API response.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPage trims rows fetched with Probe down to the page size.
func NewPage[T any](rows []T, p Params) *Page[T] {
	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	return &Page[T]{
		Data:    rows,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: hasMore,
	}
}
