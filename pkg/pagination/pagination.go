// Package pagination normalizes the page/limit query pair shared by every
// list endpoint, so handlers never clamp values themselves.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit keeps contract and order listings small enough for the
	// approval dashboard to render without scrolling pressure.
	DefaultLimit = 20
	// MaxLimit stops a single request from pulling a whole table.
	MaxLimit = 100
)

// Params is a sanitized page/limit pair. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Offset converts the pair into a row offset for SQL queries.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Parse reads page and limit from the request query string. Missing,
// malformed, or non-positive values fall back to the first page with the
// default limit; oversized limits are capped at MaxLimit.
func Parse(c *gin.Context) Params {
	p := Params{Page: 1, Limit: DefaultLimit}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}
