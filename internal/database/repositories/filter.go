package repositories

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// PageSize is the fixed number of rows returned by the admin log lists
const PageSize = 50

// LogFilter narrows the admin log lists. Zero values mean "no filter".
type LogFilter struct {
	From    *time.Time
	To      *time.Time
	Country string
	Search  string // free text across ip, country, city and url
	Page    int    // 1-based
}

// Page is one page of rows plus the exact number of matching rows.
type Page[T any] struct {
	Rows     []T   `json:"rows"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func (f LogFilter) page() int {
	if f.Page < 1 {
		return 1
	}
	return f.Page
}

func (f LogFilter) offset() int {
	return (f.page() - 1) * PageSize
}

// apply adds the filter conditions. timeColumn is the row timestamp and
// searchColumns are matched with LIKE for the free-text search.
func (f LogFilter) apply(query *gorm.DB, timeColumn string, searchColumns []string) *gorm.DB {
	if f.From != nil {
		query = query.Where(timeColumn+" >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where(timeColumn+" <= ?", *f.To)
	}
	if country := strings.TrimSpace(f.Country); country != "" {
		query = query.Where("country = ?", country)
	}
	if search := strings.TrimSpace(f.Search); search != "" && len(searchColumns) > 0 {
		conds := make([]string, len(searchColumns))
		args := make([]interface{}, len(searchColumns))
		pattern := "%" + escapeLike(search) + "%"
		for i, col := range searchColumns {
			conds[i] = col + " LIKE ? ESCAPE '\\'"
			args[i] = pattern
		}
		query = query.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	return query
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ReasonCount is one row of the block-reason breakdown
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}
