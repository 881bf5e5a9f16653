package grid

import (
	"slices"

	"github.com/meghashyamc/churnsearch/domain"
)

type PageOptions struct {
	PageIndex     int
	PageSize      int
	SortField     domain.Column
	SortDirection Direction
}

type Page struct {
	Items          []domain.Document
	TotalItemCount int
}

// Paginate sorts rows on SortField, when given, and slices out one page.
// Without a page size, all sorted rows are returned.
func Paginate(rows []domain.Document, options PageOptions) Page {
	items := slices.Clone(rows)
	if options.SortField != "" {
		items = SortRows(items, []SortColumn{{Column: options.SortField, Direction: options.SortDirection}})
	}

	page := Page{TotalItemCount: len(rows)}
	if options.PageSize <= 0 {
		page.Items = items
		return page
	}

	start := options.PageIndex * options.PageSize
	if options.PageIndex < 0 || start >= len(items) {
		page.Items = []domain.Document{}
		return page
	}
	end := min(start+options.PageSize, len(items))
	page.Items = items[start:end]
	return page
}

// SortRows returns a stably sorted copy of rows. Earlier columns take
// precedence; ties keep their input order in either direction.
func SortRows(rows []domain.Document, columns []SortColumn) []domain.Document {
	sorted := slices.Clone(rows)
	if len(columns) == 0 {
		return sorted
	}
	slices.SortStableFunc(sorted, func(a, b domain.Document) int {
		for _, column := range columns {
			c := domain.Compare(a, b, column.Column)
			if column.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return sorted
}

// Row is a document on screen along with its position in the result set.
type Row struct {
	Index    int
	Document domain.Document
}

// VisibleRows applies the sort and page of state to rows.
func VisibleRows(rows []domain.Document, state State) []Row {
	indexed := make([]Row, len(rows))
	for i, row := range rows {
		indexed[i] = Row{Index: i, Document: row}
	}
	if len(state.SortColumns) > 0 {
		slices.SortStableFunc(indexed, func(a, b Row) int {
			for _, column := range state.SortColumns {
				c := domain.Compare(a.Document, b.Document, column.Column)
				if column.Direction == Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if state.PageSize <= 0 {
		return indexed
	}
	start := state.PageIndex * state.PageSize
	if start >= len(indexed) {
		return []Row{}
	}
	return indexed[start:min(start+state.PageSize, len(indexed))]
}
