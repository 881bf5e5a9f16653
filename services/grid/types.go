package grid

import (
	"errors"
	"slices"

	"github.com/meghashyamc/churnsearch/domain"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// PageSizes are the page sizes a grid may show.
var PageSizes = []int{5, 10, 15}

const DefaultPageSize = 5

var ErrInvalidAction = errors.New("invalid grid action")

type SortColumn struct {
	Column    domain.Column `json:"id"`
	Direction Direction     `json:"direction"`
}

// State is the complete view state of one rendered table. Selected row
// indices are positions in the result set, independent of sort and page.
type State struct {
	PageIndex      int
	PageSize       int
	SortColumns    []SortColumn
	VisibleColumns []domain.Column
	RowCount       int

	selected map[int]struct{}
}

// NewState returns a state showing every column on the first page.
// Unsupported page sizes fall back to DefaultPageSize.
func NewState(pageSize int) State {
	if !IsPageSize(pageSize) {
		pageSize = DefaultPageSize
	}
	return State{
		PageSize:       pageSize,
		VisibleColumns: slices.Clone(domain.Columns),
		selected:       map[int]struct{}{},
	}
}

func IsPageSize(n int) bool {
	return slices.Contains(PageSizes, n)
}

func (s State) IsSelected(row int) bool {
	_, ok := s.selected[row]
	return ok
}

func (s State) SelectionCount() int {
	return len(s.selected)
}

// SelectedRows returns the selected row indices in ascending order.
func (s State) SelectedRows() []int {
	rows := make([]int, 0, len(s.selected))
	for row := range s.selected {
		rows = append(rows, row)
	}
	slices.Sort(rows)
	return rows
}

// PageCount is the number of pages RowCount rows fill.
func (s State) PageCount() int {
	if s.PageSize <= 0 || s.RowCount == 0 {
		return 0
	}
	return (s.RowCount + s.PageSize - 1) / s.PageSize
}

// HeaderChecked and HeaderIndeterminate drive the select-all checkbox.
func (s State) HeaderChecked() bool {
	return len(s.selected) > 0
}

func (s State) HeaderIndeterminate() bool {
	return len(s.selected) > 0 && len(s.selected) < s.RowCount
}

func (s State) clone() State {
	clone := s
	clone.SortColumns = slices.Clone(s.SortColumns)
	clone.VisibleColumns = slices.Clone(s.VisibleColumns)
	clone.selected = make(map[int]struct{}, len(s.selected))
	for row := range s.selected {
		clone.selected[row] = struct{}{}
	}
	return clone
}
