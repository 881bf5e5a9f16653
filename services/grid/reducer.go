package grid

import (
	"fmt"

	"github.com/meghashyamc/churnsearch/domain"
)

// Action is one discrete grid transition.
type Action interface {
	apply(State) (State, error)
}

type SetPage struct{ Index int }
type SetPageSize struct{ Size int }
type SetSort struct{ Columns []SortColumn }
type SetVisibleColumns struct{ Columns []domain.Column }
type SelectRow struct {
	Row int
	On  bool
}
type SelectAll struct{}
type ClearSelection struct{}
type ToggleHeaderCheckbox struct{}

// SetRowCount follows a new result set. Pages past the end and selections of
// rows that no longer exist are dropped; anything else is kept.
type SetRowCount struct{ Count int }

// Reduce applies action to state. An action whose preconditions do not hold
// leaves the state untouched and reports ErrInvalidAction.
func Reduce(state State, action Action) (State, error) {
	if action == nil {
		return state, fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	next, err := action.apply(state.clone())
	if err != nil {
		return state, err
	}
	return next, nil
}

func (a SetPage) apply(s State) (State, error) {
	if a.Index < 0 {
		return s, fmt.Errorf("%w: page %d", ErrInvalidAction, a.Index)
	}
	if a.Index > 0 && a.Index*s.PageSize >= s.RowCount {
		return s, fmt.Errorf("%w: page %d is past the last row", ErrInvalidAction, a.Index)
	}
	s.PageIndex = a.Index
	return s, nil
}

func (a SetPageSize) apply(s State) (State, error) {
	if !IsPageSize(a.Size) {
		return s, fmt.Errorf("%w: page size %d", ErrInvalidAction, a.Size)
	}
	s.PageSize = a.Size
	s.PageIndex = 0
	return s, nil
}

func (a SetSort) apply(s State) (State, error) {
	seen := make(map[domain.Column]struct{}, len(a.Columns))
	for _, column := range a.Columns {
		if !domain.IsKnownColumn(column.Column) {
			return s, fmt.Errorf("%w: unknown sort column %q", ErrInvalidAction, column.Column)
		}
		if column.Direction != Ascending && column.Direction != Descending {
			return s, fmt.Errorf("%w: sort direction %q", ErrInvalidAction, column.Direction)
		}
		if _, ok := seen[column.Column]; ok {
			return s, fmt.Errorf("%w: column %q sorted twice", ErrInvalidAction, column.Column)
		}
		seen[column.Column] = struct{}{}
	}
	s.SortColumns = append([]SortColumn(nil), a.Columns...)
	return s, nil
}

func (a SetVisibleColumns) apply(s State) (State, error) {
	seen := make(map[domain.Column]struct{}, len(a.Columns))
	for _, column := range a.Columns {
		if !domain.IsKnownColumn(column) {
			return s, fmt.Errorf("%w: unknown column %q", ErrInvalidAction, column)
		}
		if _, ok := seen[column]; ok {
			return s, fmt.Errorf("%w: duplicate column %q", ErrInvalidAction, column)
		}
		seen[column] = struct{}{}
	}
	s.VisibleColumns = append([]domain.Column(nil), a.Columns...)
	return s, nil
}

func (a SelectRow) apply(s State) (State, error) {
	if a.Row < 0 || a.Row >= s.RowCount {
		return s, fmt.Errorf("%w: row %d out of range", ErrInvalidAction, a.Row)
	}
	if a.On {
		s.selected[a.Row] = struct{}{}
	} else {
		delete(s.selected, a.Row)
	}
	return s, nil
}

func (SelectAll) apply(s State) (State, error) {
	s.selected = make(map[int]struct{}, s.RowCount)
	for row := range s.RowCount {
		s.selected[row] = struct{}{}
	}
	return s, nil
}

func (ClearSelection) apply(s State) (State, error) {
	s.selected = map[int]struct{}{}
	return s, nil
}

func (ToggleHeaderCheckbox) apply(s State) (State, error) {
	switch {
	case s.HeaderIndeterminate():
		return ClearSelection{}.apply(s)
	case len(s.selected) == 0:
		return SelectAll{}.apply(s)
	default:
		return ClearSelection{}.apply(s)
	}
}

func (a SetRowCount) apply(s State) (State, error) {
	if a.Count < 0 {
		return s, fmt.Errorf("%w: row count %d", ErrInvalidAction, a.Count)
	}
	s.RowCount = a.Count
	if pages := s.PageCount(); s.PageIndex >= pages {
		s.PageIndex = max(pages-1, 0)
	}
	for row := range s.selected {
		if row >= a.Count {
			delete(s.selected, row)
		}
	}
	return s, nil
}
