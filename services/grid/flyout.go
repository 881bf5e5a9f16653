package grid

import (
	"fmt"

	"github.com/meghashyamc/churnsearch/domain"
)

// Flyouts tracks which rows have their detail view open. It is local to a
// view and never part of State.
type Flyouts struct {
	open map[int]struct{}
}

func NewFlyouts() *Flyouts {
	return &Flyouts{open: map[int]struct{}{}}
}

func (f *Flyouts) Open(row int) { f.open[row] = struct{}{} }
func (f *Flyouts) Close(row int) { delete(f.open, row) }

func (f *Flyouts) Toggle(row int) {
	if f.IsOpen(row) {
		f.Close(row)
		return
	}
	f.Open(row)
}

func (f *Flyouts) IsOpen(row int) bool {
	_, ok := f.open[row]
	return ok
}

// Details is what an open flyout shows for a row.
func Details(document domain.Document) []domain.Field {
	return domain.Details(document)
}

// SelectionLabel describes how many rows are selected.
func SelectionLabel(count int) string {
	if count == 1 {
		return "1 item selected"
	}
	return fmt.Sprintf("%d items selected", count)
}
