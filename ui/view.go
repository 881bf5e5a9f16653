package ui

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/services/grid"
	"github.com/meghashyamc/churnsearch/services/session"
)

const (
	checkboxOff           = "[ ]"
	checkboxOn            = "[x]"
	checkboxIndeterminate = "[-]"
	maxSuspects           = 5
)

const helpText = "/ query • r rerun • ↑/↓ move • ←/→ page • p page size • [/] column • c show/hide • s sort • S add sort • space select • a all • enter details • q quit"

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Customer churn"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	state := m.controller.State()
	visible := grid.VisibleRows(m.rows, state)

	if len(m.rows) == 0 {
		b.WriteString(m.styles.Dim.Render("No results"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderTable(state, visible))
		b.WriteString("\n")
		b.WriteString(m.renderFooter(state))
		b.WriteString("\n")
	}
	b.WriteString(m.renderColumnBar(state))
	b.WriteString("\n")

	if flyouts := m.renderFlyouts(visible); flyouts != "" {
		b.WriteString(flyouts)
		b.WriteString("\n")
	}

	if m.side != nil {
		b.WriteString(m.renderSuspects())
		b.WriteString("\n")
	}

	for _, toast := range m.toasts {
		line := toast.Title
		if toast.Text != "" {
			line += ": " + toast.Text
		}
		b.WriteString(m.styles.toast(toast.Kind).Render(line))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Help.Render(helpText))
	return b.String()
}

func headerCheckbox(state grid.State) string {
	switch {
	case state.HeaderIndeterminate():
		return checkboxIndeterminate
	case state.HeaderChecked():
		return checkboxOn
	default:
		return checkboxOff
	}
}

func (m *Model) renderTable(state grid.State, visible []grid.Row) string {
	headers := []string{headerCheckbox(state)}
	for _, column := range state.VisibleColumns {
		headers = append(headers, columnTitle(column, state.SortColumns))
	}

	rows := make([][]string, 0, len(visible))
	for _, row := range visible {
		cells := []string{checkboxOff}
		if state.IsSelected(row.Index) {
			cells[0] = checkboxOn
		}
		for _, column := range state.VisibleColumns {
			cells = append(cells, row.Document.Cell(column))
		}
		rows = append(rows, cells)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(m.styles.TableEdge)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return m.styles.Header
			case row == m.cursor:
				return m.styles.Cursor
			case row < len(visible) && state.IsSelected(visible[row].Index):
				return m.styles.Selected
			default:
				return m.styles.Cell
			}
		})
	return t.Render()
}

// columnTitle marks sorted columns with their direction.
func columnTitle(column domain.Column, sort []grid.SortColumn) string {
	for _, sorted := range sort {
		if sorted.Column != column {
			continue
		}
		if sorted.Direction == grid.Descending {
			return string(column) + " ↓"
		}
		return string(column) + " ↑"
	}
	return string(column)
}

func (m *Model) renderFooter(state grid.State) string {
	footer := fmt.Sprintf("Page %d of %d • %d rows per page • %d rows", state.PageIndex+1, state.PageCount(), state.PageSize, state.RowCount)
	if count := state.SelectionCount(); count > 0 {
		footer += " • " + grid.SelectionLabel(count) + " • [pin] [delete]"
	}
	return m.styles.Status.Render(footer)
}

// renderColumnBar describes the column the column keys act on.
func (m *Model) renderColumnBar(state grid.State) string {
	column := m.selectedColumn()
	status := "hidden"
	if slices.Contains(state.VisibleColumns, column) {
		status = "shown"
	}
	for _, sorted := range state.SortColumns {
		if sorted.Column == column {
			status += ", sorted " + string(sorted.Direction)
		}
	}
	return m.styles.Dim.Render(fmt.Sprintf("column: %s (%s)", column, status))
}

func (m *Model) renderFlyouts(visible []grid.Row) string {
	var panels []string
	for _, row := range visible {
		if !m.flyouts.IsOpen(row.Index) {
			continue
		}
		lines := make([]string, 0, len(domain.Columns)+1)
		for _, field := range grid.Details(row.Document) {
			lines = append(lines, fmt.Sprintf("%-24s %s", field.Name, field.Value))
		}
		panels = append(panels, m.styles.Flyout.Render(strings.Join(lines, "\n")))
	}
	return strings.Join(panels, "\n")
}

// renderSuspects lists the side channel hits with the highest call charges first.
func (m *Model) renderSuspects() string {
	suspects := grid.SortRows(sideDocuments(m.side), []grid.SortColumn{{Column: domain.ColumnCallCharges, Direction: grid.Descending}})
	header := fmt.Sprintf("Suspects: %d of %d at %s", min(len(suspects), maxSuspects), m.side.Raw.Hits.Total, m.side.ResponseTime.Format("15:04:05"))

	lines := []string{m.styles.Header.Render(header)}
	for _, suspect := range suspects[:min(len(suspects), maxSuspects)] {
		lines = append(lines, m.styles.Cell.Render(fmt.Sprintf("%-10s %8s  %s", suspect.PhoneNumber, suspect.Cell(domain.ColumnCallCharges), domain.ChurnHealth(suspect.Churn))))
	}
	return strings.Join(lines, "\n")
}

func sideDocuments(side *session.SideResult) []domain.Document {
	if side == nil {
		return nil
	}
	documents := make([]domain.Document, 0, len(side.Raw.Hits.Hits))
	for _, hit := range side.Raw.Hits.Hits {
		var record domain.Record
		if err := json.Unmarshal(hit.Source, &record); err != nil {
			continue
		}
		documents = append(documents, domain.FromRecord(hit.ID, record))
	}
	return documents
}
