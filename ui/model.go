// Package ui is the terminal browse view: a query line, the paginated grid
// of the latest result set and the notifications of the search session.
package ui

import (
	"context"
	"slices"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/services/grid"
	"github.com/meghashyamc/churnsearch/services/notify"
	"github.com/meghashyamc/churnsearch/services/session"
)

const (
	eventBufferSize = 64
	maxToasts       = 3
)

type Dependencies struct {
	Session    *session.Session
	QueryState *session.QueryState
	Controller *grid.Controller
	Toasts     *notify.Recorder
}

// Model represents the UI state
type Model struct {
	session    *session.Session
	queryState *session.QueryState
	controller *grid.Controller
	flyouts    *grid.Flyouts
	input      textinput.Model
	styles     *Styles

	events chan tea.Msg
	done   chan struct{}

	rows         []domain.Document
	side         *session.SideResult
	toasts       []notify.Toast
	cursor       int
	// column indexes domain.Columns, hidden columns included
	column       int
	editing      bool
	subscription *session.Subscription
	quitting     bool
}

func NewModel(deps Dependencies) *Model {
	input := textinput.New()
	input.Placeholder = "query string, e.g. customer.state:OH"
	input.Prompt = "> "
	input.SetValue(deps.QueryState.Get().QueryString)

	m := &Model{
		session:    deps.Session,
		queryState: deps.QueryState,
		controller: deps.Controller,
		flyouts:    grid.NewFlyouts(),
		input:      input,
		styles:     NewStyles(),
		events:     make(chan tea.Msg, eventBufferSize),
		done:       make(chan struct{}),
		column:     max(slices.Index(domain.Columns, domain.ColumnCallCharges), 0),
	}

	deps.Session.OnResults(func(results *session.ResultSet) { m.send(resultsMsg{results: results}) })
	deps.Session.OnSideResults(func(results *session.SideResult) { m.send(sideResultsMsg{results: results}) })
	deps.Toasts.Listen(func(toast notify.Toast) { m.send(toastMsg{toast: toast}) })

	return m
}

// send hands msg to the bubbletea loop. Messages sent after quitting are dropped.
func (m *Model) send(msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-m.done:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.done:
			return nil
		}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.submit())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)

	case resultsMsg:
		m.rows = msg.results.Documents
		m.cursor = 0
		m.flyouts = grid.NewFlyouts()
		m.controller.Dispatch(grid.SetRowCount{Count: len(m.rows)})
		m.controller.Dispatch(grid.ClearSelection{})
		return m, m.waitForEvent()

	case sideResultsMsg:
		m.side = msg.results
		return m, m.waitForEvent()

	case toastMsg:
		m.toasts = append(m.toasts, msg.toast)
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		return m, m.waitForEvent()

	case submittedMsg:
		if msg.err == nil {
			m.subscription = msg.subscription
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.editing = false
		m.input.Blur()
		m.queryState.Set(session.Query{QueryString: m.input.Value()})
		return m, m.submit()
	case "esc":
		m.editing = false
		m.input.Blur()
		m.input.SetValue(m.queryState.Get().QueryString)
		return m, nil
	case "ctrl+c":
		return m, m.quit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.controller.State()
	visible := grid.VisibleRows(m.rows, state)

	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.quit()
	case "/":
		m.editing = true
		return m, m.input.Focus()
	case "r":
		return m, m.submit()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
	case "left", "h":
		if m.controller.Dispatch(grid.SetPage{Index: state.PageIndex - 1}) {
			m.cursor = 0
		}
	case "right", "l":
		if m.controller.Dispatch(grid.SetPage{Index: state.PageIndex + 1}) {
			m.cursor = 0
		}
	case "p":
		m.controller.Dispatch(grid.SetPageSize{Size: nextPageSize(state.PageSize)})
		m.cursor = 0
	case "[":
		m.column = (m.column + len(domain.Columns) - 1) % len(domain.Columns)
	case "]":
		m.column = (m.column + 1) % len(domain.Columns)
	case "c":
		if columns, ok := toggleColumn(state.VisibleColumns, m.selectedColumn()); ok {
			m.controller.Dispatch(grid.SetVisibleColumns{Columns: columns})
		}
	case "s":
		m.controller.Dispatch(grid.SetSort{Columns: cycleSort(state.SortColumns, m.selectedColumn(), false)})
	case "S":
		m.controller.Dispatch(grid.SetSort{Columns: cycleSort(state.SortColumns, m.selectedColumn(), true)})
	case " ", "space", "x":
		if m.cursor < len(visible) {
			row := visible[m.cursor].Index
			m.controller.Dispatch(grid.SelectRow{Row: row, On: !state.IsSelected(row)})
		}
	case "a":
		m.controller.Dispatch(grid.ToggleHeaderCheckbox{})
	case "enter":
		if m.cursor < len(visible) {
			m.flyouts.Toggle(visible[m.cursor].Index)
		}
	}
	return m, nil
}

// submit replaces the running search with one for the current query.
func (m *Model) submit() tea.Cmd {
	previous := m.subscription
	m.subscription = nil
	return func() tea.Msg {
		if previous != nil {
			previous.Unsubscribe()
		}
		subscription, err := m.session.SubmitCurrent(context.Background())
		return submittedMsg{subscription: subscription, err: err}
	}
}

func (m *Model) quit() tea.Cmd {
	if !m.quitting {
		m.quitting = true
		close(m.done)
		m.session.Close()
	}
	return tea.Quit
}

func nextPageSize(current int) int {
	i := slices.Index(grid.PageSizes, current)
	return grid.PageSizes[(i+1)%len(grid.PageSizes)]
}

func (m *Model) selectedColumn() domain.Column {
	return domain.Columns[m.column]
}

// cycleSort moves column through descending, ascending and unsorted. With
// keepOthers the other sort columns stay in place and column is added last;
// otherwise column becomes the only sort column.
func cycleSort(current []grid.SortColumn, column domain.Column, keepOthers bool) []grid.SortColumn {
	i := slices.IndexFunc(current, func(c grid.SortColumn) bool { return c.Column == column })

	var next []grid.SortColumn
	if keepOthers {
		next = slices.Clone(current)
	}
	switch {
	case i < 0:
		return append(next, grid.SortColumn{Column: column, Direction: grid.Descending})
	case current[i].Direction == grid.Descending:
		ascending := grid.SortColumn{Column: column, Direction: grid.Ascending}
		if !keepOthers {
			return []grid.SortColumn{ascending}
		}
		next[i] = ascending
		return next
	default:
		if !keepOthers {
			return nil
		}
		return slices.Delete(next, i, i+1)
	}
}

// toggleColumn hides a shown column or shows a hidden one in grid order. The
// last shown column cannot be hidden.
func toggleColumn(visible []domain.Column, column domain.Column) ([]domain.Column, bool) {
	if slices.Contains(visible, column) {
		if len(visible) == 1 {
			return nil, false
		}
		return slices.DeleteFunc(slices.Clone(visible), func(c domain.Column) bool { return c == column }), true
	}

	columns := make([]domain.Column, 0, len(visible)+1)
	for _, c := range domain.Columns {
		if c == column || slices.Contains(visible, c) {
			columns = append(columns, c)
		}
	}
	return columns, true
}
