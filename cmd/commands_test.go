package main

import (
	"strings"
	"testing"

	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/services/grid"
	"github.com/stretchr/testify/require"
)

type parseSortTestCase struct {
	name        string
	value       string
	expected    []grid.SortColumn
	expectedErr bool
}

var parseSortTestCases = []parseSortTestCase{
	{name: "Empty"},
	{name: "ColumnOnly", value: "call_charges", expected: []grid.SortColumn{{Column: domain.ColumnCallCharges, Direction: grid.Ascending}}},
	{name: "Descending", value: "CALL_CHARGES:desc", expected: []grid.SortColumn{{Column: domain.ColumnCallCharges, Direction: grid.Descending}}},
	{name: "Ascending", value: "state:ASC", expected: []grid.SortColumn{{Column: domain.ColumnState, Direction: grid.Ascending}}},
	{
		name:  "SeveralColumns",
		value: "churn, call_charges:desc",
		expected: []grid.SortColumn{
			{Column: domain.ColumnChurn, Direction: grid.Ascending},
			{Column: domain.ColumnCallCharges, Direction: grid.Descending},
		},
	},
	{name: "UnknownColumn", value: "charges:desc", expectedErr: true},
	{name: "UnknownDirection", value: "state:up", expectedErr: true},
	{name: "RepeatedColumn", value: "state:asc,state:desc", expectedErr: true},
	{name: "EmptyEntry", value: "state,", expectedErr: true},
}

func TestParseSort(t *testing.T) {
	for _, tc := range parseSortTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			sort, err := parseSort(tc.value)
			if tc.expectedErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expected, sort)
		})
	}
}

type parseColumnsTestCase struct {
	name        string
	value       string
	expected    []domain.Column
	expectedErr bool
}

var parseColumnsTestCases = []parseColumnsTestCase{
	{name: "Empty", expected: domain.Columns},
	{name: "GivenOrder", value: "call_charges,PHONE_NUMBER", expected: []domain.Column{domain.ColumnCallCharges, domain.ColumnPhoneNumber}},
	{name: "UnknownColumn", value: "phone_number,charges", expectedErr: true},
	{name: "RepeatedColumn", value: "churn,churn", expectedErr: true},
}

func TestParseColumns(t *testing.T) {
	for _, tc := range parseColumnsTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			columns, err := parseColumns(tc.value)
			if tc.expectedErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expected, columns)
		})
	}
}

func TestRenderPage(t *testing.T) {
	assert := require.New(t)
	documents := []domain.Document{
		{ID: "rec-1", PhoneNumber: "375-1111", CallCharges: 12.5, Churn: "1"},
		{ID: "rec-2", PhoneNumber: "375-2222", CallCharges: 66.75, Churn: "1"},
		{ID: "rec-3", PhoneNumber: "375-3333", CallCharges: 99, Churn: "0"},
	}
	sort := []grid.SortColumn{
		{Column: domain.ColumnChurn, Direction: grid.Descending},
		{Column: domain.ColumnCallCharges, Direction: grid.Descending},
	}
	page := grid.Paginate(grid.SortRows(documents, sort), grid.PageOptions{PageSize: 5})

	rendered := renderPage(page, domain.Columns)
	assert.Contains(rendered, string(domain.ColumnVoiceMailPlan))
	assert.Contains(rendered, "66.75")
	assert.Less(strings.Index(rendered, "375-2222"), strings.Index(rendered, "375-1111"))
	assert.Less(strings.Index(rendered, "375-1111"), strings.Index(rendered, "375-3333"))

	rendered = renderPage(page, []domain.Column{domain.ColumnCallCharges, domain.ColumnPhoneNumber})
	assert.NotContains(rendered, string(domain.ColumnVoiceMailPlan))
	assert.Less(strings.Index(rendered, string(domain.ColumnCallCharges)), strings.Index(rendered, string(domain.ColumnPhoneNumber)))
}
