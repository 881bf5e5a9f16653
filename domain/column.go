package domain

import (
	"cmp"
	"strconv"
	"strings"
)

type Column string

const (
	ColumnPhoneNumber          Column = "phone_number"
	ColumnCallCount            Column = "call_count"
	ColumnCallDuration         Column = "call_duration"
	ColumnCallCharges          Column = "call_charges"
	ColumnAccountAge           Column = "account_age"
	ColumnChurn                Column = "churn"
	ColumnCustomerServiceCalls Column = "customer_service_calls"
	ColumnInternationalPlan    Column = "international_plan"
	ColumnNumberVmailMessages  Column = "number_vmail_messages"
	ColumnState                Column = "state"
	ColumnVoiceMailPlan        Column = "voice_mail_plan"
)

// Columns is the display order of the grid.
var Columns = []Column{
	ColumnPhoneNumber,
	ColumnCallCount,
	ColumnCallDuration,
	ColumnCallCharges,
	ColumnAccountAge,
	ColumnChurn,
	ColumnCustomerServiceCalls,
	ColumnInternationalPlan,
	ColumnNumberVmailMessages,
	ColumnState,
	ColumnVoiceMailPlan,
}

func IsKnownColumn(c Column) bool {
	for _, known := range Columns {
		if known == c {
			return true
		}
	}
	return false
}

// ParseColumn accepts a column id in any case.
func ParseColumn(s string) (Column, bool) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	return c, IsKnownColumn(c)
}

func (c Column) numeric() bool {
	switch c {
	case ColumnCallCount, ColumnCallDuration, ColumnCallCharges, ColumnAccountAge,
		ColumnCustomerServiceCalls, ColumnNumberVmailMessages:
		return true
	}
	return false
}

func (d Document) number(c Column) float64 {
	switch c {
	case ColumnCallCount:
		return float64(d.CallCount)
	case ColumnCallDuration:
		return d.CallDuration
	case ColumnCallCharges:
		return d.CallCharges
	case ColumnAccountAge:
		return float64(d.AccountAge)
	case ColumnCustomerServiceCalls:
		return float64(d.CustomerServiceCalls)
	case ColumnNumberVmailMessages:
		return float64(d.NumberVmailMessages)
	}
	return 0
}

func (d Document) text(c Column) string {
	switch c {
	case ColumnPhoneNumber:
		return d.PhoneNumber
	case ColumnChurn:
		return d.Churn
	case ColumnInternationalPlan:
		return d.InternationalPlan
	case ColumnState:
		return d.State
	case ColumnVoiceMailPlan:
		return d.VoiceMailPlan
	}
	return ""
}

// Cell renders the value of column c. Durations and charges keep two decimals.
func (d Document) Cell(c Column) string {
	switch c {
	case ColumnCallDuration, ColumnCallCharges:
		return strconv.FormatFloat(d.number(c), 'f', 2, 64)
	}
	if c.numeric() {
		return strconv.FormatInt(int64(d.number(c)), 10)
	}
	return d.text(c)
}

// Compare orders two documents on column c, numerically for numeric columns.
func Compare(a, b Document, c Column) int {
	if c.numeric() {
		return cmp.Compare(a.number(c), b.number(c))
	}
	return strings.Compare(a.text(c), b.text(c))
}

// Field is one line of a row detail view.
type Field struct {
	Name  string
	Value string
}

// Details is the field-by-field projection of a document, id first.
func Details(d Document) []Field {
	fields := make([]Field, 0, len(Columns)+1)
	fields = append(fields, Field{Name: "id", Value: d.ID})
	for _, c := range Columns {
		fields = append(fields, Field{Name: string(c), Value: d.Cell(c)})
	}
	return fields
}
