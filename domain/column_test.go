package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var sampleRecord = Record{
	ID:           "r1",
	PhoneNumber:  "382-4657",
	CallCount:    110,
	CallDuration: 265.1,
	CallCharges:  45.07,
	Customer: Customer{
		AccountAge:           128,
		Churn:                "0",
		CustomerServiceCalls: 1,
		InternationalPlan:    "no",
		NumberVmailMessages:  25,
		State:                "KS",
		VoiceMailPlan:        "yes",
	},
}

func TestFromRecord(t *testing.T) {
	assert := require.New(t)

	doc := FromRecord("", sampleRecord)
	assert.Equal("r1", doc.ID)
	assert.Equal(128, doc.AccountAge)
	assert.Equal("KS", doc.State)

	doc = FromRecord("hit-id", sampleRecord)
	assert.Equal("hit-id", doc.ID, "hit id should take precedence")
}

func TestCell(t *testing.T) {
	assert := require.New(t)
	doc := FromRecord("", sampleRecord)

	assert.Equal("382-4657", doc.Cell(ColumnPhoneNumber))
	assert.Equal("110", doc.Cell(ColumnCallCount))
	assert.Equal("265.10", doc.Cell(ColumnCallDuration))
	assert.Equal("45.07", doc.Cell(ColumnCallCharges))
	assert.Equal("yes", doc.Cell(ColumnVoiceMailPlan))
	assert.Equal("", doc.Cell(Column("unknown")))
}

func TestCompareIsNumericForNumericColumns(t *testing.T) {
	assert := require.New(t)
	a := Document{CallCount: 9, State: "b"}
	b := Document{CallCount: 10, State: "a"}

	assert.Equal(-1, Compare(a, b, ColumnCallCount), "9 < 10 numerically")
	assert.Equal(1, Compare(a, b, ColumnState))
	assert.Equal(0, Compare(a, a, ColumnState))
}

func TestDetailsListsEveryColumn(t *testing.T) {
	assert := require.New(t)
	fields := Details(FromRecord("", sampleRecord))

	assert.Len(fields, len(Columns)+1)
	assert.Equal(Field{Name: "id", Value: "r1"}, fields[0])
	assert.Equal(Field{Name: "phone_number", Value: "382-4657"}, fields[1])
}

func TestParseColumn(t *testing.T) {
	assert := require.New(t)

	c, ok := ParseColumn(" Call_Charges ")
	assert.True(ok)
	assert.Equal(ColumnCallCharges, c)

	_, ok = ParseColumn("name")
	assert.False(ok)
}

func TestChurnHealth(t *testing.T) {
	assert := require.New(t)
	assert.Equal("No Risk", ChurnHealth("0"))
	assert.Equal("Will churn", ChurnHealth("1"))
}
