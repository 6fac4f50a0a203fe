package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    Label
		wantErr bool
	}{
		{"TABLE", LabelTable, false},
		{"column", LabelColumn, false},
		{" Aggregate ", LabelAggregate, false},
		{"ORDER BY", LabelOrderBy, false},
		{"group-by", LabelGroupBy, false},
		{"DISTINCT", LabelDistinct, false},
		{"UNKNOWN", LabelUnknown, true},
		{"PERSON", LabelUnknown, true},
		{"", LabelUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLabel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabelsRoundTripThroughString(t *testing.T) {
	assert.Len(t, Labels(), 11)
	for _, l := range Labels() {
		parsed, err := ParseLabel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	assert.Equal(t, "Label(99)", Label(99).String())
}

func TestDecodeJSON(t *testing.T) {
	data := []byte(`[{"text":"COUNT","label":"AGGREGATE"},{"text":"students","label":"table"}]`)
	got, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, []Entity{New("COUNT", LabelAggregate), New("students", LabelTable)}, got)

	_, err = DecodeJSON([]byte(`[{"text":"x","label":"PERSON"}]`))
	assert.Error(t, err)

	out, err := json.Marshal(New("10", LabelLimit))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"10","label":"LIMIT"}`, string(out))
}

func TestParseInline(t *testing.T) {
	got, err := ParseInline("AGGREGATE:count; COLUMN: student id ;TABLE:students;")
	require.NoError(t, err)
	assert.Equal(t, []Entity{
		New("count", LabelAggregate),
		New("student id", LabelColumn),
		New("students", LabelTable),
	}, got)

	_, err = ParseInline("students")
	assert.Error(t, err)
	_, err = ParseInline("PERSON:bob")
	assert.Error(t, err)
}

func TestSliceStopsEarly(t *testing.T) {
	seq := Slice(New("a", LabelColumn), New("b", LabelColumn), New("c", LabelColumn))
	var seen []string
	for e := range seq {
		seen = append(seen, e.Text)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}
