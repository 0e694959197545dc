package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatInt(t *testing.T) {
	require.Equal(t, " 5", FormatInt("5"))
	require.Equal(t, "-5", FormatInt("-5"))
	require.Equal(t, "100", FormatInt("100"))
}

func TestFormatFloat(t *testing.T) {
	testCases := []struct {
		in     string
		expect string
	}{
		{in: "1.500000", expect: "   1.5"},
		{in: "12.345678", expect: "  12.3"},
		{in: "-5.25", expect: "  -5.2"},
		{in: "-100.000000", expect: "-100.0"},
		{in: "0.0", expect: "   0.0"},
		{in: "12345.5", expect: "12345."},
		{in: "-inf", expect: "-inf"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.expect, FormatFloat(tc.in))
		})
	}
}

func TestFormatHuman(t *testing.T) {
	l := Decode([]byte("log: 1 2 3 4 5 6 1.5 2.5 3.5 0.0 0.0 0.0 0.0 0.0 0.0 0.0 0.0 -100.0 -100.0 0 1 2 3 32\n"))
	require.Equal(t, KindData, l.Kind)

	out := FormatHuman(l.Record)
	require.True(t, strings.HasPrefix(out, "\r 1  2  3  4  5  6    1.5    2.5    3.5"))
	require.True(t, strings.HasSuffix(out, "\n"+Labels+"\r"))

	row := strings.TrimPrefix(strings.SplitN(out, "\n", 2)[0], "\r")
	cols := strings.Fields(row)
	require.Len(t, cols, FieldCount)
	for i, c := range cols {
		require.Equalf(t, l.Record.Value(i), mustParse(t, c), "col %d", i)
	}
}

func mustParse(t *testing.T, s string) float64 {
	rec, err := ParseRecord(strings.Repeat("0 ", FieldCount-1) + s)
	require.NoError(t, err)
	return rec.Values[FieldCount-1]
}
