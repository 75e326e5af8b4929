package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "100", want: "100.00"},
		{name: "two decimals", input: "15.99", want: "15.99"},
		{name: "one decimal", input: "0.5", want: "0.50"},
		{name: "trailing zeros beyond scale", input: "1.500", want: "1.50"},
		{name: "too many decimals", input: "1.005", wantErr: true},
		{name: "garbage", input: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, m.String())
		})
	}
}

func TestArithmeticIsExact(t *testing.T) {
	balance := FromInt(500)
	price := MustParse("15.99")

	require.Equal(t, "484.01", balance.Sub(price).String())

	total := Zero
	for i := 0; i < 10; i++ {
		total = total.Add(MustParse("0.10"))
	}
	require.True(t, total.Equal(FromInt(1)))
	require.Equal(t, "1.00", Sum(MustParse("0.30"), MustParse("0.70")).String())
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		total  string
		places int32
		want   string
	}{
		{name: "zero total", value: "50", total: "0", places: 0, want: "0"},
		{name: "half rounds up", value: "1", total: "8", places: 0, want: "13"},
		{name: "one third", value: "150", total: "450", places: 0, want: "33"},
		{name: "over budget two places", value: "600", total: "500", places: 2, want: "120"},
		{name: "two places half up", value: "1", total: "3", places: 2, want: "33.33"},
		{name: "two places round up", value: "2", total: "3", places: 2, want: "66.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParse(tt.value).PercentOf(MustParse(tt.total), tt.places)
			require.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestMultiplyByPercent(t *testing.T) {
	got := FromInt(250).MultiplyByPercent(decimal.NewFromInt(20))
	require.Equal(t, "50.00", got.String())
}

func TestCentsRoundTrip(t *testing.T) {
	m := MustParse("484.01")
	require.Equal(t, int64(48401), m.Cents())
	require.True(t, FromCents(48401).Equal(m))

	var scanned Money
	require.NoError(t, scanned.Scan(int64(-1250)))
	require.Equal(t, "-12.50", scanned.String())
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(MustParse("15.9"))
	require.NoError(t, err)
	require.Equal(t, `"15.90"`, string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`42.5`), &m))
	require.Equal(t, "42.50", m.String())

	require.Error(t, json.Unmarshal([]byte(`"0.001"`), &m))
}
