package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{1234, "USD", "12.34 USD"},
		{5, "eur", "0.05 EUR"},
		{0, "GBP", "0.00 GBP"},
		{1500, "JPY", "1500 JPY"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.minor, tt.currency))
		})
	}
}

func TestFromString(t *testing.T) {
	got, err := FromString("12.34", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got)

	got, err = FromString(" 7 ", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(700), got)

	got, err = FromString("1500", "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got)
}

func TestFromString_Rejects(t *testing.T) {
	tests := []struct {
		in       string
		currency string
	}{
		{"abc", "USD"},
		{"1.234", "USD"},
		{"10.5", "JPY"},
	}

	for _, tt := range tests {
		t.Run(tt.in+"_"+tt.currency, func(t *testing.T) {
			_, err := FromString(tt.in, tt.currency)
			assert.Error(t, err)
		})
	}
}

func TestToDecimal(t *testing.T) {
	assert.Equal(t, "12.5", ToDecimal(1250, "USD").String())
}
