package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12", 1200},
		{"12.5", 1250},
		{"12,50", 1250},
		{"0.01", 1},
		{"0,1", 10},
		{"1000000", 100000000},
		{"12.500", 1250},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-5", "1.234", "0.001", "1,2,3", "99999999999999999999"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.50", FormatAmount(1250))
	assert.Equal(t, "0.01", FormatAmount(1))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "1000.00", FormatAmount(100000))
}
