package helper_test

import (
	"testing"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/helper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndicators(t *testing.T) {
	series := &dto.PriceSeries{
		History: []float64{1, 2, 3, 4},
		Days: []dto.DailyBar{
			{DayIndex: 1, Close: 5},
			{DayIndex: 2, Close: 6},
			{DayIndex: 3, Close: 1},
		},
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 1}, helper.ReferenceCloses(series))

	ind := helper.NewIndicators(series, 2, 4, 50)

	tests := []struct {
		name     string
		period   int
		day      int
		expected float64
		ok       bool
	}{
		{"day one uses history only", 4, 1, 2.5, true},
		{"day two includes first close", 4, 2, 3.5, true},
		{"short period", 2, 3, 5.5, true},
		{"period longer than data", 50, 3, 0, false},
		{"period never computed", 3, 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ind.MovingAverage(tt.period, tt.day)
			require.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, v, 1e-9)
		})
	}

	high, ok := ind.RecentHigh(3, 5)
	require.True(t, ok)
	assert.Equal(t, 6.0, high)

	high, ok = ind.RecentHigh(1, 2)
	require.True(t, ok)
	assert.Equal(t, 4.0, high)
}
