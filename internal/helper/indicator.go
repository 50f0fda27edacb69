package helper

import (
	"strategy-lab/internal/dto"

	"github.com/markcheno/go-talib"
)

// Indicators precomputes the moving averages a series needs. It is read-only
// after construction and safe to share between goroutines.
type Indicators struct {
	closes  []float64
	offset  int
	average map[int][]float64
}

// ReferenceCloses returns the pre-series history followed by every daily close.
func ReferenceCloses(series *dto.PriceSeries) []float64 {
	ref := make([]float64, 0, len(series.History)+len(series.Days))
	ref = append(ref, series.History...)
	for _, day := range series.Days {
		ref = append(ref, day.Close)
	}
	return ref
}

func NewIndicators(series *dto.PriceSeries, periods ...int) *Indicators {
	ind := &Indicators{
		closes:  ReferenceCloses(series),
		offset:  len(series.History),
		average: make(map[int][]float64, len(periods)),
	}
	for _, period := range periods {
		if period <= 1 || period > len(ind.closes) {
			continue
		}
		ind.average[period] = talib.Sma(ind.closes, period)
	}
	return ind
}

// lastIndex is the position of the most recent close known before the given
// 1-based day starts.
func (i *Indicators) lastIndex(day int) int {
	return i.offset + day - 2
}

// MovingAverage returns the simple moving average over the closes known at
// the start of day.
func (i *Indicators) MovingAverage(period, day int) (float64, bool) {
	values, ok := i.average[period]
	if !ok {
		return 0, false
	}
	idx := i.lastIndex(day)
	if idx < period-1 || idx >= len(values) {
		return 0, false
	}
	return values[idx], true
}

// RecentHigh returns the highest of the last window closes known at the start of day.
func (i *Indicators) RecentHigh(day, window int) (float64, bool) {
	end := i.lastIndex(day)
	if end < 0 || end >= len(i.closes) || window <= 0 {
		return 0, false
	}
	start := end - window + 1
	if start < 0 {
		start = 0
	}
	high := i.closes[start]
	for _, v := range i.closes[start+1 : end+1] {
		if v > high {
			high = v
		}
	}
	return high, true
}
