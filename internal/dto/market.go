package dto

import "fmt"

// MarketCondition is the regime of one synthetic price series.
type MarketCondition string

const (
	MarketBull     MarketCondition = "bull"
	MarketBear     MarketCondition = "bear"
	MarketSideways MarketCondition = "sideways"
	MarketVolatile MarketCondition = "volatile"
)

// HoursPerDay is the number of intraday bars per trading day.
const HoursPerDay = 9

func MarketConditions() []MarketCondition {
	return []MarketCondition{MarketBull, MarketBear, MarketSideways, MarketVolatile}
}

// Code is the integer used for the condition in persisted snapshots.
func (m MarketCondition) Code() int {
	switch m {
	case MarketBull:
		return 1
	case MarketBear:
		return 2
	case MarketSideways:
		return 3
	case MarketVolatile:
		return 4
	}
	return 0
}

func (m MarketCondition) IsValid() bool {
	return m.Code() != 0
}

// MarketConditionFromCode is the inverse of Code.
func MarketConditionFromCode(code int) (MarketCondition, bool) {
	for _, m := range MarketConditions() {
		if m.Code() == code {
			return m, true
		}
	}
	return "", false
}

// ParseMarketCondition accepts a condition name or its numeric code.
func ParseMarketCondition(s string) (MarketCondition, error) {
	for _, m := range MarketConditions() {
		if string(m) == s || fmt.Sprintf("%d", m.Code()) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown market condition %q", s)
}

type DailyBar struct {
	DayIndex            int     `json:"day_index"`
	Open                float64 `json:"open"`
	Close               float64 `json:"close"`
	DailyChangePct      float64 `json:"daily_change_pct"`
	CumulativeChangePct float64 `json:"cumulative_change_pct"`
}

type HourlyBar struct {
	DayIndex  int     `json:"day_index"`
	HourIndex int     `json:"hour_index"`
	Price     float64 `json:"price"`
}

// ClockHour is the wall-clock hour of the bar, trading starts at 09:00.
func (h HourlyBar) ClockHour() int {
	return 9 + h.HourIndex
}

// PriceSeries is one synthetic market. Hours holds HoursPerDay bars per day,
// ordered by day. History is the pre-series seed used for moving averages.
type PriceSeries struct {
	Condition       MarketCondition `json:"condition"`
	InitialPrice    float64         `json:"initial_price"`
	Days            []DailyBar      `json:"days"`
	Hours           []HourlyBar     `json:"hours"`
	History         []float64       `json:"history"`
	MarketReturnPct float64         `json:"market_return_pct"`
}

func (p *PriceSeries) Len() int {
	return len(p.Days)
}

// HoursOf returns the intraday bars of a 1-based day.
func (p *PriceSeries) HoursOf(day int) []HourlyBar {
	start := (day - 1) * HoursPerDay
	return p.Hours[start : start+HoursPerDay]
}

func (p *PriceSeries) FinalClose() float64 {
	if len(p.Days) == 0 {
		return p.InitialPrice
	}
	return p.Days[len(p.Days)-1].Close
}
