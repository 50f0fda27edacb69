package engine

import "strategy-lab/internal/dto"

type phase int

const (
	phaseFlat phase = iota
	phaseHolding
	phaseExited
)

// simulationState is owned by exactly one run and discarded afterwards.
type simulationState struct {
	cash        float64
	shares      float64
	avgCost     float64
	tradeCount  int
	firstBuyDay int
	exitDay     int
	exitReason  dto.ExitReason
	phase       phase

	logLimit int
	tradeLog []dto.TradeLogEntry
}

func newSimulationState(cash float64, logLimit int) *simulationState {
	return &simulationState{
		cash:     cash,
		phase:    phaseFlat,
		logLimit: logLimit,
		tradeLog: make([]dto.TradeLogEntry, 0, logLimit),
	}
}

// record keeps only the most recent logLimit entries.
func (s *simulationState) record(entry dto.TradeLogEntry) {
	s.tradeCount++
	if s.logLimit <= 0 {
		return
	}
	if len(s.tradeLog) == s.logLimit {
		copy(s.tradeLog, s.tradeLog[1:])
		s.tradeLog = s.tradeLog[:s.logLimit-1]
	}
	s.tradeLog = append(s.tradeLog, entry)
}

func (s *simulationState) exit(day int, reason dto.ExitReason) {
	s.phase = phaseExited
	s.exitDay = day
	s.exitReason = reason
}

func (s *simulationState) equity(price float64) float64 {
	return s.cash + s.shares*price
}

func (s *simulationState) unrealizedReturn(price float64) float64 {
	if s.avgCost <= 0 {
		return 0
	}
	return (price - s.avgCost) / s.avgCost * 100
}

func (s *simulationState) buy(day dto.DailyBar, bar dto.HourlyBar, amount float64, costs CostModel) {
	cost := costs.BuyCost(amount)
	bought := (amount - cost) / bar.Price

	if s.phase == phaseHolding && s.shares > 0 {
		s.avgCost = (s.avgCost*s.shares + bar.Price*bought) / (s.shares + bought)
	} else {
		s.avgCost = bar.Price
		s.firstBuyDay = day.DayIndex
		s.phase = phaseHolding
	}
	s.shares += bought
	s.cash -= amount

	s.record(dto.TradeLogEntry{
		Side:   dto.TradeBuy,
		Day:    day.DayIndex,
		Hour:   bar.ClockHour(),
		Price:  bar.Price,
		Shares: bought,
		Amount: amount,
		Cost:   cost,
	})
}

func (s *simulationState) sell(day dto.DailyBar, bar dto.HourlyBar, costs CostModel) {
	gross := s.shares * bar.Price
	cost := costs.SellCost(gross)
	sold := s.shares

	s.cash += gross - cost
	s.shares = 0
	s.avgCost = 0
	s.firstBuyDay = 0
	s.phase = phaseFlat

	s.record(dto.TradeLogEntry{
		Side:     dto.TradeSell,
		Day:      day.DayIndex,
		Hour:     bar.ClockHour(),
		Price:    bar.Price,
		Shares:   sold,
		Amount:   gross,
		Cost:     cost,
		Proceeds: gross - cost,
	})
}
