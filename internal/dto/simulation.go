package dto

// ExitReason is the terminal state a simulation ended in.
type ExitReason string

const (
	ExitStopLoss        ExitReason = "stop-loss"
	ExitTargetReached   ExitReason = "target-reached"
	ExitHoldDaysExpired ExitReason = "hold-days-expired"
	ExitEndOfSeries     ExitReason = "end-of-series"
	ExitSimulationError ExitReason = "simulation-error"
)

type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// TradeLogEntry records one executed order.
type TradeLogEntry struct {
	Side     TradeSide `json:"side"`
	Day      int       `json:"day"`
	Hour     int       `json:"hour"`
	Price    float64   `json:"price"`
	Shares   float64   `json:"shares"`
	Amount   float64   `json:"amount"`
	Cost     float64   `json:"cost"`
	Proceeds float64   `json:"proceeds,omitempty"`
}

// ResultRecord is the outcome of one strategy simulation.
type ResultRecord struct {
	Strategy     StrategySpec    `json:"strategy"`
	Key          StrategyKey     `json:"key"`
	InitialAsset float64         `json:"initial_asset"`
	FinalAsset   float64         `json:"final_asset"`
	ReturnPct    float64         `json:"return_pct"`
	Penalty      float64         `json:"penalty"`
	TradeCount   int             `json:"trade_count"`
	ExitDay      int             `json:"exit_day"`
	ExitReason   ExitReason      `json:"exit_reason"`
	TradeLog     []TradeLogEntry `json:"trade_log"`
	Failed       bool            `json:"failed,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// BatchResult holds the results of SimulateBatch in input order. Specs that
// failed validation are counted in Rejected and have no result.
type BatchResult struct {
	Results  []ResultRecord `json:"results"`
	Rejected int            `json:"rejected"`
	Failed   int            `json:"failed"`
}
