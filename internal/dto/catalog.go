package dto

// CatalogInfo describes the parameter axes of the strategy catalog.
type CatalogInfo struct {
	BuyRules         int `json:"buy_rules"`
	Quantities       int `json:"quantities"`
	StopLosses       int `json:"stop_losses"`
	SellRules        int `json:"sell_rules"`
	TheoreticalTotal int `json:"theoretical_total"`
}

// CatalogResult is a generated set of strategies with the counters of how
// they were produced.
type CatalogResult struct {
	Strategies []StrategySpec `json:"-"`
	Total      int            `json:"total"`
	Excluded   int            `json:"excluded"`
	Duplicates int            `json:"duplicates"`
	Invalid    int            `json:"invalid"`
	Attempts   int            `json:"attempts"`
}
