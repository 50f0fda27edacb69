package engine

// CostModel holds transaction cost rates as fractions of the traded value.
// Fee and slippage apply to both sides, tax and levy only to sells.
type CostModel struct {
	Fee      float64 `json:"fee"`
	Slippage float64 `json:"slippage"`
	Tax      float64 `json:"tax"`
	Levy     float64 `json:"levy"`
}

func DefaultCostModel() CostModel {
	return CostModel{
		Fee:      0.00015,
		Slippage: 0.0002,
		Tax:      0.0023,
		Levy:     0.00046,
	}
}

func (c CostModel) BuyRate() float64 {
	return c.Fee + c.Slippage
}

func (c CostModel) SellRate() float64 {
	return c.Fee + c.Slippage + c.Tax + c.Levy
}

func (c CostModel) BuyCost(amount float64) float64 {
	return amount * c.BuyRate()
}

func (c CostModel) SellCost(proceeds float64) float64 {
	return proceeds * c.SellRate()
}
