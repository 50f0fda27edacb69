package dto

import "time"

type ExplorationMode string

const (
	ExplorationSample     ExplorationMode = "sample"
	ExplorationExhaustive ExplorationMode = "exhaustive"
)

// ExplorationRequest configures one exploration run. Zero values fall back to
// the configured defaults.
type ExplorationRequest struct {
	Mode        ExplorationMode `json:"mode" validate:"omitempty,oneof=sample exhaustive"`
	SampleSize  int             `json:"sample_size" validate:"gte=0"`
	Condition   MarketCondition `json:"condition" validate:"omitempty,oneof=bull bear sideways volatile"`
	Days        int             `json:"days" validate:"gte=0"`
	Checkpoint  *bool           `json:"checkpoint,omitempty"`
	ResultLimit int             `json:"result_limit" validate:"gte=0"`
}

// OutcomeSummary is the tally of a run's results.
type OutcomeSummary struct {
	Simulated     int                `json:"simulated"`
	Successful    int                `json:"successful"`
	Failed        int                `json:"failed"`
	AverageReturn float64            `json:"average_return"`
	BestReturn    float64            `json:"best_return"`
	ByExitReason  map[ExitReason]int `json:"by_exit_reason"`
}

type ExplorationResult struct {
	RunID           string          `json:"run_id"`
	Mode            ExplorationMode `json:"mode"`
	Condition       MarketCondition `json:"condition"`
	MarketReturnPct float64         `json:"market_return_pct"`
	Days            int             `json:"days"`
	Catalog         CatalogResult   `json:"catalog"`
	Rejected        int             `json:"rejected"`
	Summary         OutcomeSummary  `json:"summary"`
	Dropouts        int             `json:"dropouts"`
	Promotions      int             `json:"promotions"`
	Checkpointed    bool            `json:"checkpointed"`
	Results         []ResultRecord  `json:"results"`
	StartedAt       time.Time       `json:"started_at"`
	Duration        time.Duration   `json:"duration"`
}
