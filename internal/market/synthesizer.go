package market

import (
	"fmt"
	"math/rand/v2"
	"time"

	"strategy-lab/internal/dto"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultInitialPrice  = 100.0
	DefaultDays          = 135
	DefaultHistoryLength = 120
	DefaultMinPrice      = 20.0
	DefaultMaxPrice      = 500.0

	historyMinPrice  = 50.0
	historyMaxPrice  = 200.0
	historyMaxChange = 2.5
	hourlyNoise      = 0.5
)

// Regime holds the drift parameters of a market condition, all in percent.
type Regime struct {
	Trend      float64
	Volatility float64
	Bias       float64
}

var regimes = map[dto.MarketCondition]Regime{
	dto.MarketBull:     {Trend: 0.1, Volatility: 1.8, Bias: 0.3},
	dto.MarketBear:     {Trend: -0.1, Volatility: 2.2, Bias: -0.3},
	dto.MarketSideways: {Trend: 0, Volatility: 1.5, Bias: 0},
	dto.MarketVolatile: {Trend: 0.05, Volatility: 3.5, Bias: 0},
}

// conditionWeights follows the order of dto.MarketConditions.
var conditionWeights = []float64{25, 25, 35, 15}

// hourVolatility is U-shaped, noisy near the open and close.
var hourVolatility = [dto.HoursPerDay]float64{1.2, 1.0, 0.8, 0.6, 0.7, 1.0, 1.1, 1.3, 1.4}

func RegimeOf(condition dto.MarketCondition) (Regime, bool) {
	r, ok := regimes[condition]
	return r, ok
}

type Options struct {
	Seed          uint64
	InitialPrice  float64
	HistoryLength int
	MinPrice      float64
	MaxPrice      float64
}

func (o Options) withDefaults() Options {
	if o.InitialPrice <= 0 {
		o.InitialPrice = DefaultInitialPrice
	}
	if o.HistoryLength <= 0 {
		o.HistoryLength = DefaultHistoryLength
	}
	if o.MinPrice <= 0 {
		o.MinPrice = DefaultMinPrice
	}
	if o.MaxPrice <= o.MinPrice {
		o.MaxPrice = DefaultMaxPrice
	}
	return o
}

// Synthesizer produces synthetic single-instrument price series. A
// Synthesizer is not safe for concurrent use.
type Synthesizer interface {
	Generate(days int) *dto.PriceSeries
	GenerateWithCondition(condition dto.MarketCondition, days int) (*dto.PriceSeries, error)
	ChooseCondition() dto.MarketCondition
	History() []float64
	Seed() uint64
}

type synthesizer struct {
	opts    Options
	src     rand.Source
	history []float64
	chooser distuv.Categorical
}

// NewSynthesizer seeds the generator and builds the pre-series history. A
// zero seed is replaced by one derived from the clock.
func NewSynthesizer(opts Options) Synthesizer {
	opts = opts.withDefaults()
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	s := &synthesizer{
		opts:    opts,
		src:     src,
		chooser: distuv.NewCategorical(conditionWeights, src),
	}
	s.history = s.generateHistory()
	return s
}

func (s *synthesizer) Seed() uint64 {
	return s.opts.Seed
}

func (s *synthesizer) History() []float64 {
	out := make([]float64, len(s.history))
	copy(out, s.history)
	return out
}

func (s *synthesizer) ChooseCondition() dto.MarketCondition {
	return dto.MarketConditions()[int(s.chooser.Rand())]
}

func (s *synthesizer) Generate(days int) *dto.PriceSeries {
	series, _ := s.GenerateWithCondition(s.ChooseCondition(), days)
	return series
}

func (s *synthesizer) GenerateWithCondition(condition dto.MarketCondition, days int) (*dto.PriceSeries, error) {
	regime, ok := regimes[condition]
	if !ok {
		return nil, fmt.Errorf("unknown market condition %q", condition)
	}
	if days <= 0 {
		days = DefaultDays
	}

	noise := distuv.Normal{Mu: 0, Sigma: regime.Volatility, Src: s.src}
	biasScale := distuv.Uniform{Min: 0.5, Max: 1.5, Src: s.src}

	initial := s.opts.InitialPrice
	price := initial
	series := &dto.PriceSeries{
		Condition:    condition,
		InitialPrice: initial,
		Days:         make([]dto.DailyBar, 0, days),
		Hours:        make([]dto.HourlyBar, 0, days*dto.HoursPerDay),
		History:      s.History(),
	}

	for d := 0; d < days; d++ {
		change := noise.Rand() +
			regime.Trend*(1+float64(d)/float64(days)) +
			regime.Bias*biasScale.Rand()

		next := clamp(price*(1+change/100), s.opts.MinPrice, s.opts.MaxPrice)
		bar := dto.DailyBar{
			DayIndex:            d + 1,
			Open:                price,
			Close:               next,
			DailyChangePct:      (next - price) / price * 100,
			CumulativeChangePct: (next - initial) / initial * 100,
		}
		series.Days = append(series.Days, bar)
		series.Hours = append(series.Hours, s.hourlyBars(bar)...)
		price = next
	}

	series.MarketReturnPct = (price - initial) / initial * 100
	return series, nil
}

// hourlyBars walks linearly from the open to the close with per-hour noise.
// The last bar is perturbed too, so it need not equal the daily close.
func (s *synthesizer) hourlyBars(day dto.DailyBar) []dto.HourlyBar {
	perturb := distuv.Uniform{Min: -hourlyNoise, Max: hourlyNoise, Src: s.src}

	bars := make([]dto.HourlyBar, dto.HoursPerDay)
	for h := 0; h < dto.HoursPerDay; h++ {
		progress := float64(h+1) / dto.HoursPerDay
		target := day.Open + (day.Close-day.Open)*progress
		bars[h] = dto.HourlyBar{
			DayIndex:  day.DayIndex,
			HourIndex: h,
			Price:     target * (1 + perturb.Rand()*hourVolatility[h]/100),
		}
	}
	return bars
}

func (s *synthesizer) generateHistory() []float64 {
	step := distuv.Uniform{Min: -historyMaxChange, Max: historyMaxChange, Src: s.src}

	prices := make([]float64, s.opts.HistoryLength)
	current := s.opts.InitialPrice
	for i := range prices {
		current = clamp(current*(1+step.Rand()/100), historyMinPrice, historyMaxPrice)
		prices[i] = current
	}

	ratio := s.opts.InitialPrice / prices[len(prices)-1]
	for i := range prices {
		prices[i] *= ratio
	}
	return prices
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
