package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"strategy-lab/internal/dto"

	goValidator "github.com/go-playground/validator/v10"
)

// DefaultTolerance is used by Matches when a non-positive tolerance is given.
const DefaultTolerance = 0.001

const (
	keySeparator    = "_"
	pairSeparator   = ","
	keyFieldCount   = 7
	tagRuleMismatch = "rule_mismatch"
)

// StrategyKeyCodec converts strategies to and from their canonical key.
type StrategyKeyCodec interface {
	Encode(spec dto.StrategySpec) (dto.StrategyKey, error)
	Decode(key dto.StrategyKey) (dto.StrategySpec, error)
	Matches(a, b dto.StrategySpec, tolerance float64) bool
	Validate(spec dto.StrategySpec) error
	Describe(spec dto.StrategySpec) string
}

type strategyKeyCodec struct {
	validator *goValidator.Validate
}

// NewCodec registers the strategy rules on validator and returns a codec
// backed by it. A nil validator gets a fresh instance.
func NewCodec(validator *goValidator.Validate) StrategyKeyCodec {
	if validator == nil {
		validator = goValidator.New()
	}
	validator.RegisterStructValidation(validateStrategySpec, dto.StrategySpec{})
	return &strategyKeyCodec{validator: validator}
}

func (c *strategyKeyCodec) Encode(spec dto.StrategySpec) (dto.StrategyKey, error) {
	if err := c.Validate(spec); err != nil {
		return "", err
	}

	parts := []string{
		string(spec.BuyRule),
		strconv.FormatFloat(spec.BuyDeclineThreshold, 'f', 1, 64),
		strconv.Itoa(int(spec.PurchaseMode)),
		strconv.FormatFloat(spec.PurchaseQuantity, 'f', 3, 64),
		strconv.FormatFloat(spec.StopLossThreshold, 'f', 1, 64),
		strconv.Itoa(int(spec.SellRule)),
		FormatProfit(spec.Profit),
	}
	return dto.StrategyKey(strings.Join(parts, keySeparator)), nil
}

func (c *strategyKeyCodec) Decode(key dto.StrategyKey) (dto.StrategySpec, error) {
	raw := string(key)
	parts := strings.Split(raw, keySeparator)
	if len(parts) != keyFieldCount {
		return dto.StrategySpec{}, dto.NewParseError(raw, "expected %d fields, got %d", keyFieldCount, len(parts))
	}

	buyRule := dto.BuyRuleType(parts[0])
	if !buyRule.IsValid() {
		return dto.StrategySpec{}, dto.NewParseError(raw, "unknown buy rule %q", parts[0])
	}

	decline, err := parseFloatField(raw, "buy decline threshold", parts[1])
	if err != nil {
		return dto.StrategySpec{}, err
	}

	modeCode, err := parseIntField(raw, "purchase mode", parts[2])
	if err != nil {
		return dto.StrategySpec{}, err
	}
	mode := dto.PurchaseMode(modeCode)
	if !mode.IsValid() {
		return dto.StrategySpec{}, dto.NewParseError(raw, "unknown purchase mode %d", modeCode)
	}

	quantity, err := parseFloatField(raw, "purchase quantity", parts[3])
	if err != nil {
		return dto.StrategySpec{}, err
	}

	stopLoss, err := parseFloatField(raw, "stop loss threshold", parts[4])
	if err != nil {
		return dto.StrategySpec{}, err
	}

	sellCode, err := parseIntField(raw, "sell rule", parts[5])
	if err != nil {
		return dto.StrategySpec{}, err
	}
	sellRule := dto.SellRuleType(sellCode)
	if !sellRule.IsValid() {
		return dto.StrategySpec{}, dto.NewParseError(raw, "unknown sell rule %d", sellCode)
	}

	profit, err := ParseProfit(sellRule, parts[6])
	if err != nil {
		return dto.StrategySpec{}, dto.NewParseError(raw, "%v", err)
	}

	return dto.StrategySpec{
		BuyRule:             buyRule,
		BuyDeclineThreshold: decline,
		PurchaseMode:        mode,
		PurchaseQuantity:    quantity,
		StopLossThreshold:   stopLoss,
		SellRule:            sellRule,
		Profit:              profit,
	}, nil
}

func (c *strategyKeyCodec) Matches(a, b dto.StrategySpec, tolerance float64) bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if a.BuyRule != b.BuyRule || a.PurchaseMode != b.PurchaseMode || a.SellRule != b.SellRule {
		return false
	}
	if !within(a.BuyDeclineThreshold, b.BuyDeclineThreshold, tolerance) ||
		!within(a.PurchaseQuantity, b.PurchaseQuantity, tolerance) ||
		!within(a.StopLossThreshold, b.StopLossThreshold, tolerance) {
		return false
	}

	pa, pb := a.Profit, b.Profit
	if pa.Kind != pb.Kind {
		return false
	}
	switch pa.Kind {
	case dto.ProfitKindTarget:
		return within(pa.Target, pb.Target, tolerance)
	case dto.ProfitKindElastic:
		return within(pa.Start, pb.Start, tolerance) && within(pa.Increment, pb.Increment, tolerance)
	case dto.ProfitKindHoldDays:
		return pa.HoldDays == pb.HoldDays
	}
	return true
}

// Validate runs the struct tags of dto.StrategySpec together with the
// cross-field rules registered in NewCodec.
func (c *strategyKeyCodec) Validate(spec dto.StrategySpec) error {
	err := c.validator.Struct(spec)
	if err == nil {
		return nil
	}

	var fieldErrs goValidator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &dto.ValidationError{Field: fe.Field(), Reason: reason, Err: err}
	}
	return &dto.ValidationError{Reason: err.Error(), Err: err}
}

func (c *strategyKeyCodec) Describe(spec dto.StrategySpec) string {
	var b strings.Builder

	b.WriteString(spec.BuyRule.Label())
	if !spec.BuyRule.IsUnconditional() {
		fmt.Fprintf(&b, " %.1f%%", spec.BuyDeclineThreshold)
	}

	switch spec.PurchaseMode {
	case dto.PurchaseModePercent:
		fmt.Fprintf(&b, ", buy %.0f%% of cash", spec.PurchaseQuantity*100)
	case dto.PurchaseModeFixedShares:
		fmt.Fprintf(&b, ", buy %.0f shares", spec.PurchaseQuantity)
	}

	fmt.Fprintf(&b, ", stop %.1f%%, %s", spec.StopLossThreshold, spec.SellRule.Label())
	switch spec.Profit.Kind {
	case dto.ProfitKindTarget:
		fmt.Fprintf(&b, " at %s%%", FormatProfit(spec.Profit))
	case dto.ProfitKindElastic:
		fmt.Fprintf(&b, " from %s%% +%s%%/tier", shortDecimal(spec.Profit.Start), shortDecimal(spec.Profit.Increment))
	case dto.ProfitKindHoldDays:
		fmt.Fprintf(&b, " after %d days", spec.Profit.HoldDays)
	}
	return b.String()
}

// FormatProfit renders the profit parameter token of a key.
func FormatProfit(p dto.ProfitParameters) string {
	switch p.Kind {
	case dto.ProfitKindTarget:
		return shortDecimal(p.Target)
	case dto.ProfitKindElastic:
		return shortDecimal(p.Start) + pairSeparator + shortDecimal(p.Increment)
	case dto.ProfitKindHoldDays:
		return strconv.Itoa(p.HoldDays)
	}
	return ""
}

// ParseProfit is the inverse of FormatProfit for the given sell rule.
func ParseProfit(rule dto.SellRuleType, token string) (dto.ProfitParameters, error) {
	switch rule.ProfitKind() {
	case dto.ProfitKindTarget:
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return dto.ProfitParameters{}, fmt.Errorf("invalid profit target %q", token)
		}
		return dto.TargetProfit(v), nil
	case dto.ProfitKindElastic:
		pair := strings.Split(token, pairSeparator)
		if len(pair) != 2 {
			return dto.ProfitParameters{}, fmt.Errorf("invalid elastic profit %q", token)
		}
		start, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return dto.ProfitParameters{}, fmt.Errorf("invalid elastic start %q", pair[0])
		}
		inc, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return dto.ProfitParameters{}, fmt.Errorf("invalid elastic increment %q", pair[1])
		}
		return dto.ElasticProfit(start, inc), nil
	case dto.ProfitKindHoldDays:
		days, err := strconv.Atoi(token)
		if err != nil {
			return dto.ProfitParameters{}, fmt.Errorf("invalid hold days %q", token)
		}
		return dto.HoldDaysProfit(days), nil
	}
	return dto.ProfitParameters{}, fmt.Errorf("unknown sell rule %d", rule)
}

// shortDecimal is the shortest exact decimal with at least one fractional digit.
func shortDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func parseFloatField(raw, name, token string) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, dto.NewParseError(raw, "invalid %s %q", name, token)
	}
	return v, nil
}

func parseIntField(raw, name, token string) (int, error) {
	v, err := strconv.Atoi(token)
	if err != nil {
		return 0, dto.NewParseError(raw, "invalid %s %q", name, token)
	}
	return v, nil
}

func within(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// rounded is v as it reads back from a key field with the given decimals.
func rounded(v float64, decimals int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	return r
}

// validateStrategySpec also checks the key-rounded values, so that every
// accepted spec decodes back to a valid one.
func validateStrategySpec(sl goValidator.StructLevel) {
	spec := sl.Current().Interface().(dto.StrategySpec)

	numeric := []struct {
		name  string
		value float64
	}{
		{"BuyDeclineThreshold", spec.BuyDeclineThreshold},
		{"PurchaseQuantity", spec.PurchaseQuantity},
		{"StopLossThreshold", spec.StopLossThreshold},
		{"Profit.Target", spec.Profit.Target},
		{"Profit.Start", spec.Profit.Start},
		{"Profit.Increment", spec.Profit.Increment},
	}
	nonFinite := false
	for _, f := range numeric {
		if !finite(f.value) {
			sl.ReportError(f.value, f.name, f.name, "finite", "")
			nonFinite = true
		}
	}
	if nonFinite {
		return
	}

	if !spec.BuyRule.IsValid() {
		sl.ReportError(spec.BuyRule, "BuyRule", "BuyRule", "buy_rule", string(spec.BuyRule))
	} else if spec.BuyRule.IsUnconditional() && spec.BuyDeclineThreshold != 0 {
		sl.ReportError(spec.BuyDeclineThreshold, "BuyDeclineThreshold", "BuyDeclineThreshold", tagRuleMismatch, "0")
	} else if !spec.BuyRule.IsUnconditional() && rounded(spec.BuyDeclineThreshold, 1) <= 0 {
		sl.ReportError(spec.BuyDeclineThreshold, "BuyDeclineThreshold", "BuyDeclineThreshold", "gte", "0.05")
	}

	switch spec.PurchaseMode {
	case dto.PurchaseModePercent:
		if rounded(spec.PurchaseQuantity, 3) <= 0 || spec.PurchaseQuantity > 1 {
			sl.ReportError(spec.PurchaseQuantity, "PurchaseQuantity", "PurchaseQuantity", "percent_range", "(0,1]")
		}
	case dto.PurchaseModeFixedShares:
		if spec.PurchaseQuantity < 1 || math.Trunc(spec.PurchaseQuantity) != spec.PurchaseQuantity {
			sl.ReportError(spec.PurchaseQuantity, "PurchaseQuantity", "PurchaseQuantity", "whole_shares", "1")
		}
	}

	// -0.04 would be keyed as "-0.0".
	if rounded(spec.StopLossThreshold, 1) >= 0 {
		sl.ReportError(spec.StopLossThreshold, "StopLossThreshold", "StopLossThreshold", "lte", "-0.05")
	}

	if !spec.SellRule.IsValid() {
		return
	}
	p := spec.Profit
	if p.Kind != spec.SellRule.ProfitKind() {
		sl.ReportError(p.Kind, "Profit", "Profit", tagRuleMismatch, strconv.Itoa(int(spec.SellRule)))
		return
	}
	switch p.Kind {
	case dto.ProfitKindTarget:
		if p.Target <= 0 {
			sl.ReportError(p.Target, "Profit.Target", "Target", "gt", "0")
		}
	case dto.ProfitKindElastic:
		if p.Start <= 0 {
			sl.ReportError(p.Start, "Profit.Start", "Start", "gt", "0")
		}
		if p.Increment <= 0 {
			sl.ReportError(p.Increment, "Profit.Increment", "Increment", "gt", "0")
		}
	case dto.ProfitKindHoldDays:
		if p.HoldDays < 1 {
			sl.ReportError(p.HoldDays, "Profit.HoldDays", "HoldDays", "gte", "1")
		}
	}
}
