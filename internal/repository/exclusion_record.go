package repository

import (
	"fmt"
	"sort"
	"strconv"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/pkg/logger"
)

const (
	snapshotVersion    = 2
	minRecordFields    = 8
	recordFieldsLatest = 9
)

// recordCodec converts between snapshots and their persisted records.
type recordCodec struct {
	keys codec.StrategyKeyCodec
	log  *logger.Logger
}

func (c recordCodec) toRecord(key dto.StrategyKey, scope dto.ExclusionScope, count int) (dto.ExclusionRecord, error) {
	spec, err := c.keys.Decode(key)
	if err != nil {
		return dto.ExclusionRecord{}, err
	}
	return dto.ExclusionRecord{
		BuyRule:             string(spec.BuyRule),
		PurchaseMode:        int(spec.PurchaseMode),
		PurchaseQuantity:    spec.PurchaseQuantity,
		StopLossThreshold:   spec.StopLossThreshold,
		SellRule:            int(spec.SellRule),
		ProfitParameter:     codec.FormatProfit(spec.Profit),
		Scope:               scope,
		DropoutCount:        count,
		BuyDeclineThreshold: spec.BuyDeclineThreshold,
	}, nil
}

func (c recordCodec) keyOf(r dto.ExclusionRecord) (dto.StrategyKey, error) {
	sellRule := dto.SellRuleType(r.SellRule)
	profit, err := codec.ParseProfit(sellRule, r.ProfitParameter)
	if err != nil {
		return "", err
	}
	return c.keys.Encode(dto.StrategySpec{
		BuyRule:             dto.BuyRuleType(r.BuyRule),
		BuyDeclineThreshold: r.BuyDeclineThreshold,
		PurchaseMode:        dto.PurchaseMode(r.PurchaseMode),
		PurchaseQuantity:    r.PurchaseQuantity,
		StopLossThreshold:   r.StopLossThreshold,
		SellRule:            sellRule,
		Profit:              profit,
	})
}

func sortedKeys(set dto.KeySet) []dto.StrategyKey {
	keys := make([]dto.StrategyKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Records flattens a snapshot in a stable order: permanent, market codes
// ascending, then dropout counters. Keys that do not decode are skipped.
func (c recordCodec) Records(snap *dto.ExclusionSnapshot) []dto.ExclusionRecord {
	records := make([]dto.ExclusionRecord, 0, snap.Size())
	add := func(key dto.StrategyKey, scope dto.ExclusionScope, count int) {
		r, err := c.toRecord(key, scope, count)
		if err != nil {
			c.log.Warn("Skipping undecodable exclusion key", logger.StringField("key", key.String()), logger.ErrorField(err))
			return
		}
		records = append(records, r)
	}

	for _, k := range sortedKeys(snap.Permanent) {
		add(k, dto.ScopePermanent, 0)
	}

	codes := make([]int, 0, len(snap.ByMarket))
	for code := range snap.ByMarket {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		for _, k := range sortedKeys(snap.ByMarket[code]) {
			add(k, dto.ExclusionScope(code), 0)
		}
	}

	counted := make(dto.KeySet, len(snap.DropoutCounts))
	for k := range snap.DropoutCounts {
		counted.Add(k)
	}
	for _, k := range sortedKeys(counted) {
		add(k, dto.ScopeDropoutOnly, snap.DropoutCounts[k])
	}
	return records
}

// Snapshot rebuilds a snapshot, skipping records that fail to convert.
func (c recordCodec) Snapshot(records []dto.ExclusionRecord) *dto.ExclusionSnapshot {
	snap := dto.NewExclusionSnapshot()
	for i, r := range records {
		key, err := c.keyOf(r)
		if err != nil {
			c.log.Warn("Skipping invalid exclusion record", logger.IntField("index", i), logger.ErrorField(err))
			continue
		}

		switch {
		case r.Scope == dto.ScopePermanent:
			snap.Permanent.Add(key)
		case r.Scope == dto.ScopeDropoutOnly:
			if r.DropoutCount > 0 {
				snap.DropoutCounts[key] += r.DropoutCount
			}
		default:
			if _, ok := dto.MarketConditionFromCode(int(r.Scope)); !ok {
				c.log.Warn("Skipping exclusion record with unknown scope",
					logger.IntField("index", i),
					logger.IntField("scope", int(r.Scope)),
				)
				continue
			}
			code := int(r.Scope)
			if snap.ByMarket[code] == nil {
				snap.ByMarket[code] = dto.KeySet{}
			}
			snap.ByMarket[code].Add(key)
		}
	}
	return snap
}

// recordFromValues parses the array form. Numbers may arrive as any numeric
// type depending on the decoder.
func recordFromValues(values []interface{}) (dto.ExclusionRecord, error) {
	if len(values) < minRecordFields {
		return dto.ExclusionRecord{}, fmt.Errorf("record has %d fields, need at least %d", len(values), minRecordFields)
	}

	var (
		r   dto.ExclusionRecord
		err error
	)
	if r.BuyRule, err = asString(values[0]); err != nil {
		return r, fmt.Errorf("buy rule: %w", err)
	}
	if r.PurchaseMode, err = asInt(values[1]); err != nil {
		return r, fmt.Errorf("purchase mode: %w", err)
	}
	if r.PurchaseQuantity, err = asFloat(values[2]); err != nil {
		return r, fmt.Errorf("purchase quantity: %w", err)
	}
	if r.StopLossThreshold, err = asFloat(values[3]); err != nil {
		return r, fmt.Errorf("stop loss: %w", err)
	}
	if r.SellRule, err = asInt(values[4]); err != nil {
		return r, fmt.Errorf("sell rule: %w", err)
	}
	if r.ProfitParameter, err = asString(values[5]); err != nil {
		return r, fmt.Errorf("profit parameter: %w", err)
	}
	scope, err := asInt(values[6])
	if err != nil {
		return r, fmt.Errorf("scope: %w", err)
	}
	r.Scope = dto.ExclusionScope(scope)
	if r.DropoutCount, err = asInt(values[7]); err != nil {
		return r, fmt.Errorf("dropout count: %w", err)
	}
	if len(values) >= recordFieldsLatest {
		if r.BuyDeclineThreshold, err = asFloat(values[8]); err != nil {
			return r, fmt.Errorf("buy decline threshold: %w", err)
		}
	}
	return r, nil
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func asInt(v interface{}) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int(f), nil
}

// asString accepts numbers too, older snapshots stored single profit targets
// as plain numbers.
func asString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", fmt.Errorf("missing value")
	}
	f, err := asFloat(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
