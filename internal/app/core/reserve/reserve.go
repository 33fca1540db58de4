// Package reserve 計算一筆紀錄要維持存在所需的最低價值 (保留金)
package reserve

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"
)

const (
	// DefaultStorageOverhead 每筆紀錄額外計費的 metadata bytes
	DefaultStorageOverhead = 128
	// DefaultCostPerByte 每 byte 儲存成本 (單位/byte)
	DefaultCostPerByte = 3480
	// DefaultExemptionMultiplier 保留金倍數
	DefaultExemptionMultiplier = 2
)

// ErrReserveOverflow 保留金計算結果超出 uint64
var ErrReserveOverflow = errors.New("reserve: minimum balance overflows uint64")

// RateSource 提供目前的每 byte 儲存成本，數值可能隨時間變動
type RateSource interface {
	CostPerByte(ctx context.Context) (uint64, error)
}

// StaticRate 固定費率
type StaticRate uint64

// CostPerByte 回傳固定的每 byte 成本
func (r StaticRate) CostPerByte(context.Context) (uint64, error) { return uint64(r), nil }

// AdjustableRate 可在執行期調整的費率
type AdjustableRate struct {
	v atomic.Uint64
}

// NewAdjustableRate 以 initial 為初始費率建立 AdjustableRate
func NewAdjustableRate(initial uint64) *AdjustableRate {
	r := &AdjustableRate{}
	r.v.Store(initial)
	return r
}

// Set 更新費率，之後的 MinimumBalance 立即使用新值
func (r *AdjustableRate) Set(cost uint64) { r.v.Store(cost) }

// CostPerByte 回傳目前費率
func (r *AdjustableRate) CostPerByte(context.Context) (uint64, error) { return r.v.Load(), nil }

// Calculator 計算保留金
// 每次呼叫都重新查詢費率，不做快取 (開戶與提領之間費率可能已經改變)
type Calculator struct {
	Rate                RateSource
	StorageOverhead     uint64
	ExemptionMultiplier uint64
}

// NewCalculator 以預設 overhead 與倍數建立 Calculator
//
// 參數:
//
//	rate: 費率來源
//
// 回傳:
//
//	*Calculator: Calculator 實例
func NewCalculator(rate RateSource) *Calculator {
	return &Calculator{
		Rate:                rate,
		StorageOverhead:     DefaultStorageOverhead,
		ExemptionMultiplier: DefaultExemptionMultiplier,
	}
}

// MinimumBalance = (StorageOverhead + dataLen) * CostPerByte * ExemptionMultiplier
func (c *Calculator) MinimumBalance(ctx context.Context, dataLen uint64) (uint64, error) {
	cost, err := c.Rate.CostPerByte(ctx)
	if err != nil {
		return 0, fmt.Errorf("reserve: query storage cost: %w", err)
	}
	size, carry := bits.Add64(c.StorageOverhead, dataLen, 0)
	if carry != 0 {
		return 0, ErrReserveOverflow
	}
	hi, perYear := bits.Mul64(size, cost)
	if hi != 0 {
		return 0, ErrReserveOverflow
	}
	hi, total := bits.Mul64(perYear, c.ExemptionMultiplier)
	if hi != 0 {
		return 0, ErrReserveOverflow
	}
	return total, nil
}

// IsExempt 回報 backing 是否足以覆蓋 dataLen 的保留金
func (c *Calculator) IsExempt(ctx context.Context, backing, dataLen uint64) (bool, error) {
	minimum, err := c.MinimumBalance(ctx, dataLen)
	if err != nil {
		return false, err
	}
	return backing >= minimum, nil
}
