package attestation

import (
	"math"

	"github.com/holiman/uint256"
)

// 以下函数均为纯函数：32 位输入在 256 位宽度上计算，最终结果超出 uint32
// 时饱和到 math.MaxUint32，而不是回绕。

// CollateralRatio 计算抵押率（百分比）与抵押品的美元价值。
// debt 为 0 时抵押率按 0 处理。
func CollateralRatio(collateral, debt, price uint32) (ratio uint32, collateralUSD uint32) {
	value := product(collateral, price)
	collateralUSD = saturate32(value)
	if debt == 0 {
		return 0, collateralUSD
	}
	scaled := new(uint256.Int).Mul(value, uint256.NewInt(100))
	ratio = saturate32(scaled.Div(scaled, uint256.NewInt(uint64(debt))))
	return ratio, collateralUSD
}

// LiquidationThreshold 计算在最低抵押率下抵押品可支撑的债务上限。
func LiquidationThreshold(collateral, price, minimumRatio uint32) uint32 {
	if minimumRatio == 0 {
		return 0
	}
	scaled := new(uint256.Int).Mul(product(collateral, price), uint256.NewInt(100))
	return saturate32(scaled.Div(scaled, uint256.NewInt(uint64(minimumRatio))))
}

// LoanToValue 计算实时贷款价值比，返回整数百分比。
func LoanToValue(debt, collateral, price uint32) uint32 {
	if collateral == 0 || price == 0 {
		return 0
	}
	scaled := new(uint256.Int).Mul(uint256.NewInt(uint64(debt)), uint256.NewInt(100))
	return saturate32(scaled.Div(scaled, product(collateral, price)))
}

// SumUTXOs 使用带溢出检查的加法累加 UTXO 金额。
func SumUTXOs(utxos []UTXO) (uint64, error) {
	var total uint64
	for i, utxo := range utxos {
		if utxo.Amount > math.MaxUint64-total {
			return 0, overflowAt(i)
		}
		total += utxo.Amount
	}
	return total, nil
}

func product(a, b uint32) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
}

func saturate32(v *uint256.Int) uint32 {
	if !v.IsUint64() || v.Uint64() > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v.Uint64())
}
