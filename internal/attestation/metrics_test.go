package attestation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollateralRatio(t *testing.T) {
	ratio, usd := CollateralRatio(100, 50, 300)
	require.Equal(t, uint32(60000), ratio)
	require.Equal(t, uint32(30000), usd)

	ratio, usd = CollateralRatio(100, 0, 300)
	require.Zero(t, ratio)
	require.Equal(t, uint32(30000), usd)
}

func TestCollateralRatioSaturates(t *testing.T) {
	ratio, usd := CollateralRatio(math.MaxUint32, 1, math.MaxUint32)
	require.Equal(t, uint32(math.MaxUint32), ratio)
	require.Equal(t, uint32(math.MaxUint32), usd)

	// usd 饱和但比值仍由未饱和的乘积计算
	ratio, usd = CollateralRatio(1<<20, 1<<24, 1<<20)
	require.Equal(t, uint32(math.MaxUint32), usd)
	require.Equal(t, uint32(6553600), ratio)
}

func TestLiquidationThreshold(t *testing.T) {
	require.Equal(t, uint32(20000), LiquidationThreshold(100, 300, 150))
	require.Zero(t, LiquidationThreshold(100, 300, 0))
	require.Equal(t, uint32(math.MaxUint32), LiquidationThreshold(math.MaxUint32, math.MaxUint32, 1))
}

func TestLoanToValue(t *testing.T) {
	require.Equal(t, uint32(50), LoanToValue(15000, 100, 300))
	require.Zero(t, LoanToValue(50, 100, 300))
	require.Zero(t, LoanToValue(50, 0, 300))
	require.Zero(t, LoanToValue(50, 100, 0))
	require.Equal(t, uint32(math.MaxUint32), LoanToValue(math.MaxUint32, 1, 1))
}

func TestMetricsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		r1, u1 := CollateralRatio(12345, 678, 91011)
		r2, u2 := CollateralRatio(12345, 678, 91011)
		require.Equal(t, r1, r2)
		require.Equal(t, u1, u2)
		require.Equal(t, LiquidationThreshold(12345, 91011, 150), LiquidationThreshold(12345, 91011, 150))
		require.Equal(t, LoanToValue(678, 12345, 91011), LoanToValue(678, 12345, 91011))
	}
	require.Equal(t, uint32(749020530), LiquidationThreshold(12345, 91011, 150))
	require.Equal(t, uint32(60), LoanToValue(678000000, 12345, 91011))
}

func TestSumUTXOs(t *testing.T) {
	total, err := SumUTXOs([]UTXO{{Amount: 150000}, {Amount: 850000}})
	require.NoError(t, err)
	require.Equal(t, uint64(1000000), total)

	total, err = SumUTXOs(nil)
	require.NoError(t, err)
	require.Zero(t, total)

	_, err = SumUTXOs([]UTXO{{Amount: 1}, {Amount: math.MaxUint64}})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrArithmeticOverflow))
	require.Equal(t, "utxos[1].amount", FieldOf(err))
}

func TestHashIdentity(t *testing.T) {
	a := HashIdentityString("org-1")
	b := HashIdentityString("org-1")
	c := HashIdentityString("org-2")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, DigestLength)
	require.Equal(t, HashIdentity([]byte("org-1")), a)
}
