package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSplit(t *testing.T) {
	split := ComputeSplit(1000)

	assert.Equal(t, 250.0, split.PlatformFee)
	assert.Equal(t, 50.0, split.GatewayFee)
	assert.Equal(t, 700.0, split.SellerEarning)
	assert.Equal(t, 200.0, split.NetProfit)
	assert.Equal(t, 300.0, split.PlatformTake())
}

func TestComputeSplit_Conservation(t *testing.T) {
	// Доля продавца считается вычитанием, поэтому раскладка сходится с
	// валовой суммой на любых неудобных для округления значениях.
	for _, gross := range []float64{0.01, 0.03, 1, 9.99, 33.33, 100.10, 1234.56, 99999.99} {
		split := ComputeSplit(gross)
		assert.InDelta(t, gross, split.SellerEarning+split.PlatformTake(), 0.001, "gross=%v", gross)
		assert.GreaterOrEqual(t, split.SellerEarning, 0.0)
	}
}

func TestComputeSplit_SmallAmounts(t *testing.T) {
	split := ComputeSplit(0.10)

	assert.Equal(t, 0.03, split.PlatformFee)
	assert.Equal(t, 0.01, split.GatewayFee)
	assert.InDelta(t, 0.06, split.SellerEarning, 0.001)
}
