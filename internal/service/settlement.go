package service

import (
	"math"

	"github.com/mkachanov/marketplace-backend/internal/models"
)

// Ставки платформы. Комиссия шлюза входит в удержание платформы:
// продавец её не видит, она вычитается из комиссионного дохода.
const (
	PlatformFeeRate = 0.25
	GatewayFeeRate  = 0.05
)

// ComputeSplit раскладывает валовую сумму заказа на доли. Доля продавца
// считается вычитанием из валовой суммы, а не независимым округлением,
// поэтому SellerEarning + PlatformTake() == gross всегда сходится до
// копейки.
func ComputeSplit(gross float64) models.SettlementSplit {
	platformFee := round2(gross * PlatformFeeRate)
	gatewayFee := round2(gross * GatewayFeeRate)

	return models.SettlementSplit{
		SellerEarning: round2(gross - platformFee - gatewayFee),
		PlatformFee:   platformFee,
		GatewayFee:    gatewayFee,
		NetProfit:     round2(platformFee - gatewayFee),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
