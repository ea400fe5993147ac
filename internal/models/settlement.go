package models

// SettlementSplit результат раскладки валовой суммы заказа. GatewayFee
// вычитается из общего удержания платформы, а не добавляется сверх
// валовой суммы: SellerEarning + PlatformFee + GatewayFee == gross.
type SettlementSplit struct {
	SellerEarning float64 `json:"seller_earning"`
	PlatformFee   float64 `json:"platform_fee"`
	GatewayFee    float64 `json:"gateway_fee"`
	NetProfit     float64 `json:"net_profit"`
}

// PlatformTake полное удержание платформы: комиссия вместе со сбором
// шлюза. Именно эта величина пишется в orders.platform_fee, чтобы
// инвариант seller_earning + platform_fee == gross_amount держался точно.
func (s SettlementSplit) PlatformTake() float64 {
	return s.PlatformFee + s.GatewayFee
}
