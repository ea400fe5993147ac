package models

// OrderKind виды заказов на платформе
const (
	OrderKindProduct = "product"
	OrderKindService = "service"
	OrderKindProject = "project"
)

// OrderStatus константы статусов заказов
const (
	OrderStatusPending           = "pending"
	OrderStatusInProgress        = "in_progress"
	OrderStatusDelivered         = "delivered"
	OrderStatusRevisionRequested = "revision_requested"
	OrderStatusCompleted         = "completed"
	OrderStatusDisputed          = "disputed"
	OrderStatusCancelled         = "cancelled"
	OrderStatusRefunded          = "refunded"
)

// PaymentStatus статусы оплаты заказа
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// Типы транзакций
const (
	TransactionTypePayment          = "payment"
	TransactionTypePayout           = "payout"
	TransactionTypeRefund           = "refund"
	TransactionTypeWithdrawal       = "withdrawal"
	TransactionTypeWithdrawalReturn = "withdrawal_return"
)

// Статусы транзакций
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Статусы выводов средств
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
)

// Статусы споров
const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

// FavoredParty сторона, в пользу которой разрешён спор
const (
	FavoredPartyBuyer  = "buyer"
	FavoredPartySeller = "seller"
	FavoredPartySplit  = "split"
)

// ProposalStatus константы статусов предложений по проектам
const (
	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRejected = "rejected"
)

// Роли акторов. Роль webhook используется только внутренним
// конвейером приёма платёжных событий и никогда не приходит из JWT.
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleWebhook = "webhook"
)

// ValidOrderKinds список валидных видов заказов
var ValidOrderKinds = map[string]struct{}{
	OrderKindProduct: {},
	OrderKindService: {},
	OrderKindProject: {},
}

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusPending:           {},
	OrderStatusInProgress:        {},
	OrderStatusDelivered:         {},
	OrderStatusRevisionRequested: {},
	OrderStatusCompleted:         {},
	OrderStatusDisputed:          {},
	OrderStatusCancelled:         {},
	OrderStatusRefunded:          {},
}

// TerminalOrderStatuses статусы, из которых не определён ни один переход
var TerminalOrderStatuses = map[string]struct{}{
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

// IsTerminalStatus сообщает, является ли статус заказа конечным.
func IsTerminalStatus(status string) bool {
	_, ok := TerminalOrderStatuses[status]
	return ok
}
