// Package model содержит доменные сущности сервиса команд салона.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComandaStatus описывает состояние комманды (открытого счёта клиента).
type ComandaStatus string

const (
	ComandaStatusOpen      ComandaStatus = "open"
	ComandaStatusFinalized ComandaStatus = "finalized"
)

// LineType различает строки услуг и товаров.
type LineType string

const (
	LineTypeService LineType = "service"
	LineTypeProduct LineType = "product"
)

// PaymentMethod описывает способ оплаты при закрытии комманды.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "dinheiro"
	PaymentPix        PaymentMethod = "pix"
	PaymentCreditCard PaymentMethod = "cartao_credito"
	PaymentDebitCard  PaymentMethod = "cartao_debito"
)

// PaymentMethods перечисляет все допустимые способы оплаты.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentPix, PaymentCreditCard, PaymentDebitCard}

// CommissionStatus описывает состояние выплаты комиссии.
type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

// SessionStatus описывает состояние кассовой смены.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// MovementType различает внесения и изъятия наличных в кассовой смене.
type MovementType string

const (
	MovementSupply     MovementType = "supply"
	MovementWithdrawal MovementType = "withdrawal"
)

// Staff описывает сотрудника салона.
type Staff struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Client описывает клиента салона и его накопительные показатели.
type Client struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	VisitCount    int             `json:"visitCount"`
	LifetimeSpend decimal.Decimal `json:"lifetimeSpend"`
	CreditBalance decimal.Decimal `json:"creditBalance"`
}

// CatalogItem описывает услугу или товар из справочника.
type CatalogItem struct {
	ID             string
	Type           LineType
	Name           string
	Price          decimal.Decimal
	CommissionRate *decimal.Decimal
}

// Line описывает строку комманды.
// StaffID обязателен: для услуг это мастер, для товаров — продавец.
type Line struct {
	ID             string           `json:"id"`
	Type           LineType         `json:"type"`
	CatalogID      *string          `json:"catalogId,omitempty"`
	Name           string           `json:"name"`
	UnitPrice      decimal.Decimal  `json:"unitPrice"`
	Quantity       int              `json:"quantity"`
	StaffID        string           `json:"staffId"`
	SoldByName     string           `json:"soldByName,omitempty"`
	CommissionRate *decimal.Decimal `json:"commissionRate,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Gross возвращает стоимость строки без скидок.
func (l Line) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Comanda описывает открытый или закрытый счёт клиента.
type Comanda struct {
	ID            string           `json:"id"`
	ClientID      string           `json:"clientId"`
	StaffID       string           `json:"staffId"`
	Status        ComandaStatus    `json:"status"`
	Lines         []Line           `json:"lines"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	ValorFinal    *decimal.Decimal `json:"valorFinal,omitempty"`
	PaymentMethod *PaymentMethod   `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	FinalizedAt   *time.Time       `json:"finalizedAt,omitempty"`
}

// Total возвращает сумму всех строк комманды.
func (c Comanda) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Gross())
	}
	return total
}

// NewLine описывает данные для добавления строки в комманду.
type NewLine struct {
	Type      LineType
	CatalogID *string
	Name      string
	UnitPrice *decimal.Decimal
	Quantity  int
	SoldByID  *string
}

// FinalizeInput содержит параметры закрытия комманды.
type FinalizeInput struct {
	Discount                decimal.Decimal
	PaymentMethod           PaymentMethod
	CreditAmount            decimal.Decimal
	LineCommissionOverrides map[string]decimal.Decimal
}

// LineCommission описывает комиссию, рассчитанную по одной строке.
type LineCommission struct {
	LineID   string          `json:"lineId"`
	Type     LineType        `json:"type"`
	ItemName string          `json:"itemName"`
	Gross    decimal.Decimal `json:"gross"`
	Amount   decimal.Decimal `json:"amount"`
	StaffID  string          `json:"staffId"`
}

// Finalization описывает неизменяемую запись о закрытии комманды.
type Finalization struct {
	ID            string           `json:"id"`
	ComandaID     string           `json:"comandaId"`
	ClientID      string           `json:"clientId"`
	StaffID       string           `json:"staffId"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Discount      decimal.Decimal  `json:"discount"`
	CreditAmount  decimal.Decimal  `json:"creditAmount"`
	ValorFinal    decimal.Decimal  `json:"valorFinal"`
	AmountPaid    decimal.Decimal  `json:"amountPaid"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
	TotalComissao decimal.Decimal  `json:"totalComissao"`
	Commissions   []LineCommission `json:"commissions"`
	BusinessDay   string           `json:"businessDay"`
	FinalizedAt   time.Time        `json:"finalizedAt"`
}

// Commission описывает запись в реестре комиссий.
type Commission struct {
	ID             string           `json:"id"`
	ComandaID      string           `json:"comandaId"`
	FinalizationID string           `json:"finalizationId"`
	LineID         string           `json:"lineId"`
	Type           LineType         `json:"type"`
	ItemName       string           `json:"itemName"`
	Gross          decimal.Decimal  `json:"gross"`
	Amount         decimal.Decimal  `json:"amount"`
	StaffID        string           `json:"staffId"`
	Status         CommissionStatus `json:"status"`
	BusinessDay    string           `json:"businessDay"`
	CreatedAt      time.Time        `json:"createdAt"`
	PaidAt         *time.Time       `json:"paidAt,omitempty"`
}

// Settlement содержит результат расчёта закрытия, который репозиторий сохраняет в одной транзакции.
type Settlement struct {
	Finalization Finalization
	HistoryItems []HistoryItem
}

// HistoryItem описывает краткую запись о купленной позиции в истории клиента.
type HistoryItem struct {
	Type     LineType `json:"type"`
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
}

// DailyRevenue содержит агрегат выручки за календарный день салона.
type DailyRevenue struct {
	Day        string          `json:"date"`
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
	Count      int             `json:"count"`
}

// CashierSession описывает кассовую смену сотрудника.
type CashierSession struct {
	ID          string          `json:"id"`
	StaffID     string          `json:"responsibleId"`
	InitialCash decimal.Decimal `json:"initialCash"`
	Status      SessionStatus   `json:"status"`
	OpenedAt    time.Time       `json:"openedAt"`
	ClosedAt    *time.Time      `json:"closedAt,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Summary     *SessionSummary `json:"summary,omitempty"`
}

// SessionSummary содержит неизменяемый итог, сохраняемый при закрытии смены.
type SessionSummary struct {
	Supplies      decimal.Decimal                   `json:"supplies"`
	Withdrawals   decimal.Decimal                   `json:"withdrawals"`
	ExpectedCash  decimal.Decimal                   `json:"expectedCash"`
	DeclaredCash  *decimal.Decimal                  `json:"declaredCash,omitempty"`
	Difference    *decimal.Decimal                  `json:"difference,omitempty"`
	PaymentTotals map[PaymentMethod]decimal.Decimal `json:"paymentTotals"`
}

// CashMovement описывает внесение или изъятие наличных.
type CashMovement struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"sessionId"`
	Type        MovementType    `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// StaffCommissionTotals описывает строку отчёта по комиссиям одного сотрудника.
type StaffCommissionTotals struct {
	StaffID      string          `json:"staffId"`
	StaffName    string          `json:"staffName"`
	ServiceTotal decimal.Decimal `json:"serviceTotal"`
	ProductTotal decimal.Decimal `json:"productTotal"`
	Total        decimal.Decimal `json:"total"`
	Pending      decimal.Decimal `json:"pending"`
	Paid         decimal.Decimal `json:"paid"`
	Count        int             `json:"count"`
}

// Faturamento содержит дневную выручку вместе с закрытиями этого дня.
type Faturamento struct {
	DailyRevenue
	Comandas []Finalization `json:"comandas"`
}
