package domain

import "time"

type OrderStatus string

const (
	OrderWaitingPayment OrderStatus = "waiting_payment"
	OrderApproved       OrderStatus = "approved"
)

// AmountMode tells which currency the correspondent expressed the amount in.
type AmountMode string

const (
	ModeUnset AmountMode = ""
	ModeUSD   AmountMode = "USD"
	ModeAMD   AmountMode = "AMD"
)

type Locale string

const (
	LocaleAM Locale = "am"
	LocaleRU Locale = "ru"
)

// Valid reports whether l is one of the supported locales.
func (l Locale) Valid() bool {
	return l == LocaleAM || l == LocaleRU
}

// OrderPayload is the pricing snapshot taken when the offer was sent.
type OrderPayload struct {
	Locale     Locale     `json:"lang"`
	Mode       AmountMode `json:"mode"`
	USDAmount  float64    `json:"x_usd"`
	USDAMD     float64    `json:"usd_amd"`
	FeeMult    float64    `json:"fee_mult"`
	FixedAMD   float64    `json:"fixed_amd"`
	TotalAMD   int64      `json:"sum_amd"`
	WalletAddr string     `json:"wallet_addr"`
}

type Order struct {
	ID              int64        `json:"id"`
	CorrespondentID int64        `json:"correspondent_id"`
	Status          OrderStatus  `json:"status"`
	Payload         OrderPayload `json:"payload"`
	CreatedAt       time.Time    `json:"created_at"`
	ReceiptKey      string       `json:"receipt_key,omitempty"`
}

// Receipt is a proof-of-payment attachment registered against an order.
type Receipt struct {
	ID              int64     `json:"id"`
	CorrespondentID int64     `json:"correspondent_id"`
	OrderID         int64     `json:"order_id"`
	DedupKey        string    `json:"dedup_key"`
	CreatedAt       time.Time `json:"created_at"`
}
