package models

// ProviderOrder is the order object returned by the payment provider
type ProviderOrder struct {
	Id         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

// ProviderPayment is a payment attempt against an order
type ProviderPayment struct {
	Id        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	OrderId   string `json:"order_id"`
	Method    string `json:"method"`
	Bank      string `json:"bank,omitempty"`
	Vpa       string `json:"vpa,omitempty"`
	Email     string `json:"email,omitempty"`
	Contact   string `json:"contact,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Captured reports whether the provider considers the money collected.
func (p ProviderPayment) Captured() bool {
	return p.Status == "captured"
}

// WebhookEvent is the envelope of a provider notification
type WebhookEvent struct {
	Event     string `json:"event"`
	AccountId string `json:"account_id"`
	Payload   struct {
		Payment struct {
			Entity ProviderPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}
