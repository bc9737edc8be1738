package payment

// Notification is the provider's payment-status callback body. Fields
// beyond the three required ones are carried for logging only.
type Notification struct {
	OrderReference    string  `json:"orderReference"`
	TransactionStatus string  `json:"transactionStatus"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	ReasonCode        int     `json:"reasonCode"`
	Reason            string  `json:"reason"`
}

// Transaction statuses the reconciler acts on. Anything else is
// acknowledged and otherwise ignored.
const (
	StatusApproved = "Approved"
	StatusDeclined = "Declined"
	StatusExpired  = "Expired"
)

// Ack is the unconditional webhook response. Signature covers
// orderReference;accept;time.
type Ack struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}
