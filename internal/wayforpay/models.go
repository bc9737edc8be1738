package wayforpay

// Purchase page response: exactly one of URL or Reason is expected.

type purchaseResponse struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Recurring-billing API payloads.

type removeRegularRequest struct {
	RequestType      string `json:"requestType"`
	MerchantAccount  string `json:"merchantAccount"`
	MerchantPassword string `json:"merchantPassword"`
	OrderReference   string `json:"orderReference"`
}

type removeRegularResponse struct {
	ReasonCode int    `json:"reasonCode"`
	Reason     string `json:"reason"`
}
