package models

// ExposureLimit caps a client's exposure on one exchange.
type ExposureLimit struct {
	ClientCode   string  `json:"clientCode" validate:"required,max=64,alphanum"`
	ExchangeCode string  `json:"exchangeCode" validate:"required,max=16,alphanum"`
	LimitAmount  float64 `json:"limitAmount" validate:"gte=0"`
	MarginRate   float64 `json:"marginRate" validate:"gte=0,lte=1"`
	Currency     string  `json:"currency" validate:"required,len=3,alpha"`
}
