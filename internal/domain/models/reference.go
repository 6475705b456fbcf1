package models

// Client is a brokerage account holder.
type Client struct {
	ClientCode string `json:"clientCode" validate:"required,max=64,alphanum"`
	Name       string `json:"name" validate:"required,max=255"`
	ClientType string `json:"clientType" validate:"required,oneof=individual corporate institutional"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Status     string `json:"status" validate:"required,oneof=active suspended closed"`
}

type Broker struct {
	BrokerCode string `json:"brokerCode" validate:"required,max=64,alphanum"`
	Name       string `json:"name" validate:"required,max=255"`
	LicenseNo  string `json:"licenseNo" validate:"required,max=64"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
}

type Exchange struct {
	ExchangeCode string `json:"exchangeCode" validate:"required,max=16,alphanum"`
	Name         string `json:"name" validate:"required,max=255"`
	Country      string `json:"country" validate:"required,len=2,alpha"`
	Timezone     string `json:"timezone" validate:"required,timezone"`
}

// Stock is keyed by exchange and symbol.
type Stock struct {
	ExchangeCode string `json:"exchangeCode" validate:"required,max=16,alphanum"`
	Symbol       string `json:"symbol" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=255"`
	ISIN         string `json:"isin" validate:"omitempty,len=12,alphanum"`
	LotSize      int64  `json:"lotSize" validate:"gte=1"`
	Sector       string `json:"sector" validate:"omitempty,max=64"`
}

type Trader struct {
	TraderCode string `json:"traderCode" validate:"required,max=64,alphanum"`
	BrokerCode string `json:"brokerCode" validate:"required,max=64,alphanum"`
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
}

// User is an administrative user record, not a login credential.
type User struct {
	UserID   string `json:"userId" validate:"required,max=64"`
	UserName string `json:"userName" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Role     string `json:"role" validate:"required,oneof=maker checker admin viewer"`
}

type OrderGroup struct {
	GroupCode   string `json:"groupCode" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=255"`
}
