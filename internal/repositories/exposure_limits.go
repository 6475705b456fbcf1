package repositories

import (
	"riskadmin/internal/domain"
	"riskadmin/internal/domain/models"
	"riskadmin/internal/workflow"
)

// ExposureLimitEntity notifies the downstream risk ledger on every approved change.
var ExposureLimitEntity = &workflow.Entity{
	Name:  "exposure-limits",
	Table: "exposure_limits",
	Keys: []workflow.Field{
		{Name: "clientCode", Column: "client_code"},
		{Name: "exchangeCode", Column: "exchange_code"},
	},
	Fields: []workflow.Field{
		{Name: "limitAmount", Column: "limit_amount", Kind: workflow.KindFloat},
		{Name: "marginRate", Column: "margin_rate", Kind: workflow.KindFloat},
		{Name: "currency", Column: "currency"},
	},
	DefaultSort: "clientCode",
	Notify:      []domain.ActionType{domain.ActionInsert, domain.ActionUpdate, domain.ActionDelete},
}

var ExposureLimitCodec = Codec[models.ExposureLimit]{
	Keys: func(l models.ExposureLimit) workflow.Values {
		return workflow.Values{"clientCode": l.ClientCode, "exchangeCode": l.ExchangeCode}
	},
	Fields: func(l models.ExposureLimit) workflow.Values {
		return workflow.Values{
			"limitAmount": l.LimitAmount,
			"marginRate":  l.MarginRate,
			"currency":    l.Currency,
		}
	},
	Decode: func(keys, fields workflow.Values) models.ExposureLimit {
		return models.ExposureLimit{
			ClientCode:   str(keys, "clientCode"),
			ExchangeCode: str(keys, "exchangeCode"),
			LimitAmount:  f64(fields, "limitAmount"),
			MarginRate:   f64(fields, "marginRate"),
			Currency:     str(fields, "currency"),
		}
	},
}
