package repositories

import (
	"riskadmin/internal/domain"
	"riskadmin/internal/domain/models"
	"riskadmin/internal/workflow"
)

var ClientEntity = &workflow.Entity{
	Name:  "clients",
	Table: "clients",
	Keys:  []workflow.Field{{Name: "clientCode", Column: "client_code"}},
	Fields: []workflow.Field{
		{Name: "name", Column: "name"},
		{Name: "clientType", Column: "client_type"},
		{Name: "email", Column: "email"},
		{Name: "phone", Column: "phone"},
		{Name: "status", Column: "status"},
	},
	DefaultSort: "clientCode",
	Notify:      []domain.ActionType{domain.ActionDelete},
}

var ClientCodec = Codec[models.Client]{
	Keys: func(c models.Client) workflow.Values {
		return workflow.Values{"clientCode": c.ClientCode}
	},
	Fields: func(c models.Client) workflow.Values {
		return workflow.Values{
			"name":       c.Name,
			"clientType": c.ClientType,
			"email":      c.Email,
			"phone":      c.Phone,
			"status":     c.Status,
		}
	},
	Decode: func(keys, fields workflow.Values) models.Client {
		return models.Client{
			ClientCode: str(keys, "clientCode"),
			Name:       str(fields, "name"),
			ClientType: str(fields, "clientType"),
			Email:      str(fields, "email"),
			Phone:      str(fields, "phone"),
			Status:     str(fields, "status"),
		}
	},
}

var BrokerEntity = &workflow.Entity{
	Name:  "brokers",
	Table: "brokers",
	Keys:  []workflow.Field{{Name: "brokerCode", Column: "broker_code"}},
	Fields: []workflow.Field{
		{Name: "name", Column: "name"},
		{Name: "licenseNo", Column: "license_no"},
		{Name: "email", Column: "email"},
	},
	DefaultSort: "brokerCode",
}

var BrokerCodec = Codec[models.Broker]{
	Keys: func(b models.Broker) workflow.Values {
		return workflow.Values{"brokerCode": b.BrokerCode}
	},
	Fields: func(b models.Broker) workflow.Values {
		return workflow.Values{"name": b.Name, "licenseNo": b.LicenseNo, "email": b.Email}
	},
	Decode: func(keys, fields workflow.Values) models.Broker {
		return models.Broker{
			BrokerCode: str(keys, "brokerCode"),
			Name:       str(fields, "name"),
			LicenseNo:  str(fields, "licenseNo"),
			Email:      str(fields, "email"),
		}
	},
}

var ExchangeEntity = &workflow.Entity{
	Name:  "exchanges",
	Table: "exchanges",
	Keys:  []workflow.Field{{Name: "exchangeCode", Column: "exchange_code"}},
	Fields: []workflow.Field{
		{Name: "name", Column: "name"},
		{Name: "country", Column: "country"},
		{Name: "timezone", Column: "timezone"},
	},
	DefaultSort: "exchangeCode",
}

var ExchangeCodec = Codec[models.Exchange]{
	Keys: func(x models.Exchange) workflow.Values {
		return workflow.Values{"exchangeCode": x.ExchangeCode}
	},
	Fields: func(x models.Exchange) workflow.Values {
		return workflow.Values{"name": x.Name, "country": x.Country, "timezone": x.Timezone}
	},
	Decode: func(keys, fields workflow.Values) models.Exchange {
		return models.Exchange{
			ExchangeCode: str(keys, "exchangeCode"),
			Name:         str(fields, "name"),
			Country:      str(fields, "country"),
			Timezone:     str(fields, "timezone"),
		}
	},
}

var StockEntity = &workflow.Entity{
	Name:  "stocks",
	Table: "stocks",
	Keys: []workflow.Field{
		{Name: "exchangeCode", Column: "exchange_code"},
		{Name: "symbol", Column: "symbol"},
	},
	Fields: []workflow.Field{
		{Name: "name", Column: "name"},
		{Name: "isin", Column: "isin"},
		{Name: "lotSize", Column: "lot_size", Kind: workflow.KindInt},
		{Name: "sector", Column: "sector"},
	},
	DefaultSort: "symbol",
}

var StockCodec = Codec[models.Stock]{
	Keys: func(s models.Stock) workflow.Values {
		return workflow.Values{"exchangeCode": s.ExchangeCode, "symbol": s.Symbol}
	},
	Fields: func(s models.Stock) workflow.Values {
		return workflow.Values{"name": s.Name, "isin": s.ISIN, "lotSize": s.LotSize, "sector": s.Sector}
	},
	Decode: func(keys, fields workflow.Values) models.Stock {
		return models.Stock{
			ExchangeCode: str(keys, "exchangeCode"),
			Symbol:       str(keys, "symbol"),
			Name:         str(fields, "name"),
			ISIN:         str(fields, "isin"),
			LotSize:      i64(fields, "lotSize"),
			Sector:       str(fields, "sector"),
		}
	},
}

var TraderEntity = &workflow.Entity{
	Name:  "traders",
	Table: "traders",
	Keys:  []workflow.Field{{Name: "traderCode", Column: "trader_code"}},
	Fields: []workflow.Field{
		{Name: "brokerCode", Column: "broker_code"},
		{Name: "name", Column: "name"},
		{Name: "email", Column: "email"},
	},
	DefaultSort: "traderCode",
}

var TraderCodec = Codec[models.Trader]{
	Keys: func(t models.Trader) workflow.Values {
		return workflow.Values{"traderCode": t.TraderCode}
	},
	Fields: func(t models.Trader) workflow.Values {
		return workflow.Values{"brokerCode": t.BrokerCode, "name": t.Name, "email": t.Email}
	},
	Decode: func(keys, fields workflow.Values) models.Trader {
		return models.Trader{
			TraderCode: str(keys, "traderCode"),
			BrokerCode: str(fields, "brokerCode"),
			Name:       str(fields, "name"),
			Email:      str(fields, "email"),
		}
	},
}

var UserEntity = &workflow.Entity{
	Name:  "users",
	Table: "users",
	Keys:  []workflow.Field{{Name: "userId", Column: "user_id"}},
	Fields: []workflow.Field{
		{Name: "userName", Column: "user_name"},
		{Name: "email", Column: "email"},
		{Name: "role", Column: "role"},
	},
	DefaultSort: "userId",
}

var UserCodec = Codec[models.User]{
	Keys: func(u models.User) workflow.Values {
		return workflow.Values{"userId": u.UserID}
	},
	Fields: func(u models.User) workflow.Values {
		return workflow.Values{"userName": u.UserName, "email": u.Email, "role": u.Role}
	},
	Decode: func(keys, fields workflow.Values) models.User {
		return models.User{
			UserID:   str(keys, "userId"),
			UserName: str(fields, "userName"),
			Email:    str(fields, "email"),
			Role:     str(fields, "role"),
		}
	},
}

var OrderGroupEntity = &workflow.Entity{
	Name:  "order-groups",
	Table: "order_groups",
	Keys:  []workflow.Field{{Name: "groupCode", Column: "group_code"}},
	Fields: []workflow.Field{
		{Name: "name", Column: "name"},
		{Name: "description", Column: "description"},
	},
	DefaultSort: "groupCode",
}

var OrderGroupCodec = Codec[models.OrderGroup]{
	Keys: func(g models.OrderGroup) workflow.Values {
		return workflow.Values{"groupCode": g.GroupCode}
	},
	Fields: func(g models.OrderGroup) workflow.Values {
		return workflow.Values{"name": g.Name, "description": g.Description}
	},
	Decode: func(keys, fields workflow.Values) models.OrderGroup {
		return models.OrderGroup{
			GroupCode:   str(keys, "groupCode"),
			Name:        str(fields, "name"),
			Description: str(fields, "description"),
		}
	},
}
