package repositories

import (
	"riskadmin/internal/domain/models"
	"riskadmin/internal/workflow"
)

// Set bundles a repository per catalog entity.
type Set struct {
	Clients        *Repository[models.Client]
	Brokers        *Repository[models.Broker]
	Exchanges      *Repository[models.Exchange]
	Stocks         *Repository[models.Stock]
	Traders        *Repository[models.Trader]
	Users          *Repository[models.User]
	ExposureLimits *Repository[models.ExposureLimit]
	OrderGroups    *Repository[models.OrderGroup]
}

func NewSet(m *workflow.Machine) *Set {
	return &Set{
		Clients:        &Repository[models.Client]{Entity: ClientEntity, Codec: ClientCodec, Machine: m},
		Brokers:        &Repository[models.Broker]{Entity: BrokerEntity, Codec: BrokerCodec, Machine: m},
		Exchanges:      &Repository[models.Exchange]{Entity: ExchangeEntity, Codec: ExchangeCodec, Machine: m},
		Stocks:         &Repository[models.Stock]{Entity: StockEntity, Codec: StockCodec, Machine: m},
		Traders:        &Repository[models.Trader]{Entity: TraderEntity, Codec: TraderCodec, Machine: m},
		Users:          &Repository[models.User]{Entity: UserEntity, Codec: UserCodec, Machine: m},
		ExposureLimits: &Repository[models.ExposureLimit]{Entity: ExposureLimitEntity, Codec: ExposureLimitCodec, Machine: m},
		OrderGroups:    &Repository[models.OrderGroup]{Entity: OrderGroupEntity, Codec: OrderGroupCodec, Machine: m},
	}
}
