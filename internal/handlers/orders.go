package handlers

import (
	"context"

	"github.com/changewld/backend/internal/entities"
	"github.com/changewld/backend/internal/usecases"
)

type OrderService interface {
	CreateOrder(ctx context.Context, input usecases.CreateOrderInput) (entities.Order, error)
	GetOrder(ctx context.Context, id int) (entities.Order, error)
	ListOrders(ctx context.Context) ([]entities.Order, error)
	ListOrdersByWallet(ctx context.Context, wallet string) ([]entities.Order, error)
	UpdateEstado(ctx context.Context, id int, estado entities.Estado) (entities.Order, error)
	Stats(ctx context.Context) (entities.OrderStats, error)
}
