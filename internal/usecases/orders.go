package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/changewld/backend/internal/entities"
)

// OrdersRepository is the durable order store. Implementations must serialize
// mutations so that concurrent creates and status updates never lose writes.
type OrdersRepository interface {
	InsertOrder(ctx context.Context, order entities.Order) (entities.Order, error)
	FindOrder(ctx context.Context, id int) (entities.Order, error)
	FindAllOrders(ctx context.Context) ([]entities.Order, error)
	FindOrdersByWallet(ctx context.Context, wallet string) ([]entities.Order, error)
	UpdateOrderStatus(ctx context.Context, id int, estado entities.Estado, txHash *string) (entities.Order, error)
	OrderStats(ctx context.Context) (entities.OrderStats, error)
}

// CreateOrderInput carries the user-supplied fields of a creation request.
// The boundary has already rejected empty required fields; amounts must be
// positive.
type CreateOrderInput struct {
	Nombre   string
	Correo   string
	Banco    string
	Titular  string
	Numero   string
	MontoWLD float64
	MontoCOP float64
	Wallet   string
}

// OrderService owns the order lifecycle: creation, operator-driven state
// transitions and transition notifications. All mutation goes through the
// repository, which provides the serialization guarantee.
type OrderService struct {
	logger *slog.Logger
	repo   OrdersRepository

	walletDestino string
	testMode      bool

	subMu       sync.Mutex
	subscribers map[int]chan entities.OrderEvent
	nextSubID   int
}

func NewOrderService(logger *slog.Logger, repo OrdersRepository, walletDestino string, testMode bool) *OrderService {
	return &OrderService{
		logger:        logger,
		repo:          repo,
		walletDestino: walletDestino,
		testMode:      testMode,
		subscribers:   make(map[int]chan entities.OrderEvent),
	}
}

// CreateOrder persists a new order in estado pendiente. In test mode the
// order is immediately advanced to enviada with a simulated transfer
// reference, mirroring a submitted on-chain transaction.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (entities.Order, error) {
	now := time.Now().UTC()
	order := entities.NewOrder(entities.Order{
		Nombre:        strings.TrimSpace(input.Nombre),
		Correo:        strings.TrimSpace(input.Correo),
		Banco:         strings.TrimSpace(input.Banco),
		Titular:       strings.TrimSpace(input.Titular),
		Numero:        strings.TrimSpace(input.Numero),
		MontoWLD:      input.MontoWLD,
		MontoCOP:      input.MontoCOP,
		Wallet:        strings.TrimSpace(input.Wallet),
		WalletDestino: s.walletDestino,
	}, now)

	created, err := s.repo.InsertOrder(ctx, order)
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	if s.testMode {
		simulated := entities.SimulatedTxHash(time.Now().UTC())
		advanced, advErr := s.repo.UpdateOrderStatus(ctx, created.ID, entities.EstadoEnviada, &simulated)
		if advErr != nil {
			// The order itself is durable; keep it pendiente.
			s.logger.Error("Test-mode auto transition failed", "order_id", created.ID, "error", advErr)
		} else {
			created = advanced
		}
	}

	s.logger.Info("Order created",
		"order_id", created.ID,
		"estado", created.Estado,
		"monto_wld", created.MontoWLD,
		"monto_cop", created.MontoCOP)

	s.publish(entities.OrderEvent{Type: entities.OrderCreated, Order: created})
	return created, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int) (entities.Order, error) {
	return s.repo.FindOrder(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]entities.Order, error) {
	return s.repo.FindAllOrders(ctx)
}

func (s *OrderService) ListOrdersByWallet(ctx context.Context, wallet string) ([]entities.Order, error) {
	return s.repo.FindOrdersByWallet(ctx, wallet)
}

func (s *OrderService) Stats(ctx context.Context) (entities.OrderStats, error) {
	return s.repo.OrderStats(ctx)
}

// UpdateEstado advances the order to the requested state. Any state in the
// fixed set is accepted regardless of the current one: operators use backward
// jumps to correct mistakes.
func (s *OrderService) UpdateEstado(ctx context.Context, id int, estado entities.Estado) (entities.Order, error) {
	if !entities.ValidEstado(estado) {
		return entities.Order{}, fmt.Errorf("%w: %q", ErrInvalidEstado, estado)
	}

	order, err := s.repo.UpdateOrderStatus(ctx, id, estado, nil)
	if err != nil {
		return entities.Order{}, err
	}

	s.logger.Info("Order state updated", "order_id", id, "estado", estado)
	s.publish(entities.OrderEvent{Type: entities.OrderEstado, Order: order})
	return order, nil
}

// Subscribe registers a listener for order events. The returned cancel
// function must be called when the listener goes away. Events are delivered
// best-effort: a subscriber that stops draining its channel loses events
// instead of blocking order mutation.
func (s *OrderService) Subscribe() (<-chan entities.OrderEvent, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan entities.OrderEvent, 16)
	s.subscribers[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *OrderService) publish(event entities.OrderEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
