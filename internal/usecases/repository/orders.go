package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/changewld/backend/internal/entities"
	"github.com/changewld/backend/pkg/database"
)

const orderColumns = "id, nombre, correo, banco, titular, numero, monto_wld, monto_cop, wallet, wallet_destino, estado, tx_hash, creada_en, actualizada_en"

// OrdersRepository is the Postgres-backed order store. Mutations run inside
// transactions with row locks, which gives the same no-lost-updates guarantee
// the file store gets from its mutex.
type OrdersRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
	builder    sq.StatementBuilderType
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
		builder:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *OrdersRepository) InsertOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		row := r.db(ctx).QueryRow(ctx,
			`INSERT INTO orders (nombre, correo, banco, titular, numero, monto_wld, monto_cop, wallet, wallet_destino, estado, tx_hash, creada_en, actualizada_en)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING id`,
			order.Nombre, order.Correo, order.Banco, order.Titular, order.Numero,
			order.MontoWLD, order.MontoCOP, order.Wallet, order.WalletDestino,
			string(order.Estado), order.TxHash, order.CreadaEn, order.ActualizadaEn)
		if err := row.Scan(&order.ID); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return r.appendHistory(ctx, order.ID, order.StatusHistory[0])
	})
	if err != nil {
		return entities.Order{}, err
	}
	return order, nil
}

func (r *OrdersRepository) FindOrder(ctx context.Context, id int) (entities.Order, error) {
	order, err := r.scanOrder(ctx, id, false)
	if err != nil {
		return entities.Order{}, err
	}

	order.StatusHistory, err = r.findHistory(ctx, id)
	if err != nil {
		return entities.Order{}, err
	}
	return order, nil
}

func (r *OrdersRepository) FindAllOrders(ctx context.Context) ([]entities.Order, error) {
	return r.findOrders(ctx, sq.Eq{})
}

func (r *OrdersRepository) FindOrdersByWallet(ctx context.Context, wallet string) ([]entities.Order, error) {
	// Addresses arrive in mixed EIP-55 or lowercase form.
	return r.findOrders(ctx, sq.Eq{"LOWER(wallet)": strings.ToLower(wallet)})
}

// UpdateOrderStatus locks the order row, applies the transition and appends
// the history entry within a single transaction.
func (r *OrdersRepository) UpdateOrderStatus(ctx context.Context, id int, estado entities.Estado, txHash *string) (entities.Order, error) {
	var order entities.Order

	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = r.scanOrder(ctx, id, true)
		if err != nil {
			return err
		}
		order.StatusHistory, err = r.findHistory(ctx, id)
		if err != nil {
			return err
		}

		entities.ApplyTransition(&order, estado, txHash, time.Now().UTC())

		_, err = r.db(ctx).Exec(ctx,
			"UPDATE orders SET estado = $1, tx_hash = $2, actualizada_en = $3 WHERE id = $4",
			string(order.Estado), order.TxHash, order.ActualizadaEn, id)
		if err != nil {
			return fmt.Errorf("failed to update order %d: %w", id, err)
		}
		return r.appendHistory(ctx, id, order.StatusHistory[len(order.StatusHistory)-1])
	})
	if err != nil {
		return entities.Order{}, err
	}
	return order, nil
}

func (r *OrdersRepository) OrderStats(ctx context.Context) (entities.OrderStats, error) {
	query, args, err := r.builder.
		Select("estado", "COUNT(*)", "COALESCE(SUM(monto_wld), 0)", "COALESCE(SUM(monto_cop), 0)").
		From("orders").
		GroupBy("estado").
		ToSql()
	if err != nil {
		return entities.OrderStats{}, err
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return entities.OrderStats{}, fmt.Errorf("failed to query order stats: %w", err)
	}
	defer rows.Close()

	stats := entities.OrderStats{PorEstado: make(map[entities.Estado]int, len(entities.Estados))}
	for _, e := range entities.Estados {
		stats.PorEstado[e] = 0
	}
	for rows.Next() {
		var (
			estado   string
			count    int
			wld, cop float64
		)
		if err = rows.Scan(&estado, &count, &wld, &cop); err != nil {
			return entities.OrderStats{}, fmt.Errorf("failed to scan order stats: %w", err)
		}
		stats.Total += count
		stats.PorEstado[entities.Estado(estado)] = count
		stats.TotalWLD += wld
		stats.TotalCOP += cop
	}
	return stats, rows.Err()
}

func (r *OrdersRepository) findOrders(ctx context.Context, where sq.Eq) ([]entities.Order, error) {
	builder := r.builder.Select(orderColumns).From("orders").OrderBy("id DESC")
	if len(where) > 0 {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	byID := make(map[int]int)
	var orders []entities.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		byID[order.ID] = len(orders)
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []entities.Order{}, nil
	}

	// One pass over the history table instead of a query per order.
	historyRows, err := r.db(ctx).Query(ctx,
		"SELECT order_id, at, to_estado FROM order_status_history ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer historyRows.Close()

	for historyRows.Next() {
		var (
			orderID int
			change  entities.StatusChange
		)
		if err = historyRows.Scan(&orderID, &change.At, &change.To); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if idx, ok := byID[orderID]; ok {
			orders[idx].StatusHistory = append(orders[idx].StatusHistory, change)
		}
	}
	return orders, historyRows.Err()
}

func (r *OrdersRepository) scanOrder(ctx context.Context, id int, forUpdate bool) (entities.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	order, err := scanOrderRow(r.db(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to query order %d: %w", id, err)
	}
	return order, nil
}

func (r *OrdersRepository) findHistory(ctx context.Context, id int) ([]entities.StatusChange, error) {
	rows, err := r.db(ctx).Query(ctx,
		"SELECT at, to_estado FROM order_status_history WHERE order_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history for order %d: %w", id, err)
	}
	defer rows.Close()

	var history []entities.StatusChange
	for rows.Next() {
		var change entities.StatusChange
		if err = rows.Scan(&change.At, &change.To); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, change)
	}
	return history, rows.Err()
}

func (r *OrdersRepository) appendHistory(ctx context.Context, id int, change entities.StatusChange) error {
	_, err := r.db(ctx).Exec(ctx,
		"INSERT INTO order_status_history (order_id, at, to_estado) VALUES ($1, $2, $3)",
		id, change.At, change.To)
	if err != nil {
		return fmt.Errorf("failed to append status history for order %d: %w", id, err)
	}
	return nil
}

func scanOrderRow(row pgx.Row) (entities.Order, error) {
	var (
		order  entities.Order
		estado string
	)
	err := row.Scan(&order.ID, &order.Nombre, &order.Correo, &order.Banco, &order.Titular,
		&order.Numero, &order.MontoWLD, &order.MontoCOP, &order.Wallet, &order.WalletDestino,
		&estado, &order.TxHash, &order.CreadaEn, &order.ActualizadaEn)
	if err != nil {
		return entities.Order{}, err
	}
	order.Estado = entities.Estado(estado)
	return order, nil
}
