package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/changewld/backend/internal/entities"
)

// storeDocument mirrors the on-disk layout: {"orders": [...], "lastId": n}.
// Orders are kept newest-first.
type storeDocument struct {
	Orders []entities.Order `json:"orders"`
	LastID int              `json:"lastId"`
}

// FileOrdersRepository persists orders in a single JSON document. Every
// mutation runs under one mutex (single-writer), so concurrent creates and
// status updates can never lose each other's writes, and is flushed with a
// temp-file + rename so a crash mid-write leaves the previous document
// intact.
type FileOrdersRepository struct {
	logger *slog.Logger
	path   string

	mu  sync.Mutex
	doc storeDocument
}

func NewFileOrdersRepository(logger *slog.Logger, path string) (*FileOrdersRepository, error) {
	r := &FileOrdersRepository{logger: logger, path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.doc = storeDocument{Orders: []entities.Order{}}
		if err = r.persistLocked(); err != nil {
			return nil, fmt.Errorf("failed to create orders file: %w", err)
		}
		logger.Info("Created empty orders file", "path", path)
	case err != nil:
		// Unreadable storage degrades to an empty well-formed store
		// rather than refusing to start.
		logger.Error("Orders file unreadable, starting from empty store", "path", path, "error", err)
		r.doc = storeDocument{Orders: []entities.Order{}}
	default:
		var doc storeDocument
		if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil || doc.Orders == nil {
			logger.Error("Orders file corrupt, resetting to empty store", "path", path, "error", jsonErr)
			doc = storeDocument{Orders: []entities.Order{}}
		}
		r.doc = doc
	}

	return r, nil
}

// InsertOrder assigns the next id and prepends the order to the collection.
func (r *FileOrdersRepository) InsertOrder(_ context.Context, order entities.Order) (entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.LastID++
	order.ID = r.doc.LastID
	r.doc.Orders = append([]entities.Order{order}, r.doc.Orders...)

	if err := r.persistLocked(); err != nil {
		return entities.Order{}, fmt.Errorf("failed to persist order %d: %w", order.ID, err)
	}
	return cloneOrder(order), nil
}

func (r *FileOrdersRepository) FindOrder(_ context.Context, id int) (entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.doc.Orders {
		if r.doc.Orders[i].ID == id {
			return cloneOrder(r.doc.Orders[i]), nil
		}
	}
	return entities.Order{}, entities.ErrOrderNotFound
}

func (r *FileOrdersRepository) FindAllOrders(_ context.Context) ([]entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders := make([]entities.Order, 0, len(r.doc.Orders))
	for i := range r.doc.Orders {
		orders = append(orders, cloneOrder(r.doc.Orders[i]))
	}
	return orders, nil
}

func (r *FileOrdersRepository) FindOrdersByWallet(_ context.Context, wallet string) ([]entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orders []entities.Order
	for i := range r.doc.Orders {
		// Addresses arrive in mixed EIP-55 or lowercase form.
		if strings.EqualFold(r.doc.Orders[i].Wallet, wallet) {
			orders = append(orders, cloneOrder(r.doc.Orders[i]))
		}
	}
	return orders, nil
}

// UpdateOrderStatus applies the transition under the store mutex, so the
// history of a single order always reflects the order in which updates were
// accepted. Unknown ids leave the document untouched.
func (r *FileOrdersRepository) UpdateOrderStatus(_ context.Context, id int, estado entities.Estado, txHash *string) (entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.doc.Orders, func(o entities.Order) bool { return o.ID == id })
	if idx == -1 {
		return entities.Order{}, entities.ErrOrderNotFound
	}

	order := cloneOrder(r.doc.Orders[idx])
	entities.ApplyTransition(&order, estado, txHash, time.Now().UTC())
	r.doc.Orders[idx] = order

	if err := r.persistLocked(); err != nil {
		return entities.Order{}, fmt.Errorf("failed to persist order %d: %w", id, err)
	}
	return cloneOrder(order), nil
}

func (r *FileOrdersRepository) OrderStats(_ context.Context) (entities.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := entities.OrderStats{PorEstado: make(map[entities.Estado]int, len(entities.Estados))}
	for _, e := range entities.Estados {
		stats.PorEstado[e] = 0
	}
	for i := range r.doc.Orders {
		o := &r.doc.Orders[i]
		stats.Total++
		stats.PorEstado[o.Estado]++
		stats.TotalWLD += o.MontoWLD
		stats.TotalCOP += o.MontoCOP
	}
	return stats, nil
}

// persistLocked flushes the document. Callers must hold r.mu.
func (r *FileOrdersRepository) persistLocked() error {
	data, err := json.MarshalIndent(r.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".orders-*.json")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

// cloneOrder deep-copies the order so callers never alias the stored
// status_history slice.
func cloneOrder(o entities.Order) entities.Order {
	o.StatusHistory = slices.Clone(o.StatusHistory)
	if o.TxHash != nil {
		h := *o.TxHash
		o.TxHash = &h
	}
	return o
}
