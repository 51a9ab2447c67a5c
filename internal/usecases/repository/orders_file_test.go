package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"

	"github.com/changewld/backend/internal/entities"
)

func newTestFileRepo(t *testing.T) *FileOrdersRepository {
	t.Helper()
	repo, err := NewFileOrdersRepository(slog.Default(), filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)
	return repo
}

func testOrder(nombre string) entities.Order {
	return entities.NewOrder(entities.Order{
		Nombre:   nombre,
		Correo:   "ana@example.com",
		Banco:    "Nequi",
		Titular:  "Ana",
		Numero:   "3001234567",
		MontoWLD: 10,
		MontoCOP: 38000,
	}, time.Now().UTC())
}

func TestInsertOrderAssignsMonotonicIDs(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	var lastID int
	for i := 0; i < 5; i++ {
		order, err := repo.InsertOrder(ctx, testOrder(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
		require.Greater(t, order.ID, lastID)
		lastID = order.ID
	}
}

func TestConcurrentInsertsLoseNothing(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	const n = 50
	ids := make(chan int, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := repo.InsertOrder(ctx, testOrder(fmt.Sprintf("user-%d", i)))
			require.NoError(t, err)
			ids <- order.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool, n)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, n)

	orders, err := repo.FindAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, n)
}

func TestFindOrderNotFound(t *testing.T) {
	repo := newTestFileRepo(t)

	_, err := repo.FindOrder(context.Background(), 42)
	require.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestUpdateStatusUnknownIDLeavesStoreUntouched(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	created, err := repo.InsertOrder(ctx, testOrder("Ana"))
	require.NoError(t, err)

	_, err = repo.UpdateOrderStatus(ctx, created.ID+1, entities.EstadoPagada, nil)
	require.ErrorIs(t, err, entities.ErrOrderNotFound)

	unchanged, err := repo.FindOrder(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, entities.EstadoPendiente, unchanged.Estado)
	require.Len(t, unchanged.StatusHistory, 1)
}

func TestUpdateStatusAppendsHistoryInAcceptanceOrder(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	created, err := repo.InsertOrder(ctx, testOrder("Ana"))
	require.NoError(t, err)

	sequence := []entities.Estado{entities.EstadoEnviada, entities.EstadoRecibidaWLD, entities.EstadoPagada}
	for _, estado := range sequence {
		order, err := repo.UpdateOrderStatus(ctx, created.ID, estado, nil)
		require.NoError(t, err)
		require.Equal(t, estado, order.Estado)
		require.Equal(t, estado, order.StatusHistory[len(order.StatusHistory)-1].To)
	}

	final, err := repo.FindOrder(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, final.StatusHistory, len(sequence)+1)
	require.NotNil(t, final.TxHash)
}

func TestUpdateStatusAttachesSuppliedHashOnce(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	created, err := repo.InsertOrder(ctx, testOrder("Ana"))
	require.NoError(t, err)

	order, err := repo.UpdateOrderStatus(ctx, created.ID, entities.EstadoEnviada, pointy.String("0xabc123"))
	require.NoError(t, err)
	require.Equal(t, "0xabc123", *order.TxHash)

	order, err = repo.UpdateOrderStatus(ctx, created.ID, entities.EstadoPagada, nil)
	require.NoError(t, err)
	require.Equal(t, "0xabc123", *order.TxHash)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")
	ctx := context.Background()

	repo, err := NewFileOrdersRepository(slog.Default(), path)
	require.NoError(t, err)

	created, err := repo.InsertOrder(ctx, testOrder("Ana"))
	require.NoError(t, err)
	_, err = repo.UpdateOrderStatus(ctx, created.ID, entities.EstadoEnviada, nil)
	require.NoError(t, err)

	reopened, err := NewFileOrdersRepository(slog.Default(), path)
	require.NoError(t, err)

	order, err := reopened.FindOrder(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, entities.EstadoEnviada, order.Estado)
	require.Len(t, order.StatusHistory, 2)

	// New ids continue after the persisted counter.
	next, err := reopened.InsertOrder(ctx, testOrder("Luis"))
	require.NoError(t, err)
	require.Equal(t, created.ID+1, next.ID)
}

func TestCorruptFileResetsToEmptyStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	repo, err := NewFileOrdersRepository(slog.Default(), path)
	require.NoError(t, err)

	orders, err := repo.FindAllOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)

	// Ids restart from 1 on a reset store.
	order, err := repo.InsertOrder(context.Background(), testOrder("Ana"))
	require.NoError(t, err)
	require.Equal(t, 1, order.ID)
}

func TestOrdersListedNewestFirst(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	first, err := repo.InsertOrder(ctx, testOrder("Ana"))
	require.NoError(t, err)
	second, err := repo.InsertOrder(ctx, testOrder("Luis"))
	require.NoError(t, err)

	orders, err := repo.FindAllOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, orders[0].ID)
	require.Equal(t, first.ID, orders[1].ID)
}

func TestOrderStats(t *testing.T) {
	repo := newTestFileRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.InsertOrder(ctx, testOrder(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
	}
	_, err := repo.UpdateOrderStatus(ctx, 1, entities.EstadoPagada, nil)
	require.NoError(t, err)

	stats, err := repo.OrderStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.PorEstado[entities.EstadoPendiente])
	require.Equal(t, 1, stats.PorEstado[entities.EstadoPagada])
	require.InDelta(t, 30, stats.TotalWLD, 1e-9)
	require.InDelta(t, 114000, stats.TotalCOP, 1e-9)
}
