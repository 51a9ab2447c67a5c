package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"
)

func TestNewOrderInitializesLifecycle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	order := NewOrder(Order{Nombre: "Ana", MontoWLD: 10, MontoCOP: 38000}, now)

	require.Equal(t, EstadoPendiente, order.Estado)
	require.Nil(t, order.TxHash)
	require.Equal(t, now, order.CreadaEn)
	require.Equal(t, now, order.ActualizadaEn)
	require.Len(t, order.StatusHistory, 1)
	require.Equal(t, EstadoPendiente, order.StatusHistory[0].To)
}

func TestApplyTransitionAppendsHistory(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := NewOrder(Order{}, created)

	later := created.Add(time.Minute)
	ApplyTransition(&order, EstadoEnviada, nil, later)

	require.Equal(t, EstadoEnviada, order.Estado)
	require.Equal(t, later, order.ActualizadaEn)
	require.Len(t, order.StatusHistory, 2)
	require.Equal(t, order.Estado, order.StatusHistory[len(order.StatusHistory)-1].To)
	require.Nil(t, order.TxHash, "enviada without a hash should not attach one")
}

func TestApplyTransitionSynthesizesHashOnPagada(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := NewOrder(Order{}, created)

	paidAt := created.Add(2 * time.Minute)
	ApplyTransition(&order, EstadoPagada, nil, paidAt)

	require.NotNil(t, order.TxHash)
	require.Equal(t, ConfirmedTxHash(paidAt), *order.TxHash)
}

func TestApplyTransitionKeepsExistingHash(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := NewOrder(Order{}, created)

	ApplyTransition(&order, EstadoEnviada, pointy.String("0xdeadbeef"), created.Add(time.Minute))
	require.Equal(t, "0xdeadbeef", *order.TxHash)

	ApplyTransition(&order, EstadoPagada, nil, created.Add(2*time.Minute))
	require.Equal(t, "0xdeadbeef", *order.TxHash, "pagada must not overwrite an attached hash")
	require.Len(t, order.StatusHistory, 3)
}

func TestValidEstado(t *testing.T) {
	for _, e := range Estados {
		require.True(t, ValidEstado(e))
	}
	require.False(t, ValidEstado("pagado"))
	require.False(t, ValidEstado(""))
}

func TestIsTerminal(t *testing.T) {
	require.True(t, EstadoPagada.IsTerminal())
	require.True(t, EstadoRechazada.IsTerminal())
	require.False(t, EstadoPendiente.IsTerminal())
	require.False(t, EstadoEnviada.IsTerminal())
	require.False(t, EstadoRecibidaWLD.IsTerminal())
}
