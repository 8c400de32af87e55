package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jude-swap/swap/protocol"
)

func TestMemoryDBPutGetSwap(t *testing.T) {
	m := NewMemoryDB()

	record, err := protocol.Encode("swap-1", protocol.RoleAlice, "Started", map[string]string{"foo": "bar"})
	require.NoError(t, err)

	require.NoError(t, m.PutSwap(record))

	got, err := m.GetSwap("swap-1")
	require.NoError(t, err)
	require.Equal(t, "Started", got.StateName)

	all, err := m.GetAllSwaps()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestMemoryDBGetSwapNotFound(t *testing.T) {
	m := NewMemoryDB()
	_, err := m.GetSwap("nonexistent")
	require.ErrorIs(t, err, ErrSwapNotFound)
}

func TestMemoryDBPeerID(t *testing.T) {
	m := NewMemoryDB()
	require.NoError(t, m.PutPeerID("swap-1", "12D3KooWtest"))

	id, err := m.GetPeerID("swap-1")
	require.NoError(t, err)
	require.Equal(t, "12D3KooWtest", id)
}

func TestMemoryDBDeleteSwap(t *testing.T) {
	m := NewMemoryDB()
	record, err := protocol.Encode("swap-1", protocol.RoleBob, "BtcLocked", map[string]string{})
	require.NoError(t, err)
	require.NoError(t, m.PutSwap(record))

	require.NoError(t, m.DeleteSwap("swap-1"))
	_, err = m.GetSwap("swap-1")
	require.ErrorIs(t, err, ErrSwapNotFound)
}
