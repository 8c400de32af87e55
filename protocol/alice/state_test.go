package alice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jude-swap/swap/jude"
)

func TestBtcLocked_Transition_SubmitsAndPrewritesRestoreHeight(t *testing.T) {
	deps, _, jw := newTestDeps(t)
	jw.height = 42

	s3 := newTestState3(t)
	state := &BtcLocked{State3: s3}

	next, err := state.Transition(context.Background(), deps)
	require.NoError(t, err)

	sent, ok := next.(*XmrLockTransactionSent)
	require.True(t, ok)
	require.Equal(t, uint64(42), sent.RestoreHeight)
	require.Equal(t, "deadbeef", sent.TransferProof.TxHash)

	record, err := deps.DB.GetSwap(deps.Info.ID())
	require.NoError(t, err)
	require.Equal(t, "BtcLocked", record.StateName)
}

func TestBtcLocked_Transition_ResumeReusesExistingTransfer(t *testing.T) {
	deps, _, jw := newTestDeps(t)
	jw.existingTransfer = &jude.TransferProof{TxHash: "already-sent", TxKey: "key", Amount: 7}

	s3 := newTestState3(t)
	state := &BtcLocked{State3: s3, RestoreHeight: 100, Submitting: true}

	next, err := state.Transition(context.Background(), deps)
	require.NoError(t, err)

	sent, ok := next.(*XmrLockTransactionSent)
	require.True(t, ok)
	require.Equal(t, uint64(100), sent.RestoreHeight)
	require.Equal(t, "already-sent", sent.TransferProof.TxHash)
}

func TestBtcLocked_Transition_ResumeSubmitsIfNoExistingTransferFound(t *testing.T) {
	deps, _, jw := newTestDeps(t)
	jw.existingTransfer = nil

	s3 := newTestState3(t)
	state := &BtcLocked{State3: s3, RestoreHeight: 100, Submitting: true}

	next, err := state.Transition(context.Background(), deps)
	require.NoError(t, err)

	sent, ok := next.(*XmrLockTransactionSent)
	require.True(t, ok)
	require.Equal(t, uint64(100), sent.RestoreHeight)
	require.Equal(t, "deadbeef", sent.TransferProof.TxHash)
}
