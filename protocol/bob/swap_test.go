package bob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/protocol"
)

func TestSwap_Run_AbortsOnLockTimeout(t *testing.T) {
	deps, btcw, _ := newTestDeps(t)
	btcw.watchResult = false

	s3 := newTestState3(t)
	swap := NewSwap("test-swap", &SwapSetupCompleted{State3: s3}, deps)

	final, err := swap.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "SafelyAborted", final.Name())
	require.True(t, final.IsTerminal())
	require.Equal(t, common.Aborted, deps.Info.Status())

	record, err := deps.DB.GetSwap("test-swap")
	require.NoError(t, err)
	require.Equal(t, "SafelyAborted", record.StateName)
	require.Equal(t, protocol.RoleBob, record.Role)
}

func TestResume_RoundTrip(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	s3 := newTestState3(t)

	original := &BtcLocked{State3: s3}
	record, err := protocol.Encode("test-swap", protocol.RoleBob, original.Name(), original)
	require.NoError(t, err)

	swap, err := Resume(record, deps)
	require.NoError(t, err)
	require.Equal(t, "BtcLocked", swap.State.Name())

	resumed, ok := swap.State.(*BtcLocked)
	require.True(t, ok)
	require.Equal(t, s3.SwapID, resumed.State3.SwapID)
}

func TestStatusOf(t *testing.T) {
	s3 := newTestState3(t)
	cases := []struct {
		state State
		want  common.Status
	}{
		{&SwapSetupCompleted{State3: s3}, common.Ongoing},
		{&XmrRedeemed{State3: s3}, common.Success},
		{&BtcRefunded{State3: s3}, common.Refunded},
		{&BtcPunished{State3: s3}, common.Punished},
		{&SafelyAborted{}, common.Aborted},
	}
	for _, c := range cases {
		require.Equal(t, c.want, statusOf(c.state), c.state.Name())
	}
}
