package alice

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/common"
	mcrypto "github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/crypto/secp256k1"
	"github.com/jude-swap/swap/db"
	"github.com/jude-swap/swap/protocol"
	pswap "github.com/jude-swap/swap/protocol/swap"
)

func newTestDeps(t *testing.T) (*Deps, *fakeBTCWallet, *fakeJudeWallet) {
	btc := newFakeBTCWallet()
	jw := &fakeJudeWallet{}
	cfg := common.DefaultRegtest()
	return &Deps{
		BTC:  btc,
		Jude: jw,
		Net:  newFakeEventLoop(),
		DB:   db.NewMemoryDB(),
		Cfg:  &cfg,
		Info: pswap.NewInfo("test-swap", common.ProvidesJude, 1, 1, common.ExchangeRate(1), common.Ongoing),
	}, btc, jw
}

func newTestState3(t *testing.T) *protocol.State3 {
	own, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	counterparty, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	ownJude, err := mcrypto.GenerateSpendKey()
	require.NoError(t, err)
	counterpartyJude, err := mcrypto.GenerateSpendKey()
	require.NoError(t, err)
	view, err := ownJude.View()
	require.NoError(t, err)

	return &protocol.State3{
		SwapID:                  "test-swap",
		OwnSecp256k1Key:         own,
		CounterpartySecp256k1Pub: counterparty.PublicKey(),
		OwnJudeKey:              ownJude,
		CounterpartyJudePub:     counterpartyJude.Public(),
		JointViewKey:            view,
		BtcAmount:               common.BtcToSats(1),
		JudeAmount:              common.JudeToPiconero(1),
		CancelTimelock:          10,
		PunishTimelock:          10,
		Txs: protocol.PrecomputedTxs{
			LockTxID:   chainhash.Hash{1},
			CancelTxID: chainhash.Hash{2},
			RefundTxID: chainhash.Hash{3},
			PunishTxID: chainhash.Hash{4},
			RedeemTxID: chainhash.Hash{5},
		},
	}
}

func TestCancel_TimelockNotExpired(t *testing.T) {
	deps, btcw, _ := newTestDeps(t)
	s3 := newTestState3(t)
	btcw.statuses[s3.Txs.LockTxID] = bitcoin.TxStatus{Confirmed: true, Depth: 2}

	_, err := Cancel(context.Background(), deps, &BtcLocked{State3: s3})
	require.ErrorIs(t, err, ErrCancelTimelockNotExpired)
}

func TestCancel_Terminal(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	s3 := newTestState3(t)

	_, err := Cancel(context.Background(), deps, &BtcRedeemed{State3: s3})
	require.ErrorIs(t, err, ErrSwapNotCancellable)
}

func TestRefund_NoXmrLocked(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	s3 := newTestState3(t)

	for _, st := range []State{&Started{State3: s3}, &BtcLockTransactionSeen{State3: s3}, &BtcLocked{State3: s3}} {
		_, err := Refund(context.Background(), deps, st)
		require.ErrorIs(t, err, ErrNoJudeLocked, "state %s", st.Name())
	}
}

func TestRefund_Terminal(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	s3 := newTestState3(t)

	_, err := Refund(context.Background(), deps, &BtcRedeemed{State3: s3})
	require.ErrorIs(t, err, ErrSwapNotRefundable)
}

func TestRefund_NotPublishedYet(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	s3 := newTestState3(t)

	_, err := Refund(context.Background(), deps, &XmrLocked{State3: s3})
	require.ErrorIs(t, err, ErrRefundTransactionNotPublishedYet)
}
