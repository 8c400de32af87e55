package alice

import (
	"context"
	"errors"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/common"
	mcrypto "github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/jude"
	"github.com/jude-swap/swap/net/message"
)

// fakeBTCWallet is a minimal bitcoin.Wallet test double: callers preload the
// statuses/transactions a scenario needs and the fake reports them back
// without touching any real chain.
type fakeBTCWallet struct {
	mu       sync.Mutex
	params   *chaincfg.Params
	statuses map[chainhash.Hash]bitcoin.TxStatus
	txs      map[chainhash.Hash]*wire.MsgTx

	watchResult bool
	watchErr    error
	broadcastID chainhash.Hash
	broadcastErr error
}

func newFakeBTCWallet() *fakeBTCWallet {
	return &fakeBTCWallet{
		params:   &chaincfg.RegressionNetParams,
		statuses: make(map[chainhash.Hash]bitcoin.TxStatus),
		txs:      make(map[chainhash.Hash]*wire.MsgTx),
	}
}

func (f *fakeBTCWallet) GetNetwork() *chaincfg.Params { return f.params }

func (f *fakeBTCWallet) Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	if f.broadcastErr != nil {
		return chainhash.Hash{}, f.broadcastErr
	}
	txid := tx.TxHash()
	f.mu.Lock()
	f.txs[txid] = tx
	f.mu.Unlock()
	return txid, nil
}

func (f *fakeBTCWallet) WatchForTx(ctx context.Context, txid chainhash.Hash, minConf uint32) (bool, error) {
	return f.watchResult, f.watchErr
}

func (f *fakeBTCWallet) GetTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[txid]
	if !ok {
		return nil, bitcoin.ErrTxNotFound
	}
	return tx, nil
}

func (f *fakeBTCWallet) SignAndFinalize(ctx context.Context, tx *wire.MsgTx, prevScripts [][]byte, prevValues []int64) error {
	return nil
}

func (f *fakeBTCWallet) EstimateFee(ctx context.Context, targetBlocks uint32) (common.BtcAmount, error) {
	return common.BtcAmount(1000), nil
}

func (f *fakeBTCWallet) NewAddress(ctx context.Context) (string, error) {
	return "", errors.New("fakeBTCWallet: NewAddress not implemented")
}

func (f *fakeBTCWallet) Balance(ctx context.Context) (common.BtcAmount, error) {
	return 0, nil
}

func (f *fakeBTCWallet) Withdraw(ctx context.Context, addr string, amount common.BtcAmount, all bool) (chainhash.Hash, error) {
	return chainhash.Hash{}, errors.New("fakeBTCWallet: Withdraw not implemented")
}

func (f *fakeBTCWallet) Status(ctx context.Context, txid chainhash.Hash) (bitcoin.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[txid]
	if !ok {
		return bitcoin.TxStatus{Absent: true}, nil
	}
	return status, nil
}

func (f *fakeBTCWallet) FundLockTx(ctx context.Context, p bitcoin.LockParams) (*wire.MsgTx, error) {
	tx, _, err := bitcoin.BuildLockTx(p)
	return tx, err
}

// fakeJudeWallet is a minimal jude.Wallet test double.
type fakeJudeWallet struct {
	height           uint64
	refreshedAt      uint64
	transferErr      error
	openErr          error
	sweepErr         error
	findTransferErr  error
	existingTransfer *jude.TransferProof
}

func (f *fakeJudeWallet) CreateWallet(ctx context.Context, name, language string) error {
	return nil
}

func (f *fakeJudeWallet) OpenOrCreateFromKeys(ctx context.Context, name string, kp *mcrypto.PrivateKeyPair, restoreHeight uint64) error {
	return f.openErr
}

func (f *fakeJudeWallet) Transfer(ctx context.Context, dest mcrypto.Address, amount common.JudeAmount) (*jude.TransferProof, error) {
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return &jude.TransferProof{TxHash: "deadbeef", TxKey: "cafe", Amount: amount}, nil
}

func (f *fakeJudeWallet) FindTransfer(ctx context.Context, dest mcrypto.Address, sinceHeight uint64) (*jude.TransferProof, error) {
	if f.findTransferErr != nil {
		return nil, f.findTransferErr
	}
	return f.existingTransfer, nil
}

func (f *fakeJudeWallet) GetBalance(ctx context.Context, accountIdx uint64) (common.JudeAmount, common.JudeAmount, error) {
	return 0, 0, nil
}

func (f *fakeJudeWallet) GetHeight(ctx context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeJudeWallet) Refresh(ctx context.Context) (*jude.Refreshed, error) {
	return &jude.Refreshed{Height: f.refreshedAt}, nil
}

func (f *fakeJudeWallet) GetAddress(ctx context.Context, accountIdx uint64) (mcrypto.Address, error) {
	return "", nil
}

func (f *fakeJudeWallet) SweepAll(ctx context.Context, dest mcrypto.Address) (*jude.TransferProof, error) {
	if f.sweepErr != nil {
		return nil, f.sweepErr
	}
	return &jude.TransferProof{TxHash: "swept"}, nil
}

// fakeEventLoop is a minimal net.EventLoopHandle test double.
type fakeEventLoop struct {
	sendErr error
	inbox   chan message.Message
}

func newFakeEventLoop() *fakeEventLoop {
	return &fakeEventLoop{inbox: make(chan message.Message, 4)}
}

func (f *fakeEventLoop) SendSwapMessage(msg message.Message) error {
	return f.sendErr
}

func (f *fakeEventLoop) Recv(ctx context.Context) (message.Message, error) {
	select {
	case msg := <-f.inbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeEventLoop) Close() error { return nil }
