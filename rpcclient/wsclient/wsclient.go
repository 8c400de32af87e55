// Package wsclient implements the streaming half of swapcli's transport: a
// persistent websocket connection used to subscribe to a single swap's
// status updates. Directly adapted from
// noot-atomic-swap/rpcclient/wsclient/wsclient.go's wsClient struct
// (wmu/rmu mutex-guarded conn, writeJSON/read helpers,
// SubscribeSwapStatus's background fan-out goroutine), with the
// offer/discover/take-offer methods dropped (this protocol has no
// order-book to subscribe through) and the subscribed payload swapped for
// this protocol's common.Status.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/common/rpctypes"
)

var log = logging.Logger("rpcclient")

// WsClient subscribes to a single swapd instance's websocket status feed.
type WsClient interface {
	Close()
	SubscribeSwapStatus(swapID string) (<-chan common.Status, error)
}

type wsClient struct {
	wmu  sync.Mutex
	rmu  sync.Mutex
	conn *websocket.Conn
}

// NewWsClient dials endpoint (e.g. "ws://127.0.0.1:5000/ws").
func NewWsClient(ctx context.Context, endpoint string) (WsClient, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("wsclient: failed to dial endpoint: %w", err)
	}
	if err = resp.Body.Close(); err != nil {
		return nil, err
	}

	return &wsClient{conn: conn}, nil
}

func (c *wsClient) Close() {
	_ = c.conn.Close()
}

func (c *wsClient) writeJSON(msg *rpctypes.Request) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) read() ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return message, nil
}

// SubscribeSwapStatus returns a channel written to every time swapID's
// status changes, closed once the swap reaches a terminal status or the
// connection errors out.
func (c *wsClient) SubscribeSwapStatus(swapID string) (<-chan common.Status, error) {
	params := &rpctypes.SubscribeSwapStatusRequest{ID: swapID}

	bz, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req := &rpctypes.Request{
		JSONRPC: rpctypes.DefaultJSONRPCVersion,
		Method:  "swap_subscribeStatus",
		Params:  bz,
		ID:      0,
	}

	if err := c.writeJSON(req); err != nil {
		return nil, err
	}

	respCh := make(chan common.Status)

	go func() {
		defer close(respCh)

		for {
			message, err := c.read()
			if err != nil {
				log.Warnf("failed to read websocket message: %s", err)
				return
			}

			var resp rpctypes.Response
			if err := json.Unmarshal(message, &resp); err != nil {
				log.Warnf("failed to unmarshal response: %s", err)
				return
			}
			if resp.Error != nil {
				log.Warnf("swapd returned error: %s", resp.Error.Message)
				return
			}

			var status rpctypes.SubscribeSwapStatusResponse
			if err := json.Unmarshal(resp.Result, &status); err != nil {
				log.Warnf("failed to unmarshal swap status: %s", err)
				return
			}

			s := statusFromString(status.Status)
			respCh <- s
			if isTerminalStatus(s) {
				return
			}
		}
	}()

	return respCh, nil
}

func statusFromString(s string) common.Status {
	switch s {
	case common.Success.String():
		return common.Success
	case common.Refunded.String():
		return common.Refunded
	case common.Aborted.String():
		return common.Aborted
	case common.Punished.String():
		return common.Punished
	default:
		return common.Ongoing
	}
}

func isTerminalStatus(s common.Status) bool {
	return s != common.Ongoing
}
