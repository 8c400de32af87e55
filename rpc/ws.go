// ws.go implements the websocket half of swapd's RPC surface: a single
// streaming method, swap_subscribeStatus, that pushes a swap's status on
// every change until it reaches a terminal state. Directly adapted from
// noot-atomic-swap/rpc/ws.go's wsServer/subscribeSwapStatus/writeResponse/
// writeError shape, trimmed to this protocol's one subscription (no
// offer/peer-discovery/signer subscriptions, which belonged to the
// teacher's ETH swap and don't apply here).
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/common/rpctypes"
)

const subscribeSwapStatus = "swap_subscribeStatus"

var errInvalidMethod = errors.New("rpc: invalid method for websocket subscription")
var errNoSwapWithID = errors.New("rpc: no swap with given id")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type wsServer struct {
	ctx     context.Context
	backend Backend
}

func newWsServer(ctx context.Context, backend Backend) *wsServer {
	return &wsServer{ctx: ctx, backend: backend}
}

// ServeHTTP upgrades the connection and serves subscription requests until
// the client disconnects.
func (s *wsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("failed to upgrade connection to websocket: %s", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Debugf("websocket connection closed: %s", err)
			return
		}

		var req rpctypes.Request
		if err := json.Unmarshal(message, &req); err != nil {
			_ = writeError(conn, err)
			continue
		}

		if err := s.handleRequest(conn, &req); err != nil {
			_ = writeError(conn, err)
		}
	}
}

func (s *wsServer) handleRequest(conn *websocket.Conn, req *rpctypes.Request) error {
	switch req.Method {
	case subscribeSwapStatus:
		var params rpctypes.SubscribeSwapStatusRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fmt.Errorf("rpc: failed to unmarshal subscription params: %w", err)
		}
		return s.subscribeSwapStatus(s.ctx, conn, params.ID)
	default:
		return errInvalidMethod
	}
}

// subscribeSwapStatus streams status updates for swapID until it reaches a
// terminal status, then writes the final status and returns.
func (s *wsServer) subscribeSwapStatus(ctx context.Context, conn *websocket.Conn, swapID string) error {
	info, ok := s.backend.SwapManager().GetSwap(swapID)
	if !ok {
		return errNoSwapWithID
	}

	if info.Status() != common.Ongoing {
		return writeResponse(conn, &rpctypes.SubscribeSwapStatusResponse{Status: info.Status().String()})
	}

	statusCh := info.StatusCh()
	for {
		select {
		case status, ok := <-statusCh:
			if !ok {
				return nil
			}
			resp := &rpctypes.SubscribeSwapStatusResponse{Status: status.String()}
			if err := writeResponse(conn, resp); err != nil {
				return err
			}
			if status != common.Ongoing {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func writeResponse(conn *websocket.Conn, result interface{}) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	resp := &rpctypes.Response{
		Version: rpctypes.DefaultJSONRPCVersion,
		Result:  b,
	}
	return conn.WriteJSON(resp)
}

func writeError(conn *websocket.Conn, err error) error {
	resp := &rpctypes.Response{
		Version: rpctypes.DefaultJSONRPCVersion,
		Error:   &rpctypes.Error{Message: err.Error()},
	}
	return conn.WriteJSON(resp)
}
