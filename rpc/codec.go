package rpc

import (
	"github.com/gorilla/rpc/v2/json2"
)

// NewCodec returns the gorilla/rpc codec used for both the HTTP JSON-RPC
// endpoint and (indirectly, for envelope compatibility) the websocket one.
func NewCodec() *json2.Codec {
	return json2.NewCodec()
}
