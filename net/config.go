package net

import "context"

// Config configures a swap Host, directly adapted from
// mewmix-atomic-swap/net/host_test.go's basicTestConfig shape.
type Config struct {
	Ctx        context.Context
	DataDir    string
	Port       uint16
	KeyFile    string
	Bootnodes  []string
	ProtocolID string
	ListenIP   string
	IsRelayer  bool
}
