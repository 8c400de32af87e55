package common

// DefaultSwapdPort is the TCP port swapd listens on for JSON-RPC and
// websocket requests when no port is configured explicitly.
const DefaultSwapdPort = 5_000
