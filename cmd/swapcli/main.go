// Package main provides the entrypoint of swapcli, an executable for
// interacting with a local swapd instance from the command line. Grounded
// on bingcicle-atomic-swap/cmd/swapcli/main.go's urfave/cli/v2 App shape
// (global swapd-port flag, one subcommand per RPC method, a
// newRRPClient/newWSClient pair of constructors), narrowed to the
// subcommand set spec §6 names and carrying the global
// --testnet/--data-base-dir/--debug/--json flags that section also
// specifies.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli/v2"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/common/rpctypes"
	mcrypto "github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/rpcclient"
	"github.com/jude-swap/swap/rpcclient/wsclient"
)

const (
	flagSwapdPort   = "swapd-port"
	flagTestnet     = "testnet"
	flagDataBaseDir = "data-base-dir"
	flagDebug       = "debug"
	flagJSON        = "json"
	flagMultiaddr   = "multiaddr"
	flagBtcAmount   = "btc-amount"
	flagJudeAmount  = "jude-amount"
	flagJudeAddr    = "jude-receive-address"
	flagSwapID      = "swap-id"
	flagAddress     = "address"
	flagAmount      = "amount"
	flagAll         = "all"
	flagPath        = "path"
	flagRendezvous  = "rendezvous"
	flagFollow      = "follow"
)

var (
	swapdPortFlag = &cli.UintFlag{
		Name:    flagSwapdPort,
		Aliases: []string{"p"},
		Usage:   "RPC port of swap daemon",
		Value:   common.DefaultSwapdPort,
		EnvVars: []string{"SWAPD_PORT"},
	}
	testnetFlag = &cli.BoolFlag{
		Name:  flagTestnet,
		Usage: "validate addresses and default ports against the stagenet/testnet pairing instead of mainnet",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  flagJSON,
		Usage: "print results as JSON instead of human-readable text",
	}
	debugFlag = &cli.BoolFlag{
		Name:  flagDebug,
		Usage: "accepted for parity with swapd; swapcli does not read it",
	}
	dataBaseDirFlag = &cli.StringFlag{
		Name:  flagDataBaseDir,
		Usage: "base directory for CLI-local data (currently unused by swapcli itself; kept for parity with swapd)",
	}
)

func globalFlags() []cli.Flag {
	return []cli.Flag{testnetFlag, dataBaseDirFlag, debugFlag, jsonFlag}
}

func cliApp() *cli.App {
	return &cli.App{
		Name:                 "swapcli",
		Usage:                "Client for swapd",
		EnableBashCompletion: true,
		Suggest:              true,
		Flags:                globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "buy-jude",
				Usage:  "Dial a seller and start a swap",
				Action: runBuyJude,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagMultiaddr, Required: true, Usage: "multiaddress of the seller to dial"},
					&cli.Float64Flag{Name: flagBtcAmount, Required: true, Usage: "amount of BTC to commit"},
					&cli.Float64Flag{Name: flagJudeAmount, Required: true, Usage: "amount of JUDE to commit"},
					&cli.StringFlag{Name: flagJudeAddr, Usage: "JUDE address this node's share should ultimately be recoverable to; validated against --testnet before dialing"},
					&cli.BoolFlag{Name: flagFollow, Usage: "subscribe and print status updates until the swap reaches a terminal state"},
				},
			},
			{
				Name:   "history",
				Usage:  "Show past and ongoing swaps",
				Action: runHistory,
				Flags:  []cli.Flag{swapdPortFlag},
			},
			{
				Name:   "config",
				Usage:  "Show the default network configuration swapcli is using",
				Action: runConfig,
			},
			{
				Name:   "balance",
				Usage:  "Show our BTC wallet balance",
				Action: runBalance,
				Flags:  []cli.Flag{swapdPortFlag},
			},
			{
				Name:   "withdraw-btc",
				Usage:  "Withdraw BTC from our wallet to an address",
				Action: runWithdrawBtc,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagAddress, Required: true, Usage: "destination bech32 (P2WPKH) BTC address"},
					&cli.StringFlag{Name: flagAmount, Usage: "amount of BTC to withdraw, in BTC"},
					&cli.BoolFlag{Name: flagAll, Usage: "withdraw the entire balance"},
				},
			},
			{
				Name:   "resume",
				Usage:  "Resume a persisted swap that isn't currently running",
				Action: runResume,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagSwapID, Required: true},
				},
			},
			{
				Name:   "cancel",
				Usage:  "Force the cancel branch for a stuck swap",
				Action: runCancel,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagSwapID, Required: true},
				},
			},
			{
				Name:   "refund",
				Usage:  "Sweep JUDE back to a recovery wallet after Bob's refund is on chain",
				Action: runRefund,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagSwapID, Required: true},
				},
			},
			{
				Name:   "list-sellers",
				Usage:  "Discover sellers registered at a rendezvous point",
				Action: runListSellers,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagRendezvous, Usage: "multiaddress/peer id of the rendezvous point; empty queries swapd's own registry"},
				},
			},
			{
				Name:   "export-bitcoin-wallet",
				Usage:  "Write a backup of our BTC wallet keys to a file",
				Action: runExportBitcoinWallet,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagPath, Required: true},
				},
			},
			{
				Name:   "jude-recovery",
				Usage:  "Re-print JUDE recovery key material for a swap whose automatic sweep failed",
				Action: runJudeRecovery,
				Flags: []cli.Flag{
					swapdPortFlag,
					&cli.StringFlag{Name: flagSwapID, Required: true},
				},
			},
		},
	}
}

func main() {
	if err := cliApp().Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func newRPCClient(c *cli.Context) *rpcclient.Client {
	port := c.Uint(flagSwapdPort)
	return rpcclient.NewClient(fmt.Sprintf("http://127.0.0.1:%d", port))
}

func newWSClient(c *cli.Context) (wsclient.WsClient, error) {
	port := c.Uint(flagSwapdPort)
	return wsclient.NewWsClient(c.Context, fmt.Sprintf("ws://127.0.0.1:%d/ws", port))
}

// expectedEnv maps the global --testnet flag to the environment addresses
// passed to this invocation are expected to belong to, per spec §8
// property 6 ("any mainnet command rejects stagenet JUDE addresses and
// any testnet/non-bech32 BTC address, and vice versa").
func expectedEnv(c *cli.Context) common.Environment {
	if c.Bool(flagTestnet) {
		return common.Stagenet
	}
	return common.Mainnet
}

func btcParams(env common.Environment) *chaincfg.Params {
	if env == common.Mainnet {
		return &chaincfg.MainNetParams
	}
	return &chaincfg.TestNet3Params
}

// validateJudeAddress enforces the CLI-side half of invariant 6 for JUDE
// addresses: reject any address whose embedded network doesn't match
// --testnet before the request ever reaches swapd.
func validateJudeAddress(c *cli.Context, addr string) error {
	if addr == "" {
		return nil
	}
	actual, err := mcrypto.ParseAddressEnv(mcrypto.Address(addr))
	if err != nil {
		return err
	}
	expected := expectedEnv(c)
	if actual != expected {
		return fmt.Errorf("JudecoinAddressNetworkMismatch{expected: %s, actual: %s}", expected, actual)
	}
	return nil
}

// validateBtcAddress enforces the CLI-side half of invariant 6 for BTC
// addresses: bech32 (P2WPKH) only, and on the expected network.
func validateBtcAddress(c *cli.Context, addr string) error {
	_, err := bitcoin.ParseBech32Address(addr, btcParams(expectedEnv(c)))
	return err
}

func runBuyJude(c *cli.Context) error {
	if err := validateJudeAddress(c, c.String(flagJudeAddr)); err != nil {
		return err
	}

	rc := newRPCClient(c)
	id, err := rc.BuyJude(c.String(flagMultiaddr), c.Float64(flagBtcAmount), c.Float64(flagJudeAmount))
	if err != nil {
		return err
	}

	if c.Bool(flagJSON) {
		fmt.Printf("{\"id\":%q}\n", id)
	} else {
		fmt.Printf("started swap %s\n", id)
	}

	if !c.Bool(flagFollow) {
		return nil
	}

	ws, err := newWSClient(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	statusCh, err := ws.SubscribeSwapStatus(id)
	if err != nil {
		return err
	}
	for status := range statusCh {
		fmt.Printf("swap %s: %s\n", id, status)
	}
	return nil
}

func runHistory(c *cli.Context) error {
	rc := newRPCClient(c)

	ongoing, err := rc.OngoingSwaps()
	if err != nil {
		return err
	}
	past, err := rc.PastSwaps()
	if err != nil {
		return err
	}

	fmt.Println("Ongoing swaps:")
	printSwapInfos(ongoing)
	fmt.Println("Past swaps:")
	printSwapInfos(past)
	return nil
}

func printSwapInfos(infos []*rpctypes.SwapInfoResponse) {
	if len(infos) == 0 {
		fmt.Println("[none]")
		return
	}
	for _, info := range infos {
		fmt.Printf("%s: provided %.8f %s, received %.8f, status %s\n",
			info.ID, info.ProvidedAmount, info.Provides, info.ReceivedAmount, info.Status)
	}
}

func runConfig(c *cli.Context) error {
	cfg := common.DefaultMainnet()
	if c.Bool(flagTestnet) {
		cfg = common.DefaultStagenet()
	}

	fmt.Printf("environment: %s\n", cfg.Env)
	fmt.Printf("jude confirmation depth: %d\n", cfg.JudeConfirmationDepth)
	fmt.Printf("btc confirmation depth: %d\n", cfg.BtcConfirmationDepth)
	fmt.Printf("cancel timelock: %d blocks\n", cfg.CancelTimelock)
	fmt.Printf("punish timelock: %d blocks\n", cfg.PunishTimelock)
	fmt.Printf("jude daemon endpoint: %s\n", cfg.JudeDaemonEndpoint)
	fmt.Printf("btc electrum address: %s\n", cfg.BtcElectrumAddr)
	return nil
}

func runBalance(c *cli.Context) error {
	rc := newRPCClient(c)
	resp, err := rc.Balance()
	if err != nil {
		return err
	}
	fmt.Printf("confirmed balance: %d sats\n", resp.ConfirmedBalanceSats)
	return nil
}

func runWithdrawBtc(c *cli.Context) error {
	all := c.Bool(flagAll)
	amount := c.String(flagAmount)
	if !all && amount == "" {
		return fmt.Errorf("swapcli: must specify either --%s or --%s", flagAmount, flagAll)
	}
	if err := validateBtcAddress(c, c.String(flagAddress)); err != nil {
		return err
	}

	rc := newRPCClient(c)
	txid, err := rc.WithdrawBtc(c.String(flagAddress), amount, all)
	if err != nil {
		return err
	}
	fmt.Printf("withdrawal broadcast: %s\n", txid)
	return nil
}

func runResume(c *cli.Context) error {
	rc := newRPCClient(c)
	resp, err := rc.Resume(c.String(flagSwapID))
	if err != nil {
		return err
	}
	fmt.Printf("swap %s resumed, status: %s\n", resp.ID, resp.Status)
	return nil
}

func runCancel(c *cli.Context) error {
	rc := newRPCClient(c)
	resp, err := rc.Cancel(c.String(flagSwapID))
	if err != nil {
		return err
	}
	fmt.Printf("swap %s status: %s\n", resp.ID, resp.Status)
	return nil
}

func runRefund(c *cli.Context) error {
	rc := newRPCClient(c)
	resp, err := rc.Refund(c.String(flagSwapID))
	if err != nil {
		return err
	}
	fmt.Printf("swap %s status: %s\n", resp.ID, resp.Status)
	return nil
}

func runListSellers(c *cli.Context) error {
	rc := newRPCClient(c)
	sellers, err := rc.ListSellers(c.String(flagRendezvous))
	if err != nil {
		return err
	}
	if len(sellers) == 0 {
		fmt.Println("[no sellers found]")
		return nil
	}
	for i, s := range sellers {
		fmt.Printf("%d: %s %v\n", i+1, s.PeerID, s.Addrs)
	}
	return nil
}

func runExportBitcoinWallet(c *cli.Context) error {
	rc := newRPCClient(c)
	path, err := rc.ExportBitcoinWallet(c.String(flagPath))
	if err != nil {
		return err
	}
	fmt.Printf("wallet backup written to %s\n", path)
	return nil
}

func runJudeRecovery(c *cli.Context) error {
	rc := newRPCClient(c)
	resp, err := rc.JudeRecovery(c.String(flagSwapID))
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\nspend key: %s\nview key: %s\n", resp.Address, resp.SpendKey, resp.ViewKey)
	return nil
}
