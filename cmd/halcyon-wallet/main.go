// halcyon-wallet is the command-line Halcyon wallet: it keeps a local
// note ledger, reconciles it against a node, and sends payments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/halcyon-cash/halcyon-wallet/config"
	"github.com/halcyon-cash/halcyon-wallet/internal/chainclient"
	"github.com/halcyon-cash/halcyon-wallet/internal/log"
	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/signer"
	"github.com/halcyon-cash/halcyon-wallet/internal/storage"
	"github.com/halcyon-cash/halcyon-wallet/internal/syncer"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/internal/wallet"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.DefaultMainnet()
	configPath := ""

	// Scan for global flags before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			cfg.Node.RPC = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			cfg.Node.RPC = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			cfg.DataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			cfg.DataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			cfg.Network = config.NetworkType(args[1])
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			cfg.Network = config.NetworkType(args[0][len("--network="):])
			args = args[1:]
		case args[0] == "--config" && len(args) > 1:
			configPath = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--config="):
			configPath = args[0][len("--config="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	// When --network testnet was passed without --rpc, pick up the
	// testnet default endpoint.
	if cfg.Network == config.Testnet && cfg.Node.RPC == config.DefaultMainnet().Node.RPC {
		cfg.Node.RPC = config.DefaultTestnet().Node.RPC
	}

	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	values, err := config.LoadFile(configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if err := config.ApplyFileConfig(cfg, values); err != nil {
		fatal("apply config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		fatal("invalid config: %v", err)
	}

	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "wallet":
		cmdWallet(cfg, cmdArgs)
	case "balance":
		cmdBalance(cfg, cmdArgs)
	case "send":
		cmdSend(cfg, cmdArgs, false)
	case "sendmax":
		cmdSend(cfg, cmdArgs, true)
	case "sync":
		cmdSync(cfg, cmdArgs)
	case "watch":
		cmdWatch(cfg, cmdArgs)
	case "notes":
		cmdNotes(cfg, cmdArgs)
	case "txs":
		cmdTxs(cfg, cmdArgs)
	case "status":
		cmdStatus(cfg)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: halcyon-wallet [global flags] <command> [flags]

Global flags:
  --rpc <url>         Node RPC endpoint (default: http://127.0.0.1:8545)
  --datadir <path>    Data directory (default: ~/.halcyon-wallet)
  --network <net>     mainnet (default) or testnet
  --config <path>     Config file (default: <datadir>/halcyon-wallet.conf)

Commands:
  wallet create --name <n>        Create a new wallet
  wallet import --name <n> --mnemonic "..."
                                  Import wallet from mnemonic
  wallet list                     List wallets
  wallet accounts --wallet <w>    List wallet accounts

  balance --wallet <w> [--account <i>]
                                  Show the account balance breakdown
  send --wallet <w> --to <addr> --amount <amt> [--fee <nicks>]
                                  Send coins
  sendmax --wallet <w> --to <addr> [--fee <nicks>]
                                  Sweep every available note to one address
  sync --wallet <w> [--account <i>]
                                  Reconcile against the node once
  watch --wallet <w> [--account <i>]
                                  Reconcile continuously
  notes --wallet <w> [--account <i>] [--all]
                                  List tracked notes
  txs --wallet <w> [--account <i>]
                                  List wallet transactions
  status                          Show node status
`)
}

// app bundles the wired components every command needs.
type app struct {
	cfg    *config.Config
	db     *storage.BadgerDB
	notes  *note.Store
	ledger *txledger.Ledger
	states *syncer.StateStore
	locks  *wallet.AccountMutex
	chain  *chainclient.Client
	orch   *syncer.Orchestrator
	coord  *wallet.SendCoordinator
	ks     *wallet.Keystore
}

func openApp(cfg *config.Config) *app {
	db, err := storage.NewBadger(cfg.LedgerDir())
	if err != nil {
		fatal("open ledger database: %v", err)
	}

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}

	a := &app{
		cfg:    cfg,
		db:     db,
		notes:  note.NewStore(db),
		ledger: txledger.NewLedger(db),
		states: syncer.NewStateStore(db),
		locks:  wallet.NewAccountMutex(),
		chain:  chainclient.NewWithTimeout(cfg.Node.RPC, cfg.Node.Timeout),
		ks:     ks,
	}
	a.orch = syncer.NewOrchestrator(a.locks, a.notes, a.ledger, a.states, a.chain, syncer.Options{
		ExpiryWindow:       cfg.Sync.ExpiryWindow,
		SpendConfirmations: cfg.Sync.SpendConfirmations,
	})
	a.coord = wallet.NewSendCoordinator(a.locks, a.notes, a.ledger,
		signer.NewBuilder(), a.chain, cfg.Send.DefaultFee)
	return a
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		log.Storage.Error().Err(err).Msg("close ledger database")
	}
}

// account resolves a wallet's account entry by index without unlocking.
func (a *app) account(walletName string, index uint32) wallet.Account {
	entries, err := a.ks.ListAccounts(walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}
	for _, e := range entries {
		if e.Index != index {
			continue
		}
		addr, err := types.ParseAddress(e.Address)
		if err != nil {
			fatal("account %d has malformed address %q: %v", index, e.Address, err)
		}
		return wallet.Account{Index: e.Index, Name: e.Name, Address: addr}
	}
	fatal("wallet %q has no account with index %d", walletName, index)
	return wallet.Account{}
}

// unlockAccount decrypts the wallet seed and derives the account's keys.
func (a *app) unlockAccount(walletName string, index uint32) wallet.KeyedAccount {
	acct := a.account(walletName, index)

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := a.ks.Load(walletName, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	defer zeroBytes(seed)

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}
	hdKey, err := master.DeriveAddress(index, wallet.ChangeExternal, 0)
	if err != nil {
		fatal("derive account key: %v", err)
	}
	if derived := hdKey.Address(); derived != acct.Address {
		fatal("derived address %s does not match stored %s", derived, acct.Address)
	}

	return wallet.KeyedAccount{
		Account:    acct,
		PublicKey:  hdKey.PublicKeyBytes(),
		PrivateKey: hdKey.PrivateKeyBytes(),
	}
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: halcyon-wallet wallet <create|import|list|accounts> [flags]")
	}
	switch args[0] {
	case "create":
		cmdWalletCreate(cfg, args[1:])
	case "import":
		cmdWalletImport(cfg, args[1:])
	case "list":
		cmdWalletList(cfg)
	case "accounts":
		cmdWalletAccounts(cfg, args[1:])
	default:
		fatal("Unknown wallet command: %s\nUsage: halcyon-wallet wallet <create|import|list|accounts> [flags]", args[0])
	}
}

func cmdWalletCreate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: halcyon-wallet wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	createWalletFromMnemonic(cfg, *name, mnemonic)
	fmt.Printf("\nWallet created: %s\n", *name)
}

func cmdWalletImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (24 words)")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal("Usage: halcyon-wallet wallet import --name <name> --mnemonic \"word1 word2 ...\"")
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	createWalletFromMnemonic(cfg, *name, *mnemonic)
	fmt.Printf("Wallet imported: %s\n", *name)
	fmt.Println("Run 'halcyon-wallet sync --wallet " + *name + "' to discover existing notes.")
}

func createWalletFromMnemonic(cfg *config.Config, name, mnemonic string) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer zeroBytes(seed)

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}
	hdKey, err := master.DeriveAddress(0, wallet.ChangeExternal, 0)
	if err != nil {
		fatal("derive address: %v", err)
	}
	addr := hdKey.Address()

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("create keystore: %v", err)
	}
	if err := ks.Create(name, seed, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	if err := ks.AddAccount(name, wallet.AccountEntry{
		Index:   0,
		Name:    "Default",
		Address: addr.String(),
	}); err != nil {
		fatal("add account: %v", err)
	}

	fmt.Printf("Address: %s\n", addr.String())
}

func cmdWalletList(cfg *config.Config) {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdWalletAccounts(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet accounts", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: halcyon-wallet wallet accounts --wallet <name>")
	}

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	entries, err := ks.ListAccounts(*walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("%d  %-12s %s\n", e.Index, e.Name, e.Address)
	}
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	accountIdx := fs.Uint("account", 0, "Account index")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: halcyon-wallet balance --wallet <name> [--account <i>]")
	}

	a := openApp(cfg)
	defer a.close()
	acct := a.account(*walletName, uint32(*accountIdx))

	summary, err := wallet.NewBalanceCalculator(a.notes, a.ledger).Summary(acct.Address)
	if err != nil {
		fatal("compute balance: %v", err)
	}

	fmt.Printf("Account:        %s (%s)\n", acct.Name, acct.Address)
	fmt.Printf("Available:      %s\n", summary.Available)
	fmt.Printf("Spendable now:  %s\n", summary.SpendableNow)
	fmt.Printf("Pending out:    %s\n", summary.PendingOut)
	fmt.Printf("Pending change: %s\n", summary.PendingChange)
	fmt.Printf("Total:          %s\n", summary.Total)
}

// ── send / sendmax ──────────────────────────────────────────────────────

func cmdSend(cfg *config.Config, args []string, sendMax bool) {
	name := "send"
	if sendMax {
		name = "sendmax"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	accountIdx := fs.Uint("account", 0, "Account index")
	toAddr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to send in coins (e.g. 1.5)")
	feeStr := fs.String("fee", "", "Fee in nicks (default from config)")
	fs.Parse(args)

	if *walletName == "" || *toAddr == "" || (!sendMax && *amountStr == "") {
		if sendMax {
			fatal("Usage: halcyon-wallet sendmax --wallet <name> --to <addr> [--fee <nicks>]")
		}
		fatal("Usage: halcyon-wallet send --wallet <name> --to <addr> --amount <amt> [--fee <nicks>]")
	}

	recipient, err := types.ParseAddress(*toAddr)
	if err != nil {
		fatal("invalid recipient address: %v", err)
	}

	var amount types.Nicks
	if !sendMax {
		amount, err = types.ParseCoins(*amountStr)
		if err != nil {
			fatal("invalid amount: %v", err)
		}
	}
	var fee types.Nicks
	if *feeStr != "" {
		fee, err = types.ParseNicks(*feeStr)
		if err != nil {
			fatal("invalid fee: %v", err)
		}
	}

	a := openApp(cfg)
	defer a.close()
	acct := a.unlockAccount(*walletName, uint32(*accountIdx))

	// Reconcile first so selection sees the chain's latest state. A
	// sync failure is not fatal: the node may still accept the send.
	if _, err := a.orch.SyncAccount(context.Background(), acct.Address); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: sync before send failed: %v\n", err)
	}

	result, err := a.coord.Send(context.Background(), wallet.SendRequest{
		Account:   acct,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		SendMax:   sendMax,
	})
	if err != nil {
		fatal("send: %v", err)
	}

	fmt.Printf("Submitted: %s\n", result.TxHash)
	fmt.Printf("  Amount: %s\n", result.Amount)
	fmt.Printf("  Fee:    %d nicks\n", result.Fee)
	if result.Change > 0 {
		fmt.Printf("  Change: %s\n", result.Change)
	}
}

// ── sync / watch ────────────────────────────────────────────────────────

func cmdSync(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	accountIdx := fs.Uint("account", 0, "Account index")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: halcyon-wallet sync --wallet <name> [--account <i>]")
	}

	a := openApp(cfg)
	defer a.close()
	acct := a.account(*walletName, uint32(*accountIdx))

	summary, err := a.orch.SyncAccount(context.Background(), acct.Address)
	if err != nil {
		fatal("sync: %v", err)
	}
	printSummary(summary)
}

func cmdWatch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	accountIdx := fs.Uint("account", 0, "Account index")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: halcyon-wallet watch --wallet <name> [--account <i>]")
	}

	a := openApp(cfg)
	defer a.close()
	acct := a.account(*walletName, uint32(*accountIdx))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s every %s (Ctrl-C to stop)\n", acct.Address, cfg.Sync.PollInterval)
	ticker := time.NewTicker(cfg.Sync.PollInterval)
	defer ticker.Stop()

	for {
		summary, err := a.orch.SyncAccount(ctx, acct.Address)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "sync: %v\n", err)
		} else if summary.NewIncoming+summary.NewChange+summary.Spent+summary.Confirmed+summary.Expired > 0 {
			printSummary(summary)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printSummary(s *syncer.Summary) {
	fmt.Printf("Synced: %d incoming, %d change, %d spent, %d confirmed, %d expired\n",
		s.NewIncoming, s.NewChange, s.Spent, s.Confirmed, s.Expired)
}

// ── notes / txs ─────────────────────────────────────────────────────────

func cmdNotes(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("notes", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	accountIdx := fs.Uint("account", 0, "Account index")
	showAll := fs.Bool("all", false, "Include spent notes")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: halcyon-wallet notes --wallet <name> [--account <i>] [--all]")
	}

	a := openApp(cfg)
	defer a.close()
	acct := a.account(*walletName, uint32(*accountIdx))

	notes, err := a.notes.AccountNotes(acct.Address)
	if err != nil {
		fatal("list notes: %v", err)
	}
	for _, n := range notes {
		if n.State == note.StateSpent && !*showAll {
			continue
		}
		flags := ""
		if n.IsChange {
			flags = " change"
		}
		fmt.Printf("%-12s %-10s %s%s\n", n.ID[:min(12, len(n.ID))], n.State, n.Amount, flags)
	}
}

func cmdTxs(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("txs", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	accountIdx := fs.Uint("account", 0, "Account index")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: halcyon-wallet txs --wallet <name> [--account <i>]")
	}

	a := openApp(cfg)
	defer a.close()
	acct := a.account(*walletName, uint32(*accountIdx))

	txs, err := a.ledger.AccountTransactions(acct.Address)
	if err != nil {
		fatal("list transactions: %v", err)
	}
	for _, tx := range txs {
		fmt.Printf("%s  %-8s %-24s %s  fee %d\n",
			tx.CreatedAt.Format("2006-01-02 15:04"),
			tx.Direction, tx.Status, tx.Amount, tx.Fee)
	}
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(cfg *config.Config) {
	client := chainclient.NewWithTimeout(cfg.Node.RPC, cfg.Node.Timeout)
	info, err := client.Status(context.Background())
	if err != nil {
		fatal("chain_getInfo: %v", err)
	}
	fmt.Printf("Network: %s\n", info.Network)
	fmt.Printf("Height:  %d\n", info.Height)
	fmt.Printf("Peers:   %d\n", info.Peers)
	fmt.Printf("Synced:  %v\n", info.Synced)
}

// ── helpers ─────────────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
